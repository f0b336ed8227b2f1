package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"battle-engine/middleware"
	"battle-engine/services"

	"github.com/gofiber/fiber/v2"
)

const keepAliveInterval = 15 * time.Second

func SetupEventRoutes(app *fiber.App, bus *services.EventBus) {
	app.Get("/events/stream", middleware.StreamUserMiddleware(), streamEvents(bus))
}

// streamEvents relays bus events as server-sent events. A caller with a user
// id only receives events that name them.
func streamEvents(bus *services.EventBus) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := middleware.UserID(c)

		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")
		c.Set("X-Accel-Buffering", "no")

		events, cancel := bus.Subscribe()
		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			defer cancel()
			ticker := time.NewTicker(keepAliveInterval)
			defer ticker.Stop()

			w.WriteString(":\n\n")
			if err := w.Flush(); err != nil {
				return
			}
			for {
				select {
				case e, ok := <-events:
					if !ok {
						return
					}
					if userID != "" && !e.Involves(userID) {
						continue
					}
					payload, err := json.Marshal(e)
					if err != nil {
						log.Printf("[SSE] encode %s: %v", e.Type, err)
						continue
					}
					fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", e.ID, e.Type, payload)
					if err := w.Flush(); err != nil {
						return
					}
				case <-ticker.C:
					w.WriteString(":\n\n")
					if err := w.Flush(); err != nil {
						return
					}
				}
			}
		})
		return nil
	}
}
