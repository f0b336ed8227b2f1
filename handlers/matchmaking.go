package handlers

import (
	"battle-engine/middleware"
	"battle-engine/services"

	"github.com/gofiber/fiber/v2"
)

type MatchmakingHandler struct {
	mm *services.Matchmaker
}

func SetupMatchmakingRoutes(app *fiber.App, mm *services.Matchmaker) {
	h := &MatchmakingHandler{mm: mm}
	auth := middleware.UserContextMiddleware()

	app.Get("/matchmaking/queue", h.queue)
	app.Post("/matchmaking/queue", auth, h.enqueue)
	app.Delete("/matchmaking/queue", auth, h.dequeue)
}

func (h *MatchmakingHandler) queue(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"queue": h.mm.Queue()})
}

func (h *MatchmakingHandler) enqueue(c *fiber.Ctx) error {
	var req services.QueueRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	req.UserID = middleware.UserID(c)
	entry, err := h.mm.Enqueue(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(entry)
}

func (h *MatchmakingHandler) dequeue(c *fiber.Ctx) error {
	if err := h.mm.Dequeue(middleware.UserID(c)); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
