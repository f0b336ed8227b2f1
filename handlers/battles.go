package handlers

import (
	"battle-engine/middleware"
	"battle-engine/models"
	"battle-engine/services"

	"github.com/gofiber/fiber/v2"
)

type BattleHandler struct {
	battles *services.BattleService
}

func SetupBattleRoutes(app *fiber.App, battles *services.BattleService) {
	h := &BattleHandler{battles: battles}
	auth := middleware.UserContextMiddleware()

	app.Get("/power-ups", h.powerUpCatalog)
	app.Get("/players", h.playerPool)
	app.Get("/battles", h.list)
	app.Get("/battles/:id", h.get)

	app.Post("/battles", auth, h.create)
	app.Post("/battles/:id/join", auth, h.join)
	app.Post("/battles/:id/leave", auth, h.leave)
	app.Post("/battles/:id/start", auth, h.start)
	app.Post("/battles/:id/draft/picks", auth, h.draftPick)
	app.Post("/battles/:id/power-ups", auth, h.usePowerUp)
	app.Post("/battles/:id/scores", auth, h.updateScores)
	app.Get("/user/battles", auth, h.history)
}

func (h *BattleHandler) powerUpCatalog(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"power_ups": h.battles.PowerUps().Catalog()})
}

func (h *BattleHandler) playerPool(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"players": h.battles.Rosters().Pool()})
}

func (h *BattleHandler) list(c *fiber.Ctx) error {
	filter := services.BattleFilter{
		Type:   models.BattleType(c.Query("type")),
		Limit:  c.QueryInt("limit", services.DefaultHistoryLimit),
		Offset: c.QueryInt("offset", 0),
	}
	if st := c.Query("status"); st != "" {
		filter.Statuses = []models.BattleStatus{models.BattleStatus(st)}
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return badRequest(c, "unknown battle type")
	}
	filter.Limit = min(max(filter.Limit, 1), services.MaxHistoryLimit)
	battles, err := h.battles.ListBattles(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"battles": battles})
}

func (h *BattleHandler) get(c *fiber.Ctx) error {
	b, err := h.battles.GetBattle(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(b)
}

func (h *BattleHandler) create(c *fiber.Ctx) error {
	var req services.CreateBattleRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	req.CreatorID = middleware.UserID(c)
	b, err := h.battles.CreateBattle(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(b)
}

// afterMutation answers with the battle's current state.
func (h *BattleHandler) afterMutation(c *fiber.Ctx, err error) error {
	if err != nil {
		return respondError(c, err)
	}
	b, err := h.battles.GetBattle(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(b)
}

func (h *BattleHandler) join(c *fiber.Ctx) error {
	return h.afterMutation(c, h.battles.JoinBattle(c.UserContext(), c.Params("id"), middleware.UserID(c)))
}

func (h *BattleHandler) leave(c *fiber.Ctx) error {
	if err := h.battles.LeaveBattle(c.UserContext(), c.Params("id"), middleware.UserID(c)); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *BattleHandler) start(c *fiber.Ctx) error {
	ctx := c.UserContext()
	b, err := h.battles.GetBattle(ctx, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	if b.CreatorID != middleware.UserID(c) {
		return respondError(c, services.ErrNotParticipant)
	}
	return h.afterMutation(c, h.battles.StartBattle(ctx, b.ID))
}

type draftPickRequest struct {
	PlayerID string `json:"player_id"`
}

func (h *BattleHandler) draftPick(c *fiber.Ctx) error {
	var req draftPickRequest
	if err := c.BodyParser(&req); err != nil || req.PlayerID == "" {
		return badRequest(c, "player_id is required")
	}
	return h.afterMutation(c, h.battles.DraftPick(c.UserContext(), c.Params("id"), middleware.UserID(c), req.PlayerID))
}

type powerUpRequest struct {
	PowerUpID string               `json:"power_up_id"`
	Target    models.PowerUpTarget `json:"target"`
}

func (h *BattleHandler) usePowerUp(c *fiber.Ctx) error {
	var req powerUpRequest
	if err := c.BodyParser(&req); err != nil || req.PowerUpID == "" {
		return badRequest(c, "power_up_id is required")
	}
	return h.afterMutation(c, h.battles.UsePowerUp(c.UserContext(), c.Params("id"), middleware.UserID(c), req.PowerUpID, req.Target))
}

func (h *BattleHandler) updateScores(c *fiber.Ctx) error {
	return h.afterMutation(c, h.battles.UpdateBattleScores(c.UserContext(), c.Params("id")))
}

func (h *BattleHandler) history(c *fiber.Ctx) error {
	battles, err := h.battles.GetBattleHistory(c.UserContext(), middleware.UserID(c), services.HistoryQuery{
		Limit:  c.QueryInt("limit", services.DefaultHistoryLimit),
		Offset: c.QueryInt("offset", 0),
		Type:   models.BattleType(c.Query("type")),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"battles": battles})
}
