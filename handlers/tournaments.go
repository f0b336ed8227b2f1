package handlers

import (
	"battle-engine/middleware"
	"battle-engine/models"
	"battle-engine/services"

	"github.com/gofiber/fiber/v2"
)

type TournamentHandler struct {
	tournaments *services.TournamentService
}

func SetupTournamentRoutes(app *fiber.App, tournaments *services.TournamentService) {
	h := &TournamentHandler{tournaments: tournaments}
	auth := middleware.UserContextMiddleware()

	app.Get("/tournaments", h.list)
	app.Get("/tournaments/:id", h.get)

	app.Post("/tournaments", auth, h.create)
	app.Post("/tournaments/:id/join", auth, h.join)
	app.Post("/tournaments/:id/close", auth, h.closeRegistration)
	app.Post("/tournaments/:id/rounds/current/start", auth, h.startRound)
	app.Post("/tournaments/:id/rounds/:round/matches/:match/result", auth, h.recordResult)
}

func (h *TournamentHandler) list(c *fiber.Ctx) error {
	var statuses []models.TournamentStatus
	if st := c.Query("status"); st != "" {
		statuses = append(statuses, models.TournamentStatus(st))
	}
	list, err := h.tournaments.ListTournaments(c.UserContext(), statuses...)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"tournaments": list})
}

func (h *TournamentHandler) get(c *fiber.Ctx) error {
	t, err := h.tournaments.GetTournament(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(t)
}

func (h *TournamentHandler) create(c *fiber.Ctx) error {
	var req services.TournamentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	t, err := h.tournaments.Create(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(t)
}

func (h *TournamentHandler) reply(c *fiber.Ctx, err error) error {
	if err != nil {
		return respondError(c, err)
	}
	return h.get(c)
}

func (h *TournamentHandler) join(c *fiber.Ctx) error {
	return h.reply(c, h.tournaments.JoinTournament(c.UserContext(), c.Params("id"), middleware.UserID(c)))
}

func (h *TournamentHandler) closeRegistration(c *fiber.Ctx) error {
	return h.reply(c, h.tournaments.CloseRegistration(c.UserContext(), c.Params("id")))
}

func (h *TournamentHandler) startRound(c *fiber.Ctx) error {
	return h.reply(c, h.tournaments.StartTournamentRound(c.UserContext(), c.Params("id")))
}

type matchResultRequest struct {
	WinnerID string  `json:"winner_id"`
	ScoreA   float64 `json:"score_a"`
	ScoreB   float64 `json:"score_b"`
}

func (h *TournamentHandler) recordResult(c *fiber.Ctx) error {
	round, err := c.ParamsInt("round")
	if err != nil {
		return badRequest(c, "round must be a number")
	}
	match, err := c.ParamsInt("match")
	if err != nil {
		return badRequest(c, "match must be a number")
	}
	var req matchResultRequest
	if err := c.BodyParser(&req); err != nil || req.WinnerID == "" {
		return badRequest(c, "winner_id is required")
	}
	return h.reply(c, h.tournaments.RecordMatchResult(c.UserContext(), c.Params("id"), round, match, req.WinnerID, req.ScoreA, req.ScoreB))
}
