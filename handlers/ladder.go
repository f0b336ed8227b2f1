package handlers

import (
	"battle-engine/middleware"
	"battle-engine/models"
	"battle-engine/services"

	"github.com/gofiber/fiber/v2"
)

type LadderHandler struct {
	ladder *services.LadderService
}

func SetupLadderRoutes(app *fiber.App, ladder *services.LadderService) {
	h := &LadderHandler{ladder: ladder}
	auth := middleware.UserContextMiddleware()

	app.Get("/ladder", h.leaderboard)
	app.Get("/ladder/:user_id", h.rank)
	app.Get("/ladder/:user_id/history", h.history)
	app.Get("/user/ladder", auth, h.myRank)
}

type rankView struct {
	*models.LadderRank
	TierName string `json:"tier_name"`
}

func view(r *models.LadderRank) rankView {
	return rankView{LadderRank: r, TierName: services.TierName(r.Tier)}
}

func (h *LadderHandler) leaderboard(c *fiber.Ctx) error {
	ranks, err := h.ladder.Leaderboard(c.UserContext(), c.QueryInt("limit", 50))
	if err != nil {
		return respondError(c, err)
	}
	out := make([]rankView, len(ranks))
	for i := range ranks {
		out[i] = view(&ranks[i])
	}
	return c.JSON(fiber.Map{"ladder": out})
}

func (h *LadderHandler) lookup(c *fiber.Ctx, userID string) error {
	r, err := h.ladder.GetLadderRank(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	if r == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "user has no ladder rank",
			"code":  services.CodeNotFound,
		})
	}
	return c.JSON(view(r))
}

func (h *LadderHandler) rank(c *fiber.Ctx) error {
	return h.lookup(c, c.Params("user_id"))
}

func (h *LadderHandler) myRank(c *fiber.Ctx) error {
	return h.lookup(c, middleware.UserID(c))
}

func (h *LadderHandler) history(c *fiber.Ctx) error {
	changes, err := h.ladder.History(c.UserContext(), c.Params("user_id"), c.QueryInt("limit", 20))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"history": changes})
}
