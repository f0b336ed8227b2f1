package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"battle-engine/services"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flatFeed float64

func (f flatFeed) GetPlayerPoints(context.Context, string) (float64, error) {
	return float64(f), nil
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	store := services.NewMemoryStore()
	bus := services.NewEventBus(256)
	ladder := services.NewLadderService(store, bus, nil)
	prizes := services.NewPrizeService(services.NewMemoryRewardSink())
	battles := services.NewBattleService(store, ladder, prizes, flatFeed(10), bus)
	tournaments := services.NewTournamentService(store, battles, ladder, prizes, bus, nil)
	mm := services.NewMatchmaker(battles, ladder, bus, 200, nil)

	app := fiber.New()
	SetupBattleRoutes(app, battles)
	SetupMatchmakingRoutes(app, mm)
	SetupTournamentRoutes(app, tournaments)
	SetupLadderRoutes(app, ladder)
	return app
}

func call(t *testing.T, app *fiber.App, method, path, user, body string) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestStatusFor(t *testing.T) {
	cases := map[services.Code]int{
		services.CodeNotFound:           http.StatusNotFound,
		services.CodeInvalidState:       http.StatusConflict,
		services.CodeRegistrationClosed: http.StatusConflict,
		services.CodeNotParticipant:     http.StatusForbidden,
		services.CodeRequirementsNotMet: http.StatusForbidden,
		services.CodeOnCooldown:         http.StatusTooManyRequests,
		services.CodeCapacityExceeded:   http.StatusUnprocessableEntity,
		services.CodeUnknownPowerUp:     http.StatusUnprocessableEntity,
		services.CodeInvalidArgument:    http.StatusBadRequest,
		"":                              http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, statusFor(code), string(code))
	}
}

func TestBattleLifecycleOverHTTP(t *testing.T) {
	app := newTestApp(t)

	status, _ := call(t, app, http.MethodPost, "/battles", "", `{"type":"quick"}`)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := call(t, app, http.MethodPost, "/battles", "alice", `{"type":"quick","is_public":true}`)
	require.Equal(t, http.StatusCreated, status)
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "waiting", body["status"])

	status, body = call(t, app, http.MethodPost, "/battles/"+id+"/join", "bob", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "active", body["status"])

	status, body = call(t, app, http.MethodPost, "/battles/"+id+"/join", "carol", "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "invalid_state", body["code"])

	status, body = call(t, app, http.MethodGet, "/battles/"+id, "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["participants"], 2)

	status, body = call(t, app, http.MethodGet, "/user/battles", "bob", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["battles"], 1)
}

func TestBattleErrorsOverHTTP(t *testing.T) {
	app := newTestApp(t)

	status, body := call(t, app, http.MethodGet, "/battles/missing", "", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", body["code"])
	assert.Equal(t, map[string]any{"kind": "battle", "id": "missing"}, body["metadata"])

	status, body = call(t, app, http.MethodPost, "/battles", "alice", `{"type":"arena"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_argument", body["code"])

	status, _ = call(t, app, http.MethodPost, "/battles", "alice", `{not json`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = call(t, app, http.MethodPost, "/battles", "alice", `{"type":"quick","settings":{"capacity":5}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "capacity_exceeded", body["code"])

	_, body = call(t, app, http.MethodPost, "/battles", "alice", `{"type":"custom","is_public":true}`)
	id := body["id"].(string)
	status, _ = call(t, app, http.MethodPost, "/battles/"+id+"/start", "bob", "")
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = call(t, app, http.MethodPost, "/battles/"+id+"/leave", "alice", "")
	assert.Equal(t, http.StatusNoContent, status)
}

func TestPowerUpsOverHTTP(t *testing.T) {
	app := newTestApp(t)

	status, body := call(t, app, http.MethodGet, "/power-ups", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["power_ups"], 6)

	_, body = call(t, app, http.MethodPost, "/battles", "alice", `{"type":"quick","is_public":true}`)
	id := body["id"].(string)
	call(t, app, http.MethodPost, "/battles/"+id+"/join", "bob", "")

	status, body = call(t, app, http.MethodPost, "/battles/"+id+"/power-ups", "alice", `{"power_up_id":"time_warp"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "unknown_power_up", body["code"])

	status, _ = call(t, app, http.MethodPost, "/battles/"+id+"/power-ups", "alice", `{"power_up_id":"shield"}`)
	require.Equal(t, http.StatusOK, status)

	status, body = call(t, app, http.MethodPost, "/battles/"+id+"/power-ups", "alice", `{"power_up_id":"shield"}`)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "on_cooldown", body["code"])
	meta, _ := body["metadata"].(map[string]any)
	assert.Equal(t, "3", meta["remaining_rounds"])

	status, _ = call(t, app, http.MethodPost, "/battles/"+id+"/power-ups", "carol", `{"power_up_id":"shield"}`)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestLadderOverHTTP(t *testing.T) {
	app := newTestApp(t)

	status, body := call(t, app, http.MethodGet, "/ladder/alice", "", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", body["code"])

	status, _ = call(t, app, http.MethodGet, "/user/ladder", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = call(t, app, http.MethodGet, "/ladder", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["ladder"])
}

func TestTournamentOverHTTP(t *testing.T) {
	app := newTestApp(t)

	status, body := call(t, app, http.MethodPost, "/tournaments", "host", `{"name":"Pocket Cup","size":2}`)
	require.Equal(t, http.StatusCreated, status)
	id := body["id"].(string)
	assert.Equal(t, "registration", body["status"])

	status, _ = call(t, app, http.MethodPost, "/tournaments/"+id+"/close", "host", "")
	assert.Equal(t, http.StatusConflict, status)

	call(t, app, http.MethodPost, "/tournaments/"+id+"/join", "alice", "")
	status, body = call(t, app, http.MethodPost, "/tournaments/"+id+"/join", "bob", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "in_progress", body["status"])

	status, body = call(t, app, http.MethodPost, "/tournaments/"+id+"/join", "carol", "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "registration_closed", body["code"])

	status, _ = call(t, app, http.MethodPost, "/tournaments/"+id+"/rounds/x/matches/1/result", "host", `{"winner_id":"alice"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = call(t, app, http.MethodPost, "/tournaments/"+id+"/rounds/1/matches/1/result", "host", `{"winner_id":"bob","score_a":70,"score_b":81}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "completed", body["status"])
	assert.Equal(t, "bob", body["champion_id"])

	status, body = call(t, app, http.MethodGet, "/tournaments?status=completed", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["tournaments"], 1)
}

func TestMatchmakingOverHTTP(t *testing.T) {
	app := newTestApp(t)

	status, body := call(t, app, http.MethodPost, "/matchmaking/queue", "alice", `{"type":"ladder"}`)
	require.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, "alice", body["user_id"])

	status, _ = call(t, app, http.MethodPost, "/matchmaking/queue", "alice", `{"type":"ladder"}`)
	assert.Equal(t, http.StatusConflict, status)

	status, body = call(t, app, http.MethodGet, "/matchmaking/queue", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["queue"], 1)

	status, _ = call(t, app, http.MethodDelete, "/matchmaking/queue", "alice", "")
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = call(t, app, http.MethodDelete, "/matchmaking/queue", "alice", "")
	assert.Equal(t, http.StatusNotFound, status)
}
