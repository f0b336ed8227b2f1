package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoUser(c *fiber.Ctx) error {
	return c.SendString(UserID(c))
}

func do(t *testing.T, app *fiber.App, req *http.Request) (int, string) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestUserContextMiddleware(t *testing.T) {
	app := fiber.New()
	app.Get("/me", UserContextMiddleware(), echoUser)

	status, _ := do(t, app, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, status)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("X-User-ID", " alice ")
	status, body := do(t, app, req)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alice", body)
}

func TestGatewayAuthMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(GatewayAuthMiddleware("s3cret"))
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	status, _ := do(t, app, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusUnauthorized, status)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	status, _ = do(t, app, req)
	assert.Equal(t, http.StatusUnauthorized, status)

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	status, body := do(t, app, req)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "pong", body)

	open := fiber.New()
	open.Use(GatewayAuthMiddleware(""))
	open.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })
	status, _ = do(t, open, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, status)
}

func TestStreamUserMiddleware(t *testing.T) {
	app := fiber.New()
	app.Get("/events", StreamUserMiddleware(), echoUser)

	_, body := do(t, app, httptest.NewRequest(http.MethodGet, "/events?user_id=bob", nil))
	assert.Equal(t, "bob", body)

	req := httptest.NewRequest(http.MethodGet, "/events?user_id=bob", nil)
	req.Header.Set("X-User-ID", "alice")
	_, body = do(t, app, req)
	assert.Equal(t, "alice", body)

	status, body := do(t, app, httptest.NewRequest(http.MethodGet, "/events", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, body)
}
