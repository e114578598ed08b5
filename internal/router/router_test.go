package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grading-api/internal/config"
	"github.com/noah-isme/gema-grading-api/internal/handler"
	"github.com/noah-isme/gema-grading-api/internal/middleware"
)

const routerSecret = "router-secret"

func tokenFor(t *testing.T, role string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "4",
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(routerSecret))
	require.NoError(t, err)
	return token
}

func newRouterApp() *fiber.App {
	app := fiber.New()
	Register(app, config.Config{AppName: "grading"}, Dependencies{
		ActivityHandler: handler.NewActivityHandler(nil, zerolog.Nop()),
		JWTMiddleware:   middleware.JWTProtected(routerSecret),
	})
	return app
}

func TestRegisterGuardsGradingRoutes(t *testing.T) {
	app := newRouterApp()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/grading/activities", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/grading/activities", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, "student"))
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRegisterExposesHealthAndMetrics(t *testing.T) {
	app := newRouterApp()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "grading", resp.Header.Get("X-Application"))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
