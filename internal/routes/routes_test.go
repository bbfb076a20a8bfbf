package routes

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/kulicha-project/kulicha/internal/access"
	"github.com/kulicha-project/kulicha/internal/config"
	"github.com/kulicha-project/kulicha/internal/logging"
)

func setupApp(t *testing.T) *fiber.App {
	t.Helper()
	cfg := config.Config{
		AppName:         "kulicha-test",
		AppEnv:          "dev",
		VerificationTTL: time.Hour,
		IdempotencyTTL:  time.Minute,
		VerifyPerMinute: 100,
	}
	app := fiber.New()
	if err := Setup(app, Deps{Cfg: cfg, Logger: logging.Discard()}); err != nil {
		t.Fatalf("setup routes: %v", err)
	}
	return app
}

func do(t *testing.T, app *fiber.App, method, path, identity, body string) int {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if identity != "" {
		req.Header.Set(access.IdentityHeader, identity)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestHealthz(t *testing.T) {
	app := setupApp(t)
	if got := do(t, app, fiber.MethodGet, "/healthz", "", ""); got != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", got)
	}
}

func TestVerificationFlowStatuses(t *testing.T) {
	app := setupApp(t)

	// Registration request is accepted.
	body := `{"email":"zoe@example.org","is_registration":true,"username":"zoe","role":0}`
	if got := do(t, app, fiber.MethodPost, "/api/v1/auth/request-verification", "id-zoe", body); got != fiber.StatusAccepted {
		t.Fatalf("request-verification: expected 202, got %d", got)
	}

	// A wrong code is a client error, not a state change.
	if got := do(t, app, fiber.MethodPost, "/api/v1/auth/verify", "id-zoe", `{"code":"000000x"}`); got != fiber.StatusBadRequest {
		t.Fatalf("verify wrong code: expected 400, got %d", got)
	}

	// Verifying with no pending request is 404.
	if got := do(t, app, fiber.MethodPost, "/api/v1/auth/verify", "id-nobody", `{"code":"123456"}`); got != fiber.StatusNotFound {
		t.Fatalf("verify without pending: expected 404, got %d", got)
	}

	// Login request for an unknown email is 404.
	if got := do(t, app, fiber.MethodPost, "/api/v1/auth/request-verification", "id-ghost", `{"email":"ghost@example.org"}`); got != fiber.StatusNotFound {
		t.Fatalf("login request unknown email: expected 404, got %d", got)
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	app := setupApp(t)

	cases := []struct {
		method string
		path   string
	}{
		{fiber.MethodGet, "/api/v1/me"},
		{fiber.MethodGet, "/api/v1/users?role=0"},
		{fiber.MethodGet, "/api/v1/audit-logs"},
		{fiber.MethodGet, "/api/v1/benefits/nearby?lat=0&lon=0&radius_km=5"},
		{fiber.MethodPost, "/api/v1/locations"},
		{fiber.MethodDelete, "/api/v1/benefits/1"},
	}
	for _, tc := range cases {
		// No identity header at all.
		if got := do(t, app, tc.method, tc.path, "", ""); got != fiber.StatusUnauthorized {
			t.Fatalf("%s %s without identity: expected 401, got %d", tc.method, tc.path, got)
		}
		// An identity with no registered user.
		if got := do(t, app, tc.method, tc.path, "id-unregistered", ""); got != fiber.StatusUnauthorized {
			t.Fatalf("%s %s with unknown identity: expected 401, got %d", tc.method, tc.path, got)
		}
	}
}
