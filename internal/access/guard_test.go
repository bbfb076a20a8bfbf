package access

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/kulicha-project/kulicha/internal/auth"
)

type recorderStub struct {
	actions []string
	details []string
}

func (r *recorderStub) Record(_ context.Context, _ string, action, details string) {
	r.actions = append(r.actions, action)
	r.details = append(r.details, details)
}

func seedUser(t *testing.T, repo auth.Repository, identity, username string, role auth.Role) {
	t.Helper()
	user := auth.User{
		Identity:      identity,
		Username:      username,
		Email:         username + "@example.org",
		Role:          role,
		EmailVerified: true,
		RegisteredAt:  time.Now().UTC(),
	}
	session := auth.AuthSession{Identity: identity, LastActiveTime: time.Now().UTC(), ActiveDeviceID: "seed"}
	if err := repo.CompleteRegistration(context.Background(), user, session); err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func setupGuardApp(t *testing.T) (*fiber.App, auth.Repository, *recorderStub) {
	t.Helper()
	repo := auth.NewMemoryRepository()
	rec := &recorderStub{}
	guard := NewGuard(repo, rec)

	seedUser(t, repo, "id-beneficiary", "ben", auth.RoleBeneficiary)
	seedUser(t, repo, "id-auditor", "audrey", auth.RoleAuditor)

	app := fiber.New()
	app.Get("/any", guard.Authenticated("AnyAction"), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"username": Caller(c).Username})
	})
	app.Get("/audited", guard.Roles("AuditorAction", auth.RoleAuditor), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app, repo, rec
}

func request(t *testing.T, app *fiber.App, path, identity string) int {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, path, nil)
	if identity != "" {
		req.Header.Set(IdentityHeader, identity)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestGuardRequiresIdentityHeader(t *testing.T) {
	app, _, _ := setupGuardApp(t)
	if got := request(t, app, "/any", ""); got != fiber.StatusUnauthorized {
		t.Fatalf("expected %d got %d", fiber.StatusUnauthorized, got)
	}
}

func TestGuardRejectsUnknownIdentity(t *testing.T) {
	app, _, rec := setupGuardApp(t)
	if got := request(t, app, "/any", "id-stranger"); got != fiber.StatusUnauthorized {
		t.Fatalf("expected %d got %d", fiber.StatusUnauthorized, got)
	}
	found := false
	for _, a := range rec.actions {
		if a == "AccessDenied" {
			found = true
		}
	}
	if !found {
		t.Fatalf("denial not audited: %v", rec.actions)
	}
}

func TestGuardRoleAsymmetry(t *testing.T) {
	app, _, rec := setupGuardApp(t)

	if got := request(t, app, "/audited", "id-auditor"); got != fiber.StatusOK {
		t.Fatalf("auditor should pass, got %d", got)
	}
	if got := request(t, app, "/audited", "id-beneficiary"); got != fiber.StatusForbidden {
		t.Fatalf("beneficiary should be forbidden, got %d", got)
	}

	found := false
	for i, a := range rec.actions {
		if a == "AccessDenied" && rec.details[i] != "" {
			found = true
		}
	}
	if !found {
		t.Fatalf("role denial not audited: %v", rec.actions)
	}
}

func TestGuardAllowsAnyAuthenticatedRole(t *testing.T) {
	app, _, _ := setupGuardApp(t)
	for _, identity := range []string{"id-beneficiary", "id-auditor"} {
		if got := request(t, app, "/any", identity); got != fiber.StatusOK {
			t.Fatalf("%s should pass, got %d", identity, got)
		}
	}
}

func TestGuardTouchesSession(t *testing.T) {
	app, repo, _ := setupGuardApp(t)
	ctx := context.Background()

	before, err := repo.FindSession(ctx, "id-beneficiary")
	if err != nil {
		t.Fatalf("find session: %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	if got := request(t, app, "/any", "id-beneficiary"); got != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", got)
	}

	after, err := repo.FindSession(ctx, "id-beneficiary")
	if err != nil {
		t.Fatalf("find session: %v", err)
	}
	if !after.LastActiveTime.After(before.LastActiveTime) {
		t.Fatalf("session liveness not refreshed")
	}
}
