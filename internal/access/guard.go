// Package access gates every privileged route. The router resolves the
// caller identity to a user exactly once and checks roles before any handler
// runs, so individual handlers never repeat the lookup.
package access

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/kulicha-project/kulicha/internal/audit"
	"github.com/kulicha-project/kulicha/internal/auth"
)

const (
	// IdentityHeader carries the opaque caller principal assigned by the
	// connection layer. It is not a credential; the transport in front of
	// this service is trusted to set it.
	IdentityHeader = "X-Client-Identity"

	identityKey = "client_identity"
	callerKey   = "caller_user"
)

// Guard builds identity and role middleware around the auth store, recording
// every denial in the audit trail.
type Guard struct {
	repo  auth.Repository
	audit audit.Recorder
	now   func() time.Time
}

// NewGuard builds a guard.
func NewGuard(repo auth.Repository, recorder audit.Recorder) *Guard {
	return &Guard{repo: repo, audit: recorder, now: func() time.Time { return time.Now().UTC() }}
}

// Identity requires the caller principal header and stores it in locals.
// It does not require a user record; the auth endpoints run behind it.
func (g *Guard) Identity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity := c.Get(IdentityHeader)
		if !auth.ValidIdentity(identity) {
			return fiber.NewError(fiber.StatusUnauthorized, "missing or invalid "+IdentityHeader+" header")
		}
		c.Locals(identityKey, identity)
		return c.Next()
	}
}

// Authenticated requires a verified user for the caller identity and stores
// it in locals. It also refreshes the session liveness marker.
func (g *Guard) Authenticated(action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := g.resolve(c, action)
		if err != nil {
			return err
		}
		c.Locals(callerKey, user)
		return c.Next()
	}
}

// Roles requires a verified user holding one of the allowed roles. Denials
// are written to the audit trail with the attempted action name.
func (g *Guard) Roles(action string, allowed ...auth.Role) fiber.Handler {
	allowedSet := make(map[auth.Role]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}
	return func(c *fiber.Ctx) error {
		user, err := g.resolve(c, action)
		if err != nil {
			return err
		}
		if _, ok := allowedSet[user.Role]; !ok {
			g.audit.Record(c.UserContext(), user.Identity, "AccessDenied",
				fmt.Sprintf("%s (%s) attempted %s", user.Username, user.Role, action))
			return fiber.NewError(fiber.StatusForbidden, "access denied for role "+user.Role.String())
		}
		c.Locals(callerKey, user)
		return c.Next()
	}
}

func (g *Guard) resolve(c *fiber.Ctx, action string) (auth.User, error) {
	identity := c.Get(IdentityHeader)
	if !auth.ValidIdentity(identity) {
		return auth.User{}, fiber.NewError(fiber.StatusUnauthorized, "missing or invalid "+IdentityHeader+" header")
	}
	c.Locals(identityKey, identity)

	user, err := g.repo.FindUser(c.UserContext(), identity)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			g.audit.Record(c.UserContext(), identity, "AccessDenied",
				fmt.Sprintf("unauthenticated caller attempted %s", action))
			return auth.User{}, fiber.NewError(fiber.StatusUnauthorized, "not authenticated")
		}
		return auth.User{}, fiber.NewError(fiber.StatusInternalServerError, "user lookup failed")
	}

	// Liveness only; failures are not fatal to the request.
	_ = g.repo.TouchSession(c.UserContext(), identity, g.now())
	return user, nil
}

// CallerIdentity returns the identity stored by the guard.
func CallerIdentity(c *fiber.Ctx) string {
	identity, _ := c.Locals(identityKey).(string)
	return identity
}

// Caller returns the user stored by the guard.
func Caller(c *fiber.Ctx) auth.User {
	user, _ := c.Locals(callerKey).(auth.User)
	return user
}
