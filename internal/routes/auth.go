package routes

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/kulicha-project/kulicha/internal/access"
	"github.com/kulicha-project/kulicha/internal/auth"
)

// RegisterAuthRoutes wires the passwordless verification flow and the
// account endpoints behind it.
func RegisterAuthRoutes(r fiber.Router, guard *access.Guard, svc *auth.Service, rateLimit fiber.Handler) {
	r.Post("/auth/request-verification", guard.Identity(), rateLimit, func(c *fiber.Ctx) error {
		var req struct {
			Email          string `json:"email"`
			IsRegistration bool   `json:"is_registration"`
			Username       string `json:"username"`
			Role           int    `json:"role"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		err := svc.RequestVerification(c.UserContext(), access.CallerIdentity(c), auth.RequestVerificationInput{
			Email:          req.Email,
			IsRegistration: req.IsRegistration,
			Username:       req.Username,
			RoleInt:        req.Role,
		})
		if err != nil {
			return fail(err)
		}
		return c.Status(http.StatusAccepted).JSON(fiber.Map{
			"status": "verification_sent",
		})
	})

	r.Post("/auth/verify", guard.Identity(), func(c *fiber.Ctx) error {
		var req struct {
			Code     string `json:"code"`
			DeviceID string `json:"device_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		user, err := svc.Verify(c.UserContext(), access.CallerIdentity(c), req.Code, req.DeviceID)
		if err != nil {
			return fail(err)
		}
		return c.JSON(userResponse(user))
	})

	r.Get("/me", guard.Authenticated("GetMyProfile"), func(c *fiber.Ctx) error {
		user, err := svc.Profile(c.UserContext(), access.CallerIdentity(c))
		if err != nil {
			return fail(err)
		}
		resp := userResponse(user)
		if session, err := svc.Session(c.UserContext(), user.Identity); err == nil {
			resp["session"] = fiber.Map{
				"last_active": session.LastActiveTime.Format(time.RFC3339),
				"device_id":   session.ActiveDeviceID,
			}
		}
		return c.JSON(resp)
	})

	r.Patch("/me", guard.Authenticated("UpdateProfile"), func(c *fiber.Ctx) error {
		var req struct {
			Username string `json:"username"`
			Email    string `json:"email"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		user, err := svc.UpdateProfile(c.UserContext(), access.CallerIdentity(c), req.Username, req.Email)
		if err != nil {
			return fail(err)
		}
		return c.JSON(userResponse(user))
	})

	r.Get("/users", guard.Roles("ListUsersByRole", auth.RoleAuditor), func(c *fiber.Ctx) error {
		role := c.QueryInt("role", -1)
		users, err := svc.UsersByRole(c.UserContext(), access.Caller(c), role)
		if err != nil {
			return fail(err)
		}
		out := make([]fiber.Map, 0, len(users))
		for _, u := range users {
			out = append(out, userResponse(u))
		}
		return c.JSON(fiber.Map{"users": out})
	})
}

func userResponse(u auth.User) fiber.Map {
	return fiber.Map{
		"identity":       u.Identity,
		"username":       u.Username,
		"email":          u.Email,
		"role":           u.Role.String(),
		"email_verified": u.EmailVerified,
		"registered_at":  u.RegisteredAt.Format(time.RFC3339),
	}
}
