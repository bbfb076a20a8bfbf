package routes

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/kulicha-project/kulicha/internal/access"
	"github.com/kulicha-project/kulicha/internal/audit"
	"github.com/kulicha-project/kulicha/internal/auth"
)

// RegisterAuditRoutes exposes the audit trail to auditors.
func RegisterAuditRoutes(r fiber.Router, guard *access.Guard, svc *audit.Service) {
	r.Get("/audit-logs", guard.Roles("GetAuditLogs", auth.RoleAuditor), func(c *fiber.Ctx) error {
		end := time.Now().UTC()
		start := end.Add(-24 * time.Hour)
		if raw := c.Query("start"); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return fiber.NewError(http.StatusBadRequest, "start must be RFC3339")
			}
			start = t
		}
		if raw := c.Query("end"); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return fiber.NewError(http.StatusBadRequest, "end must be RFC3339")
			}
			end = t
		}
		if !start.Before(end) {
			return fiber.NewError(http.StatusBadRequest, "start must precede end")
		}
		limit := c.QueryInt("limit", 100)

		entries, err := svc.ListRange(c.UserContext(), start, end, limit)
		if err != nil {
			return fail(err)
		}
		out := make([]fiber.Map, 0, len(entries))
		for _, e := range entries {
			out = append(out, fiber.Map{
				"id":        e.ID,
				"identity":  e.Identity,
				"action":    e.Action,
				"details":   e.Details,
				"timestamp": e.Timestamp.Format(time.RFC3339),
			})
		}
		return c.JSON(fiber.Map{"entries": out})
	})
}
