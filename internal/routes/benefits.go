package routes

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/kulicha-project/kulicha/internal/access"
	"github.com/kulicha-project/kulicha/internal/auth"
	"github.com/kulicha-project/kulicha/internal/benefit"
)

type locationRequest struct {
	Name            string  `json:"name"`
	City            string  `json:"city"`
	Region          string  `json:"region"`
	Address         string  `json:"address"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	ServiceRadiusKm float64 `json:"service_radius_km"`
	IsActive        bool    `json:"is_active"`
}

func (r locationRequest) input() benefit.LocationInput {
	return benefit.LocationInput{
		Name:            r.Name,
		City:            r.City,
		Region:          r.Region,
		Address:         r.Address,
		Latitude:        r.Latitude,
		Longitude:       r.Longitude,
		ServiceRadiusKm: r.ServiceRadiusKm,
		IsActive:        r.IsActive,
	}
}

type definitionRequest struct {
	Name              string  `json:"name"`
	Description       string  `json:"description"`
	Type              int     `json:"type"`
	Cost              float64 `json:"cost"`
	Provider          string  `json:"provider"`
	PolicyDetails     string  `json:"policy_details"`
	IsActive          bool    `json:"is_active"`
	PrimaryLocationID int64   `json:"primary_location_id"`
}

func (r definitionRequest) input() benefit.DefinitionInput {
	return benefit.DefinitionInput{
		Name:              r.Name,
		Description:       r.Description,
		TypeInt:           r.Type,
		Cost:              r.Cost,
		Provider:          r.Provider,
		PolicyDetails:     r.PolicyDetails,
		IsActive:          r.IsActive,
		PrimaryLocationID: r.PrimaryLocationID,
	}
}

// RegisterBenefitRoutes wires the catalog and the proximity query.
func RegisterBenefitRoutes(r fiber.Router, guard *access.Guard, svc *benefit.Service) {
	editors := []auth.Role{auth.RoleAuditor, auth.RoleBenefactor}

	r.Post("/locations", guard.Roles("CreateBenefitLocation", editors...), func(c *fiber.Ctx) error {
		var req locationRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		loc, err := svc.CreateLocation(c.UserContext(), access.Caller(c), req.input())
		if err != nil {
			return fail(err)
		}
		return c.Status(http.StatusCreated).JSON(locationResponse(loc))
	})

	r.Put("/locations/:id", guard.Roles("UpdateBenefitLocation", editors...), func(c *fiber.Ctx) error {
		id, err := pathID(c, "id")
		if err != nil {
			return err
		}
		var req locationRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		loc, err := svc.UpdateLocation(c.UserContext(), access.Caller(c), id, req.input())
		if err != nil {
			return fail(err)
		}
		return c.JSON(locationResponse(loc))
	})

	r.Delete("/locations/:id", guard.Roles("DeleteBenefitLocation", auth.RoleAuditor), func(c *fiber.Ctx) error {
		id, err := pathID(c, "id")
		if err != nil {
			return err
		}
		if err := svc.DeleteLocation(c.UserContext(), access.Caller(c), id); err != nil {
			return fail(err)
		}
		return c.SendStatus(http.StatusNoContent)
	})

	r.Post("/benefits", guard.Roles("CreateBenefitDefinition", editors...), func(c *fiber.Ctx) error {
		var req definitionRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		def, err := svc.CreateDefinition(c.UserContext(), access.Caller(c), req.input())
		if err != nil {
			return fail(err)
		}
		return c.Status(http.StatusCreated).JSON(definitionResponse(def))
	})

	r.Put("/benefits/:id", guard.Roles("UpdateBenefitDefinition", editors...), func(c *fiber.Ctx) error {
		id, err := pathID(c, "id")
		if err != nil {
			return err
		}
		var req definitionRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		def, err := svc.UpdateDefinition(c.UserContext(), access.Caller(c), id, req.input())
		if err != nil {
			return fail(err)
		}
		return c.JSON(definitionResponse(def))
	})

	r.Delete("/benefits/:id", guard.Roles("DeleteBenefitDefinition", auth.RoleAuditor), func(c *fiber.Ctx) error {
		id, err := pathID(c, "id")
		if err != nil {
			return err
		}
		if err := svc.DeleteDefinition(c.UserContext(), access.Caller(c), id); err != nil {
			return fail(err)
		}
		return c.SendStatus(http.StatusNoContent)
	})

	r.Post("/benefits/:id/locations/:locationId", guard.Roles("MapBenefitToLocation", editors...), func(c *fiber.Ctx) error {
		benefitID, err := pathID(c, "id")
		if err != nil {
			return err
		}
		locationID, err := pathID(c, "locationId")
		if err != nil {
			return err
		}
		if err := svc.MapToLocation(c.UserContext(), access.Caller(c), benefitID, locationID); err != nil {
			return fail(err)
		}
		return c.Status(http.StatusCreated).JSON(fiber.Map{
			"benefit_id":  benefitID,
			"location_id": locationID,
		})
	})

	r.Delete("/benefits/:id/locations/:locationId", guard.Roles("UnmapBenefitFromLocation", editors...), func(c *fiber.Ctx) error {
		benefitID, err := pathID(c, "id")
		if err != nil {
			return err
		}
		locationID, err := pathID(c, "locationId")
		if err != nil {
			return err
		}
		if err := svc.UnmapFromLocation(c.UserContext(), access.Caller(c), benefitID, locationID); err != nil {
			return fail(err)
		}
		return c.SendStatus(http.StatusNoContent)
	})

	r.Get("/benefits/nearby", guard.Authenticated("FindBenefitsNearby"), func(c *fiber.Ctx) error {
		lat, err := queryFloat(c, "lat")
		if err != nil {
			return err
		}
		lon, err := queryFloat(c, "lon")
		if err != nil {
			return err
		}
		radius, err := queryFloat(c, "radius_km")
		if err != nil {
			return err
		}
		summaries, err := svc.Nearby(c.UserContext(), access.Caller(c), benefit.NearbyInput{
			Latitude:  lat,
			Longitude: lon,
			RadiusKm:  radius,
		})
		if err != nil {
			return fail(err)
		}
		return c.JSON(fiber.Map{"benefits": summaries})
	})
}

func pathID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id < 1 {
		return 0, fiber.NewError(http.StatusBadRequest, "invalid "+name+" parameter")
	}
	return id, nil
}

func queryFloat(c *fiber.Ctx, name string) (float64, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, fiber.NewError(http.StatusBadRequest, "missing "+name+" parameter")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fiber.NewError(http.StatusBadRequest, "invalid "+name+" parameter")
	}
	return v, nil
}

func locationResponse(l benefit.Location) fiber.Map {
	resp := fiber.Map{
		"id":                l.ID,
		"name":              l.Name,
		"city":              l.City,
		"region":            l.Region,
		"address":           l.Address,
		"latitude":          l.Latitude,
		"longitude":         l.Longitude,
		"service_radius_km": l.ServiceRadiusKm,
		"is_active":         l.IsActive,
		"created_at":        l.CreatedAt.Format(time.RFC3339),
	}
	if l.UpdatedAt != nil {
		resp["updated_at"] = l.UpdatedAt.Format(time.RFC3339)
	}
	return resp
}

func definitionResponse(d benefit.Definition) fiber.Map {
	resp := fiber.Map{
		"id":                  d.ID,
		"name":                d.Name,
		"description":         d.Description,
		"type":                d.Type.String(),
		"cost":                d.Cost,
		"provider":            d.Provider,
		"policy_details":      d.PolicyDetails,
		"is_active":           d.IsActive,
		"primary_location_id": d.PrimaryLocationID,
		"created_at":          d.CreatedAt.Format(time.RFC3339),
	}
	if d.UpdatedAt != nil {
		resp["updated_at"] = d.UpdatedAt.Format(time.RFC3339)
	}
	return resp
}
