package benefit

import (
	"context"
	"fmt"

	"github.com/kulicha-project/kulicha/internal/apperr"
	"github.com/kulicha-project/kulicha/internal/auth"
	"github.com/kulicha-project/kulicha/internal/geo"
)

// NearbyInput is a proximity query: a point and a search radius.
type NearbyInput struct {
	Latitude  float64
	Longitude float64
	RadiusKm  float64
}

// Nearby returns the active benefits mapped to an active location within
// RadiusKm of the given point. An empty catalog region is an empty result,
// not an error. The scan is linear over locations, mappings and definitions,
// which is fine at catalog scale (hundreds of rows).
func (s *Service) Nearby(ctx context.Context, actor auth.User, in NearbyInput) ([]Summary, error) {
	if !geo.ValidCoordinates(in.Latitude, in.Longitude) {
		return nil, apperr.New(apperr.KindInvalidInput, "latitude must be in [-90,90] and longitude in [-180,180]")
	}
	if in.RadiusKm <= 0 {
		return nil, apperr.New(apperr.KindInvalidInput, "radius must be positive")
	}

	s.audit.Record(ctx, actor.Identity, "BenefitSearchRequested",
		fmt.Sprintf("%s searched benefits near (%f,%f) radius %.1fkm", actor.Username, in.Latitude, in.Longitude, in.RadiusKm))

	locations, err := s.repo.ListActiveLocations(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list locations", err)
	}
	var candidateIDs []int64
	for _, loc := range locations {
		if geo.DistanceKm(in.Latitude, in.Longitude, loc.Latitude, loc.Longitude) <= in.RadiusKm {
			candidateIDs = append(candidateIDs, loc.ID)
		}
	}
	if len(candidateIDs) == 0 {
		return []Summary{}, nil
	}

	mappings, err := s.repo.ListMappingsByLocations(ctx, candidateIDs)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list mappings", err)
	}
	seen := make(map[int64]struct{}, len(mappings))
	var benefitIDs []int64
	for _, m := range mappings {
		if _, ok := seen[m.BenefitID]; ok {
			continue
		}
		seen[m.BenefitID] = struct{}{}
		benefitIDs = append(benefitIDs, m.BenefitID)
	}
	if len(benefitIDs) == 0 {
		return []Summary{}, nil
	}

	definitions, err := s.repo.ListActiveDefinitionsByIDs(ctx, benefitIDs)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "list benefits", err)
	}

	out := make([]Summary, 0, len(definitions))
	for _, d := range definitions {
		out = append(out, Summary{
			ID:          d.ID,
			Name:        d.Name,
			Description: d.Description,
			Type:        d.Type,
			Cost:        d.Cost,
		})
	}
	return out, nil
}
