package benefit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kulicha-project/kulicha/internal/apperr"
	"github.com/kulicha-project/kulicha/internal/audit"
	"github.com/kulicha-project/kulicha/internal/auth"
	"github.com/kulicha-project/kulicha/internal/geo"
)

// Service implements the benefit catalog: CRUD over locations, definitions
// and their many-to-many mapping, with referential integrity enforced by the
// writer. Role gating happens at the router; the actor is carried for the
// audit trail.
type Service struct {
	repo  Repository
	audit audit.Recorder
	now   func() time.Time
}

// NewService builds the catalog service.
func NewService(repo Repository, recorder audit.Recorder) *Service {
	return &Service{repo: repo, audit: recorder, now: func() time.Time { return time.Now().UTC() }}
}

// LocationInput carries the writable fields of a location.
type LocationInput struct {
	Name            string
	City            string
	Region          string
	Address         string
	Latitude        float64
	Longitude       float64
	ServiceRadiusKm float64
	IsActive        bool
}

func (in LocationInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return apperr.New(apperr.KindInvalidInput, "location name is required")
	}
	if strings.TrimSpace(in.City) == "" {
		return apperr.New(apperr.KindInvalidInput, "location city is required")
	}
	if !geo.ValidCoordinates(in.Latitude, in.Longitude) {
		return apperr.New(apperr.KindInvalidInput, "latitude must be in [-90,90] and longitude in [-180,180]")
	}
	if in.ServiceRadiusKm <= 0 {
		return apperr.New(apperr.KindInvalidInput, "service radius must be positive")
	}
	return nil
}

// CreateLocation adds a location to the catalog.
func (s *Service) CreateLocation(ctx context.Context, actor auth.User, in LocationInput) (Location, error) {
	if err := in.validate(); err != nil {
		return Location{}, err
	}
	loc := Location{
		Name:            strings.TrimSpace(in.Name),
		City:            strings.TrimSpace(in.City),
		Region:          in.Region,
		Address:         in.Address,
		Latitude:        in.Latitude,
		Longitude:       in.Longitude,
		ServiceRadiusKm: in.ServiceRadiusKm,
		IsActive:        in.IsActive,
		CreatedAt:       s.now(),
	}
	if err := s.repo.CreateLocation(ctx, &loc); err != nil {
		return Location{}, apperr.Wrap(apperr.KindInternal, "create location", err)
	}
	s.audit.Record(ctx, actor.Identity, "BenefitLocationCreated",
		fmt.Sprintf("%s created location %d (%s, %s)", actor.Username, loc.ID, loc.Name, loc.City))
	return loc, nil
}

// UpdateLocation rewrites an existing location.
func (s *Service) UpdateLocation(ctx context.Context, actor auth.User, id int64, in LocationInput) (Location, error) {
	if err := in.validate(); err != nil {
		return Location{}, err
	}
	loc, err := s.repo.FindLocation(ctx, id)
	if err != nil {
		if errors.Is(err, ErrLocationNotFound) {
			return Location{}, apperr.Newf(apperr.KindNotFound, "location %d not found", id)
		}
		return Location{}, apperr.Wrap(apperr.KindInternal, "lookup location", err)
	}

	updatedAt := s.now()
	loc.Name = strings.TrimSpace(in.Name)
	loc.City = strings.TrimSpace(in.City)
	loc.Region = in.Region
	loc.Address = in.Address
	loc.Latitude = in.Latitude
	loc.Longitude = in.Longitude
	loc.ServiceRadiusKm = in.ServiceRadiusKm
	loc.IsActive = in.IsActive
	loc.UpdatedAt = &updatedAt

	if err := s.repo.UpdateLocation(ctx, loc); err != nil {
		return Location{}, apperr.Wrap(apperr.KindInternal, "update location", err)
	}
	s.audit.Record(ctx, actor.Identity, "BenefitLocationUpdated",
		fmt.Sprintf("%s updated location %d (%s)", actor.Username, loc.ID, loc.Name))
	return loc, nil
}

// DeleteLocation removes a location. It refuses while any definition uses the
// location as primary or any mapping references it.
func (s *Service) DeleteLocation(ctx context.Context, actor auth.User, id int64) error {
	if _, err := s.repo.FindLocation(ctx, id); err != nil {
		if errors.Is(err, ErrLocationNotFound) {
			return apperr.Newf(apperr.KindNotFound, "location %d not found", id)
		}
		return apperr.Wrap(apperr.KindInternal, "lookup location", err)
	}

	primaryRefs, err := s.repo.CountDefinitionsByPrimaryLocation(ctx, id)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "count primary references", err)
	}
	if primaryRefs > 0 {
		return apperr.Newf(apperr.KindConflict, "location %d is the primary location of %d benefit(s)", id, primaryRefs)
	}
	mapRefs, err := s.repo.CountMappingsByLocation(ctx, id)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "count mapping references", err)
	}
	if mapRefs > 0 {
		return apperr.Newf(apperr.KindConflict, "location %d is still mapped to %d benefit(s)", id, mapRefs)
	}

	if err := s.repo.DeleteLocation(ctx, id); err != nil {
		return apperr.Wrap(apperr.KindInternal, "delete location", err)
	}
	s.audit.Record(ctx, actor.Identity, "BenefitLocationDeleted",
		fmt.Sprintf("%s deleted location %d", actor.Username, id))
	return nil
}

// DefinitionInput carries the writable fields of a benefit definition.
type DefinitionInput struct {
	Name              string
	Description       string
	TypeInt           int
	Cost              float64
	Provider          string
	PolicyDetails     string
	IsActive          bool
	PrimaryLocationID int64
}

func (in DefinitionInput) validate() (Type, error) {
	if strings.TrimSpace(in.Name) == "" {
		return 0, apperr.New(apperr.KindInvalidInput, "benefit name is required")
	}
	typ, ok := ParseType(in.TypeInt)
	if !ok {
		return 0, apperr.New(apperr.KindInvalidInput, "invalid benefit type")
	}
	if in.Cost < 0 {
		return 0, apperr.New(apperr.KindInvalidInput, "cost must not be negative")
	}
	return typ, nil
}

// CreateDefinition adds a benefit and maps it to its primary location, so
// the primary location is always also a mapped location.
func (s *Service) CreateDefinition(ctx context.Context, actor auth.User, in DefinitionInput) (Definition, error) {
	typ, err := in.validate()
	if err != nil {
		return Definition{}, err
	}
	if _, err := s.repo.FindLocation(ctx, in.PrimaryLocationID); err != nil {
		if errors.Is(err, ErrLocationNotFound) {
			return Definition{}, apperr.Newf(apperr.KindInvalidInput, "primary location %d does not exist", in.PrimaryLocationID)
		}
		return Definition{}, apperr.Wrap(apperr.KindInternal, "lookup primary location", err)
	}

	now := s.now()
	def := Definition{
		Name:              strings.TrimSpace(in.Name),
		Description:       in.Description,
		Type:              typ,
		Cost:              in.Cost,
		Provider:          in.Provider,
		PolicyDetails:     in.PolicyDetails,
		IsActive:          in.IsActive,
		PrimaryLocationID: in.PrimaryLocationID,
		CreatedAt:         now,
	}
	mapping := LocationMap{LocationID: in.PrimaryLocationID, AddedAt: now}
	if err := s.repo.CreateDefinitionWithMapping(ctx, &def, &mapping); err != nil {
		return Definition{}, apperr.Wrap(apperr.KindInternal, "create benefit", err)
	}
	s.audit.Record(ctx, actor.Identity, "BenefitDefinitionCreated",
		fmt.Sprintf("%s created benefit %d (%s) at location %d", actor.Username, def.ID, def.Name, def.PrimaryLocationID))
	return def, nil
}

// UpdateDefinition rewrites an existing benefit.
func (s *Service) UpdateDefinition(ctx context.Context, actor auth.User, id int64, in DefinitionInput) (Definition, error) {
	typ, err := in.validate()
	if err != nil {
		return Definition{}, err
	}
	def, err := s.repo.FindDefinition(ctx, id)
	if err != nil {
		if errors.Is(err, ErrDefinitionNotFound) {
			return Definition{}, apperr.Newf(apperr.KindNotFound, "benefit %d not found", id)
		}
		return Definition{}, apperr.Wrap(apperr.KindInternal, "lookup benefit", err)
	}
	if _, err := s.repo.FindLocation(ctx, in.PrimaryLocationID); err != nil {
		if errors.Is(err, ErrLocationNotFound) {
			return Definition{}, apperr.Newf(apperr.KindInvalidInput, "primary location %d does not exist", in.PrimaryLocationID)
		}
		return Definition{}, apperr.Wrap(apperr.KindInternal, "lookup primary location", err)
	}

	updatedAt := s.now()
	def.Name = strings.TrimSpace(in.Name)
	def.Description = in.Description
	def.Type = typ
	def.Cost = in.Cost
	def.Provider = in.Provider
	def.PolicyDetails = in.PolicyDetails
	def.IsActive = in.IsActive
	def.PrimaryLocationID = in.PrimaryLocationID
	def.UpdatedAt = &updatedAt

	if err := s.repo.UpdateDefinition(ctx, def); err != nil {
		return Definition{}, apperr.Wrap(apperr.KindInternal, "update benefit", err)
	}
	s.audit.Record(ctx, actor.Identity, "BenefitDefinitionUpdated",
		fmt.Sprintf("%s updated benefit %d (%s)", actor.Username, def.ID, def.Name))
	return def, nil
}

// DeleteDefinition removes a benefit, cascading its mapping rows.
func (s *Service) DeleteDefinition(ctx context.Context, actor auth.User, id int64) error {
	if err := s.repo.DeleteDefinitionCascade(ctx, id); err != nil {
		if errors.Is(err, ErrDefinitionNotFound) {
			return apperr.Newf(apperr.KindNotFound, "benefit %d not found", id)
		}
		return apperr.Wrap(apperr.KindInternal, "delete benefit", err)
	}
	s.audit.Record(ctx, actor.Identity, "BenefitDefinitionDeleted",
		fmt.Sprintf("%s deleted benefit %d and its mappings", actor.Username, id))
	return nil
}

// MapToLocation links a benefit to a location. Mapping an already-linked
// pair is not an error; the call is idempotent against duplicate submission.
func (s *Service) MapToLocation(ctx context.Context, actor auth.User, benefitID, locationID int64) error {
	if _, err := s.repo.FindDefinition(ctx, benefitID); err != nil {
		if errors.Is(err, ErrDefinitionNotFound) {
			return apperr.Newf(apperr.KindNotFound, "benefit %d not found", benefitID)
		}
		return apperr.Wrap(apperr.KindInternal, "lookup benefit", err)
	}
	if _, err := s.repo.FindLocation(ctx, locationID); err != nil {
		if errors.Is(err, ErrLocationNotFound) {
			return apperr.Newf(apperr.KindNotFound, "location %d not found", locationID)
		}
		return apperr.Wrap(apperr.KindInternal, "lookup location", err)
	}

	if _, err := s.repo.FindMapping(ctx, benefitID, locationID); err == nil {
		s.audit.Record(ctx, actor.Identity, "BenefitMappingExists",
			fmt.Sprintf("benefit %d already mapped to location %d", benefitID, locationID))
		return nil
	} else if !errors.Is(err, ErrMappingNotFound) {
		return apperr.Wrap(apperr.KindInternal, "lookup mapping", err)
	}

	mapping := LocationMap{BenefitID: benefitID, LocationID: locationID, AddedAt: s.now()}
	if err := s.repo.CreateMapping(ctx, &mapping); err != nil {
		return apperr.Wrap(apperr.KindInternal, "create mapping", err)
	}
	s.audit.Record(ctx, actor.Identity, "BenefitMappedToLocation",
		fmt.Sprintf("%s mapped benefit %d to location %d", actor.Username, benefitID, locationID))
	return nil
}

// UnmapFromLocation removes the link between a benefit and a location. The
// primary-location pair cannot be unmapped; a benefit is always offered at
// its primary location.
func (s *Service) UnmapFromLocation(ctx context.Context, actor auth.User, benefitID, locationID int64) error {
	def, err := s.repo.FindDefinition(ctx, benefitID)
	if err != nil {
		if errors.Is(err, ErrDefinitionNotFound) {
			return apperr.Newf(apperr.KindNotFound, "benefit %d not found", benefitID)
		}
		return apperr.Wrap(apperr.KindInternal, "lookup benefit", err)
	}
	if def.PrimaryLocationID == locationID {
		return apperr.Newf(apperr.KindConflict, "location %d is the primary location of benefit %d", locationID, benefitID)
	}

	if err := s.repo.DeleteMapping(ctx, benefitID, locationID); err != nil {
		if errors.Is(err, ErrMappingNotFound) {
			return apperr.Newf(apperr.KindNotFound, "benefit %d is not mapped to location %d", benefitID, locationID)
		}
		return apperr.Wrap(apperr.KindInternal, "delete mapping", err)
	}
	s.audit.Record(ctx, actor.Identity, "BenefitUnmappedFromLocation",
		fmt.Sprintf("%s unmapped benefit %d from location %d", actor.Username, benefitID, locationID))
	return nil
}
