package benefit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kulicha-project/kulicha/internal/apperr"
	"github.com/kulicha-project/kulicha/internal/auth"
)

type recorderStub struct {
	actions []string
}

func (r *recorderStub) Record(_ context.Context, _ string, action, _ string) {
	r.actions = append(r.actions, action)
}

var testActor = auth.User{Identity: "id-auditor", Username: "auditor", Role: auth.RoleAuditor}

func newTestService() (*Service, Repository, *recorderStub) {
	repo := NewMemoryRepository()
	rec := &recorderStub{}
	return NewService(repo, rec), repo, rec
}

func validLocation(name string) LocationInput {
	return LocationInput{
		Name:            name,
		City:            "Lilongwe",
		Region:          "Central",
		Latitude:        -13.9626,
		Longitude:       33.7743,
		ServiceRadiusKm: 10,
		IsActive:        true,
	}
}

func validDefinition(name string, primaryLocationID int64) DefinitionInput {
	return DefinitionInput{
		Name:              name,
		Description:       "test benefit",
		TypeInt:           int(TypeFood),
		Cost:              0,
		Provider:          "Test Provider",
		IsActive:          true,
		PrimaryLocationID: primaryLocationID,
	}
}

func TestCreateLocation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	loc, err := svc.CreateLocation(ctx, testActor, validLocation("Center A"))
	require.NoError(t, err)
	require.NotZero(t, loc.ID)
	require.True(t, loc.IsActive)
	require.Nil(t, loc.UpdatedAt)
}

func TestLocationValidation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	cases := map[string]func(*LocationInput){
		"empty name":     func(in *LocationInput) { in.Name = " " },
		"empty city":     func(in *LocationInput) { in.City = "" },
		"bad latitude":   func(in *LocationInput) { in.Latitude = 91 },
		"bad longitude":  func(in *LocationInput) { in.Longitude = -181 },
		"zero radius":    func(in *LocationInput) { in.ServiceRadiusKm = 0 },
		"negative range": func(in *LocationInput) { in.ServiceRadiusKm = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := validLocation("Center B")
			mutate(&in)
			_, err := svc.CreateLocation(ctx, testActor, in)
			require.True(t, apperr.IsKind(err, apperr.KindInvalidInput), "got %v", err)
		})
	}
}

func TestCreateDefinitionAutoMapsPrimary(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	loc, err := svc.CreateLocation(ctx, testActor, validLocation("Center C"))
	require.NoError(t, err)

	def, err := svc.CreateDefinition(ctx, testActor, validDefinition("School Meals", loc.ID))
	require.NoError(t, err)
	require.NotZero(t, def.ID)
	require.Equal(t, loc.ID, def.PrimaryLocationID)

	// The primary location is also a mapped location from the start.
	mapping, err := repo.FindMapping(ctx, def.ID, loc.ID)
	require.NoError(t, err)
	require.Equal(t, def.ID, mapping.BenefitID)
}

func TestCreateDefinitionUnknownPrimaryLocation(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.CreateDefinition(context.Background(), testActor, validDefinition("Orphan", 404))
	require.True(t, apperr.IsKind(err, apperr.KindInvalidInput), "got %v", err)
}

func TestDefinitionValidation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	loc, err := svc.CreateLocation(ctx, testActor, validLocation("Center D"))
	require.NoError(t, err)

	in := validDefinition("", loc.ID)
	_, err = svc.CreateDefinition(ctx, testActor, in)
	require.True(t, apperr.IsKind(err, apperr.KindInvalidInput))

	in = validDefinition("Bad Type", loc.ID)
	in.TypeInt = 99
	_, err = svc.CreateDefinition(ctx, testActor, in)
	require.True(t, apperr.IsKind(err, apperr.KindInvalidInput))

	in = validDefinition("Bad Cost", loc.ID)
	in.Cost = -5
	_, err = svc.CreateDefinition(ctx, testActor, in)
	require.True(t, apperr.IsKind(err, apperr.KindInvalidInput))
}

func TestConsecutiveCreatesGetDistinctIDs(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	loc, err := svc.CreateLocation(ctx, testActor, validLocation("Center E"))
	require.NoError(t, err)

	first, err := svc.CreateDefinition(ctx, testActor, validDefinition("First", loc.ID))
	require.NoError(t, err)
	second, err := svc.CreateDefinition(ctx, testActor, validDefinition("Second", loc.ID))
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	// Each definition owns its own mapping row.
	_, err = repo.FindMapping(ctx, first.ID, loc.ID)
	require.NoError(t, err)
	_, err = repo.FindMapping(ctx, second.ID, loc.ID)
	require.NoError(t, err)
}

func TestDeleteLocationRefusedWhileReferenced(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	primary, err := svc.CreateLocation(ctx, testActor, validLocation("Primary"))
	require.NoError(t, err)
	extra, err := svc.CreateLocation(ctx, testActor, validLocation("Extra"))
	require.NoError(t, err)

	def, err := svc.CreateDefinition(ctx, testActor, validDefinition("Clinic Visits", primary.ID))
	require.NoError(t, err)
	require.NoError(t, svc.MapToLocation(ctx, testActor, def.ID, extra.ID))

	// Refused as primary location.
	err = svc.DeleteLocation(ctx, testActor, primary.ID)
	require.True(t, apperr.IsKind(err, apperr.KindConflict), "got %v", err)

	// Refused while a mapping references it.
	err = svc.DeleteLocation(ctx, testActor, extra.ID)
	require.True(t, apperr.IsKind(err, apperr.KindConflict), "got %v", err)

	// Unmapping frees the extra location.
	require.NoError(t, svc.UnmapFromLocation(ctx, testActor, def.ID, extra.ID))
	require.NoError(t, svc.DeleteLocation(ctx, testActor, extra.ID))

	// Deleting the benefit frees the primary location.
	require.NoError(t, svc.DeleteDefinition(ctx, testActor, def.ID))
	require.NoError(t, svc.DeleteLocation(ctx, testActor, primary.ID))
}

func TestMapToLocationIsIdempotent(t *testing.T) {
	svc, repo, rec := newTestService()
	ctx := context.Background()

	loc, err := svc.CreateLocation(ctx, testActor, validLocation("Center F"))
	require.NoError(t, err)
	other, err := svc.CreateLocation(ctx, testActor, validLocation("Center G"))
	require.NoError(t, err)
	def, err := svc.CreateDefinition(ctx, testActor, validDefinition("Counseling Hours", loc.ID))
	require.NoError(t, err)

	require.NoError(t, svc.MapToLocation(ctx, testActor, def.ID, other.ID))
	require.NoError(t, svc.MapToLocation(ctx, testActor, def.ID, other.ID))

	n, err := repo.CountMappingsByLocation(ctx, other.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	require.Contains(t, rec.actions, "BenefitMappingExists")
}

func TestMapToLocationUnknownTargets(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	loc, err := svc.CreateLocation(ctx, testActor, validLocation("Center H"))
	require.NoError(t, err)
	def, err := svc.CreateDefinition(ctx, testActor, validDefinition("Eye Exams", loc.ID))
	require.NoError(t, err)

	err = svc.MapToLocation(ctx, testActor, 404, loc.ID)
	require.True(t, apperr.IsKind(err, apperr.KindNotFound), "got %v", err)
	err = svc.MapToLocation(ctx, testActor, def.ID, 404)
	require.True(t, apperr.IsKind(err, apperr.KindNotFound), "got %v", err)
}

func TestUnmapMissingMapping(t *testing.T) {
	svc, _, _ := newTestService()
	err := svc.UnmapFromLocation(context.Background(), testActor, 1, 2)
	require.True(t, apperr.IsKind(err, apperr.KindNotFound), "got %v", err)
}

func TestUnmapPrimaryLocationRefused(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	loc, err := svc.CreateLocation(ctx, testActor, validLocation("Center L"))
	require.NoError(t, err)
	def, err := svc.CreateDefinition(ctx, testActor, validDefinition("Shelter Beds", loc.ID))
	require.NoError(t, err)

	// A benefit is always offered at its primary location.
	err = svc.UnmapFromLocation(ctx, testActor, def.ID, loc.ID)
	require.True(t, apperr.IsKind(err, apperr.KindConflict), "got %v", err)
	_, err = repo.FindMapping(ctx, def.ID, loc.ID)
	require.NoError(t, err)
}

func TestDeleteDefinitionCascadesMappings(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	loc, err := svc.CreateLocation(ctx, testActor, validLocation("Center I"))
	require.NoError(t, err)
	other, err := svc.CreateLocation(ctx, testActor, validLocation("Center J"))
	require.NoError(t, err)
	def, err := svc.CreateDefinition(ctx, testActor, validDefinition("Winter Clothing", loc.ID))
	require.NoError(t, err)
	require.NoError(t, svc.MapToLocation(ctx, testActor, def.ID, other.ID))

	require.NoError(t, svc.DeleteDefinition(ctx, testActor, def.ID))

	_, err = repo.FindMapping(ctx, def.ID, loc.ID)
	require.ErrorIs(t, err, ErrMappingNotFound)
	_, err = repo.FindMapping(ctx, def.ID, other.ID)
	require.ErrorIs(t, err, ErrMappingNotFound)

	err = svc.DeleteDefinition(ctx, testActor, def.ID)
	require.True(t, apperr.IsKind(err, apperr.KindNotFound), "got %v", err)
}

func TestUpdateDefinition(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	loc, err := svc.CreateLocation(ctx, testActor, validLocation("Center K"))
	require.NoError(t, err)
	def, err := svc.CreateDefinition(ctx, testActor, validDefinition("Tutoring", loc.ID))
	require.NoError(t, err)

	in := validDefinition("Tutoring Plus", loc.ID)
	in.TypeInt = int(TypeEducation)
	updated, err := svc.UpdateDefinition(ctx, testActor, def.ID, in)
	require.NoError(t, err)
	require.Equal(t, "Tutoring Plus", updated.Name)
	require.Equal(t, TypeEducation, updated.Type)
	require.NotNil(t, updated.UpdatedAt)

	_, err = svc.UpdateDefinition(ctx, testActor, 404, in)
	require.True(t, apperr.IsKind(err, apperr.KindNotFound), "got %v", err)
}
