package benefit

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrLocationNotFound indicates the location id does not exist.
	ErrLocationNotFound = errors.New("benefit location not found")
	// ErrDefinitionNotFound indicates the benefit id does not exist.
	ErrDefinitionNotFound = errors.New("benefit definition not found")
	// ErrMappingNotFound indicates no mapping exists for the pair.
	ErrMappingNotFound = errors.New("benefit location mapping not found")
)

// Repository persists the benefit catalog. Multi-row writes (definition
// create with auto-mapping, cascading deletes) are atomic.
type Repository interface {
	CreateLocation(ctx context.Context, loc *Location) error
	UpdateLocation(ctx context.Context, loc Location) error
	DeleteLocation(ctx context.Context, id int64) error
	FindLocation(ctx context.Context, id int64) (Location, error)
	ListActiveLocations(ctx context.Context) ([]Location, error)

	// CreateDefinitionWithMapping inserts the definition and its primary
	// location mapping in one transaction.
	CreateDefinitionWithMapping(ctx context.Context, def *Definition, mapping *LocationMap) error
	UpdateDefinition(ctx context.Context, def Definition) error
	// DeleteDefinitionCascade removes the definition and all its mappings
	// in one transaction.
	DeleteDefinitionCascade(ctx context.Context, id int64) error
	FindDefinition(ctx context.Context, id int64) (Definition, error)
	ListActiveDefinitionsByIDs(ctx context.Context, ids []int64) ([]Definition, error)

	FindMapping(ctx context.Context, benefitID, locationID int64) (LocationMap, error)
	CreateMapping(ctx context.Context, mapping *LocationMap) error
	DeleteMapping(ctx context.Context, benefitID, locationID int64) error
	ListMappingsByLocations(ctx context.Context, locationIDs []int64) ([]LocationMap, error)

	CountDefinitionsByPrimaryLocation(ctx context.Context, locationID int64) (int64, error)
	CountMappingsByLocation(ctx context.Context, locationID int64) (int64, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed catalog repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const locationColumns = `id, name, city, region, address, latitude, longitude, service_radius_km, is_active, created_at, updated_at`

func scanLocation(row pgx.Row) (Location, error) {
	var l Location
	err := row.Scan(&l.ID, &l.Name, &l.City, &l.Region, &l.Address, &l.Latitude, &l.Longitude,
		&l.ServiceRadiusKm, &l.IsActive, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Location{}, ErrLocationNotFound
		}
		return Location{}, err
	}
	return l, nil
}

// CreateLocation inserts a location and assigns its id.
func (r *PostgresRepository) CreateLocation(ctx context.Context, loc *Location) error {
	return r.db.QueryRow(ctx, `INSERT INTO benefit_locations
        (name, city, region, address, latitude, longitude, service_radius_km, is_active, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		loc.Name, loc.City, loc.Region, loc.Address, loc.Latitude, loc.Longitude,
		loc.ServiceRadiusKm, loc.IsActive, loc.CreatedAt.UTC()).Scan(&loc.ID)
}

// UpdateLocation rewrites a location row.
func (r *PostgresRepository) UpdateLocation(ctx context.Context, loc Location) error {
	cmd, err := r.db.Exec(ctx, `UPDATE benefit_locations SET
        name = $1, city = $2, region = $3, address = $4, latitude = $5, longitude = $6,
        service_radius_km = $7, is_active = $8, updated_at = $9
        WHERE id = $10`,
		loc.Name, loc.City, loc.Region, loc.Address, loc.Latitude, loc.Longitude,
		loc.ServiceRadiusKm, loc.IsActive, loc.UpdatedAt, loc.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrLocationNotFound
	}
	return nil
}

// DeleteLocation removes a location row.
func (r *PostgresRepository) DeleteLocation(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM benefit_locations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrLocationNotFound
	}
	return nil
}

// FindLocation fetches a location by id.
func (r *PostgresRepository) FindLocation(ctx context.Context, id int64) (Location, error) {
	return scanLocation(r.db.QueryRow(ctx, `SELECT `+locationColumns+` FROM benefit_locations WHERE id = $1`, id))
}

// ListActiveLocations returns every active location.
func (r *PostgresRepository) ListActiveLocations(ctx context.Context) ([]Location, error) {
	rows, err := r.db.Query(ctx, `SELECT `+locationColumns+` FROM benefit_locations WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

const definitionColumns = `id, name, description, type, cost, provider, policy_details, is_active, primary_location_id, created_at, updated_at`

func scanDefinition(row pgx.Row) (Definition, error) {
	var d Definition
	err := row.Scan(&d.ID, &d.Name, &d.Description, &d.Type, &d.Cost, &d.Provider,
		&d.PolicyDetails, &d.IsActive, &d.PrimaryLocationID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Definition{}, ErrDefinitionNotFound
		}
		return Definition{}, err
	}
	return d, nil
}

// CreateDefinitionWithMapping inserts the definition and its primary-location
// mapping atomically, assigning both ids.
func (r *PostgresRepository) CreateDefinitionWithMapping(ctx context.Context, def *Definition, mapping *LocationMap) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := tx.QueryRow(ctx, `INSERT INTO benefit_definitions
        (name, description, type, cost, provider, policy_details, is_active, primary_location_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		def.Name, def.Description, def.Type, def.Cost, def.Provider, def.PolicyDetails,
		def.IsActive, def.PrimaryLocationID, def.CreatedAt.UTC()).Scan(&def.ID); err != nil {
		return err
	}

	mapping.BenefitID = def.ID
	if err := tx.QueryRow(ctx, `INSERT INTO benefit_location_map (benefit_id, location_id, added_at)
        VALUES ($1, $2, $3) RETURNING id`,
		mapping.BenefitID, mapping.LocationID, mapping.AddedAt.UTC()).Scan(&mapping.ID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// UpdateDefinition rewrites a definition row.
func (r *PostgresRepository) UpdateDefinition(ctx context.Context, def Definition) error {
	cmd, err := r.db.Exec(ctx, `UPDATE benefit_definitions SET
        name = $1, description = $2, type = $3, cost = $4, provider = $5, policy_details = $6,
        is_active = $7, primary_location_id = $8, updated_at = $9
        WHERE id = $10`,
		def.Name, def.Description, def.Type, def.Cost, def.Provider, def.PolicyDetails,
		def.IsActive, def.PrimaryLocationID, def.UpdatedAt, def.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrDefinitionNotFound
	}
	return nil
}

// DeleteDefinitionCascade removes the definition and its mappings atomically.
func (r *PostgresRepository) DeleteDefinitionCascade(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM benefit_location_map WHERE benefit_id = $1`, id); err != nil {
		return err
	}
	cmd, err := tx.Exec(ctx, `DELETE FROM benefit_definitions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrDefinitionNotFound
	}
	return tx.Commit(ctx)
}

// FindDefinition fetches a definition by id.
func (r *PostgresRepository) FindDefinition(ctx context.Context, id int64) (Definition, error) {
	return scanDefinition(r.db.QueryRow(ctx, `SELECT `+definitionColumns+` FROM benefit_definitions WHERE id = $1`, id))
}

// ListActiveDefinitionsByIDs returns active definitions among the given ids.
func (r *PostgresRepository) ListActiveDefinitionsByIDs(ctx context.Context, ids []int64) ([]Definition, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `SELECT `+definitionColumns+` FROM benefit_definitions
        WHERE id = ANY($1) AND is_active ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Definition
	for rows.Next() {
		d, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// FindMapping fetches the mapping for a (benefit, location) pair.
func (r *PostgresRepository) FindMapping(ctx context.Context, benefitID, locationID int64) (LocationMap, error) {
	var m LocationMap
	err := r.db.QueryRow(ctx, `SELECT id, benefit_id, location_id, added_at, removed_at
        FROM benefit_location_map WHERE benefit_id = $1 AND location_id = $2`, benefitID, locationID).
		Scan(&m.ID, &m.BenefitID, &m.LocationID, &m.AddedAt, &m.RemovedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LocationMap{}, ErrMappingNotFound
		}
		return LocationMap{}, err
	}
	return m, nil
}

// CreateMapping inserts a mapping row and assigns its id.
func (r *PostgresRepository) CreateMapping(ctx context.Context, mapping *LocationMap) error {
	return r.db.QueryRow(ctx, `INSERT INTO benefit_location_map (benefit_id, location_id, added_at)
        VALUES ($1, $2, $3) RETURNING id`,
		mapping.BenefitID, mapping.LocationID, mapping.AddedAt.UTC()).Scan(&mapping.ID)
}

// DeleteMapping removes the mapping for a pair.
func (r *PostgresRepository) DeleteMapping(ctx context.Context, benefitID, locationID int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM benefit_location_map WHERE benefit_id = $1 AND location_id = $2`,
		benefitID, locationID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrMappingNotFound
	}
	return nil
}

// ListMappingsByLocations returns mappings whose location is in the set.
func (r *PostgresRepository) ListMappingsByLocations(ctx context.Context, locationIDs []int64) ([]LocationMap, error) {
	if len(locationIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `SELECT id, benefit_id, location_id, added_at, removed_at
        FROM benefit_location_map WHERE location_id = ANY($1)`, locationIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LocationMap
	for rows.Next() {
		var m LocationMap
		if err := rows.Scan(&m.ID, &m.BenefitID, &m.LocationID, &m.AddedAt, &m.RemovedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CountDefinitionsByPrimaryLocation counts definitions whose primary
// location is the given id.
func (r *PostgresRepository) CountDefinitionsByPrimaryLocation(ctx context.Context, locationID int64) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM benefit_definitions WHERE primary_location_id = $1`, locationID).Scan(&n)
	return n, err
}

// CountMappingsByLocation counts mapping rows referencing the location.
func (r *PostgresRepository) CountMappingsByLocation(ctx context.Context, locationID int64) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM benefit_location_map WHERE location_id = $1`, locationID).Scan(&n)
	return n, err
}
