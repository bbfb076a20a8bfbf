package audit

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores audit entries in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed audit repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Append inserts one audit entry.
func (r *PostgresRepository) Append(ctx context.Context, entry Entry) error {
	_, err := r.db.Exec(ctx, `INSERT INTO audit_log (identity, action, details, created_at)
        VALUES ($1, $2, $3, $4)`, entry.Identity, entry.Action, entry.Details, entry.Timestamp.UTC())
	return err
}

// ListRange returns entries inside the window, newest first.
func (r *PostgresRepository) ListRange(ctx context.Context, start, end time.Time, limit int) ([]Entry, error) {
	rows, err := r.db.Query(ctx, `SELECT id, identity, action, details, created_at
        FROM audit_log
        WHERE created_at >= $1 AND created_at <= $2
        ORDER BY created_at DESC, id DESC
        LIMIT $3`, start.UTC(), end.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Identity, &e.Action, &e.Details, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Timestamp = e.Timestamp.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
