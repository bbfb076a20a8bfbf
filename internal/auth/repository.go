package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrUserNotFound indicates no user row exists for the lookup key.
	ErrUserNotFound = errors.New("user not found")
	// ErrPendingNotFound indicates no pending verification exists for the identity.
	ErrPendingNotFound = errors.New("pending verification not found")
	// ErrSessionNotFound indicates no session exists for the identity.
	ErrSessionNotFound = errors.New("session not found")
)

// Repository persists users, pending verifications and sessions. Compound
// operations are atomic: a failure leaves no partial writes behind.
type Repository interface {
	FindUser(ctx context.Context, identity string) (User, error)
	FindUserByEmail(ctx context.Context, email string) (User, error)
	FindUserByUsername(ctx context.Context, username string) (User, error)
	UpdateUser(ctx context.Context, user User) error
	ListUsersByRole(ctx context.Context, role Role) ([]User, error)

	// CompleteRegistration inserts the user and its initial session and
	// consumes the pending verification, all in one transaction.
	CompleteRegistration(ctx context.Context, user User, session AuthSession) error
	// CompleteLogin upserts the session and consumes the pending
	// verification in one transaction.
	CompleteLogin(ctx context.Context, session AuthSession) error

	FindPending(ctx context.Context, identity string) (PendingVerification, error)
	// ReplacePending removes any existing pending row for the identity and
	// stores the new one, keeping the at-most-one invariant.
	ReplacePending(ctx context.Context, pending PendingVerification) error
	DeletePending(ctx context.Context, identity string) error

	FindSession(ctx context.Context, identity string) (AuthSession, error)
	UpsertSession(ctx context.Context, session AuthSession) error
	TouchSession(ctx context.Context, identity string, at time.Time) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed auth repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `identity, username, email, role, email_verified, registered_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	if err := row.Scan(&u.Identity, &u.Username, &u.Email, &u.Role, &u.EmailVerified, &u.RegisteredAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	u.RegisteredAt = u.RegisteredAt.UTC()
	return u, nil
}

// FindUser fetches a user by identity.
func (r *PostgresRepository) FindUser(ctx context.Context, identity string) (User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE identity = $1`, identity))
}

// FindUserByEmail fetches a user by normalized email.
func (r *PostgresRepository) FindUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// FindUserByUsername fetches a user by username.
func (r *PostgresRepository) FindUserByUsername(ctx context.Context, username string) (User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

// UpdateUser rewrites the mutable profile fields.
func (r *PostgresRepository) UpdateUser(ctx context.Context, user User) error {
	cmd, err := r.db.Exec(ctx, `UPDATE users SET username = $1, email = $2, email_verified = $3
        WHERE identity = $4`, user.Username, user.Email, user.EmailVerified, user.Identity)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ListUsersByRole returns all users holding the given role.
func (r *PostgresRepository) ListUsersByRole(ctx context.Context, role Role) ([]User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users WHERE role = $1 ORDER BY registered_at`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CompleteRegistration inserts the user and session and consumes the
// pending row atomically.
func (r *PostgresRepository) CompleteRegistration(ctx context.Context, user User, session AuthSession) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, `INSERT INTO users (identity, username, email, role, email_verified, registered_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		user.Identity, user.Username, user.Email, user.Role, user.EmailVerified, user.RegisteredAt.UTC()); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO auth_sessions (identity, last_active_time, active_device_id)
        VALUES ($1, $2, $3)`,
		session.Identity, session.LastActiveTime.UTC(), session.ActiveDeviceID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM pending_verifications WHERE identity = $1`, user.Identity); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// CompleteLogin refreshes the session and consumes the pending row atomically.
func (r *PostgresRepository) CompleteLogin(ctx context.Context, session AuthSession) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, `INSERT INTO auth_sessions (identity, last_active_time, active_device_id)
        VALUES ($1, $2, $3)
        ON CONFLICT (identity) DO UPDATE SET last_active_time = EXCLUDED.last_active_time,
            active_device_id = EXCLUDED.active_device_id`,
		session.Identity, session.LastActiveTime.UTC(), session.ActiveDeviceID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM pending_verifications WHERE identity = $1`, session.Identity); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// FindPending fetches the pending verification for an identity.
func (r *PostgresRepository) FindPending(ctx context.Context, identity string) (PendingVerification, error) {
	var p PendingVerification
	err := r.db.QueryRow(ctx, `SELECT identity, email, username, role, code, expires_at
        FROM pending_verifications WHERE identity = $1`, identity).
		Scan(&p.Identity, &p.Email, &p.Username, &p.Role, &p.Code, &p.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PendingVerification{}, ErrPendingNotFound
		}
		return PendingVerification{}, err
	}
	p.ExpiresAt = p.ExpiresAt.UTC()
	return p, nil
}

// ReplacePending supersedes any existing pending row inside one transaction.
func (r *PostgresRepository) ReplacePending(ctx context.Context, pending PendingVerification) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM pending_verifications WHERE identity = $1`, pending.Identity); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO pending_verifications (identity, email, username, role, code, expires_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		pending.Identity, pending.Email, pending.Username, pending.Role, pending.Code, pending.ExpiresAt.UTC()); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// DeletePending removes the pending row for an identity, if any.
func (r *PostgresRepository) DeletePending(ctx context.Context, identity string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM pending_verifications WHERE identity = $1`, identity)
	return err
}

// FindSession fetches the session row for an identity.
func (r *PostgresRepository) FindSession(ctx context.Context, identity string) (AuthSession, error) {
	var s AuthSession
	err := r.db.QueryRow(ctx, `SELECT identity, last_active_time, active_device_id
        FROM auth_sessions WHERE identity = $1`, identity).
		Scan(&s.Identity, &s.LastActiveTime, &s.ActiveDeviceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AuthSession{}, ErrSessionNotFound
		}
		return AuthSession{}, err
	}
	s.LastActiveTime = s.LastActiveTime.UTC()
	return s, nil
}

// UpsertSession inserts or refreshes the session row for an identity.
func (r *PostgresRepository) UpsertSession(ctx context.Context, session AuthSession) error {
	_, err := r.db.Exec(ctx, `INSERT INTO auth_sessions (identity, last_active_time, active_device_id)
        VALUES ($1, $2, $3)
        ON CONFLICT (identity) DO UPDATE SET last_active_time = EXCLUDED.last_active_time,
            active_device_id = EXCLUDED.active_device_id`,
		session.Identity, session.LastActiveTime.UTC(), session.ActiveDeviceID)
	return err
}

// TouchSession refreshes the liveness timestamp. Missing sessions are ignored.
func (r *PostgresRepository) TouchSession(ctx context.Context, identity string, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE auth_sessions SET last_active_time = $1 WHERE identity = $2`, at.UTC(), identity)
	return err
}
