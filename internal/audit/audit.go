package audit

import (
	"context"
	"log/slog"
	"time"
)

// MaxQueryLimit bounds how many entries a single audit query may return.
const MaxQueryLimit = 1000

// Entry is one append-only audit record. Entries are never updated or
// deleted by the application.
type Entry struct {
	ID        int64
	Identity  string
	Action    string
	Details   string
	Timestamp time.Time
}

// Recorder accepts audit events. Every state-changing operation and every
// denied privileged action is recorded through this interface.
type Recorder interface {
	Record(ctx context.Context, identity, action, details string)
}

// Repository persists audit entries.
type Repository interface {
	Append(ctx context.Context, entry Entry) error
	ListRange(ctx context.Context, start, end time.Time, limit int) ([]Entry, error)
}

// Service writes and queries the audit trail.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds the audit service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Record appends an entry. Persistence failures are logged but do not fail
// the calling operation: the trail is best-effort relative to storage faults,
// never skipped by the caller.
func (s *Service) Record(ctx context.Context, identity, action, details string) {
	entry := Entry{
		Identity:  identity,
		Action:    action,
		Details:   details,
		Timestamp: s.now(),
	}
	s.logger.Info("audit",
		slog.String("identity", identity),
		slog.String("action", action),
		slog.String("details", details),
	)
	if err := s.repo.Append(ctx, entry); err != nil {
		s.logger.Error("audit append failed", slog.String("action", action), slog.Any("error", err))
	}
}

// ListRange returns entries with start <= timestamp <= end, newest first.
// The limit is clamped to [1, MaxQueryLimit].
func (s *Service) ListRange(ctx context.Context, start, end time.Time, limit int) ([]Entry, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > MaxQueryLimit {
		limit = MaxQueryLimit
	}
	return s.repo.ListRange(ctx, start, end, limit)
}
