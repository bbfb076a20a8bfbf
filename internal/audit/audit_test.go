package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kulicha-project/kulicha/internal/logging"
)

func TestRecordAndListRange(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo, logging.Discard())
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		ts := base.Add(time.Duration(i) * time.Minute)
		svc.now = func() time.Time { return ts }
		svc.Record(ctx, "id-1", "TestAction", "entry")
	}

	entries, err := svc.ListRange(ctx, base, base.Add(time.Hour), 10)
	if err != nil {
		t.Fatalf("list range: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	// Newest first.
	for i := 1; i < len(entries); i++ {
		if entries[i].Timestamp.After(entries[i-1].Timestamp) {
			t.Fatalf("entries not sorted newest first: %v", entries)
		}
	}

	// Window excludes entries outside [start, end].
	entries, err = svc.ListRange(ctx, base.Add(30*time.Second), base.Add(90*time.Second), 10)
	if err != nil {
		t.Fatalf("list range: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry in narrow window, got %d", len(entries))
	}
}

func TestListRangeClampsLimit(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo, logging.Discard())
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	for i := 0; i < 5; i++ {
		svc.Record(ctx, "id-1", "TestAction", "entry")
	}

	entries, err := svc.ListRange(ctx, base.Add(-time.Minute), base.Add(time.Minute), 0)
	if err != nil {
		t.Fatalf("list range: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("limit 0 should clamp to 1, got %d entries", len(entries))
	}
}

type failingRepository struct{}

func (failingRepository) Append(context.Context, Entry) error { return errors.New("storage down") }
func (failingRepository) ListRange(context.Context, time.Time, time.Time, int) ([]Entry, error) {
	return nil, errors.New("storage down")
}

func TestRecordToleratesStorageFailure(t *testing.T) {
	svc := NewService(failingRepository{}, logging.Discard())
	// Must not panic or surface an error to the caller.
	svc.Record(context.Background(), "id-1", "TestAction", "entry")
}
