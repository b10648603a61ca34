package audit

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/telegis/platform/internal/shared/auth"
	"github.com/telegis/platform/internal/shared/errors"
	"github.com/telegis/platform/internal/shared/types"
)

var testActor = auth.Actor{ID: types.NewID(), Name: "Vikram Singh", Role: auth.RoleTechnician}

func TestRecordAssignsIDAndTimestamp(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	trail := NewTrail(NewMemoryStore(), WithClock(func() time.Time { return now }))

	e := trail.Record(ctx, NewEntry(testActor, EventToolUsed, "used fiber tracer").WithTool("fiber-tracer"))
	if e.ID.IsZero() {
		t.Error("entry id not assigned")
	}
	if !e.Timestamp.Equal(now) {
		t.Errorf("timestamp = %v, want %v", e.Timestamp, now)
	}
	if e.Severity != SeverityInfo || !e.Success {
		t.Errorf("defaults = %s/%v, want info/success", e.Severity, e.Success)
	}
}

func TestQueryNewestFirst(t *testing.T) {
	ctx := context.Background()
	tick := 0
	trail := NewTrail(NewMemoryStore(), WithClock(func() time.Time {
		tick++
		return time.Date(2026, 3, 1, 10, 0, tick, 0, time.UTC)
	}))

	for i := 0; i < 3; i++ {
		trail.Record(ctx, NewEntry(testActor, EventToolUsed, "action "+strconv.Itoa(i)))
	}

	entries, err := trail.Query(ctx, Filter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	if entries[0].Action != "action 2" || entries[2].Action != "action 0" {
		t.Errorf("order = [%s %s %s], want newest first", entries[0].Action, entries[1].Action, entries[2].Action)
	}
}

func TestCapEvictsOldestFirst(t *testing.T) {
	ctx := context.Background()
	const max = 100
	const extra = 50
	trail := NewTrail(NewMemoryStore(), WithMaxEntries(max))

	for i := 0; i < max+extra; i++ {
		trail.Record(ctx, NewEntry(testActor, EventToolUsed, strconv.Itoa(i)))
	}

	entries, err := trail.Query(ctx, Filter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(entries) != max {
		t.Fatalf("entries = %d, want exactly %d", len(entries), max)
	}

	// The survivors are the most recent by insertion order, newest first.
	for i, e := range entries {
		want := strconv.Itoa(max + extra - 1 - i)
		if e.Action != want {
			t.Fatalf("entries[%d] = %q, want %q", i, e.Action, want)
		}
	}
}

func TestFilter(t *testing.T) {
	ctx := context.Background()
	trail := NewTrail(NewMemoryStore())

	other := auth.Actor{ID: types.NewID(), Name: "Neha Kapoor", Role: auth.RoleUser}
	trail.Record(ctx, NewEntry(testActor, EventAccessChecked, "granted").WithRegion("Delhi"))
	trail.Record(ctx, NewEntry(testActor, EventAccessDenied, "denied").WithRegion("Punjab").
		WithSeverity(SeverityWarning).Failed("no access"))
	trail.Record(ctx, NewEntry(other, EventAccessChecked, "granted").WithRegion("Delhi"))

	failed := false
	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 3},
		{"by user", Filter{UserID: testActor.ID}, 2},
		{"by region", Filter{Region: "Delhi"}, 2},
		{"by event type", Filter{EventType: EventAccessDenied}, 1},
		{"by severity", Filter{Severity: SeverityWarning}, 1},
		{"by outcome", Filter{Success: &failed}, 1},
		{"conjunctive", Filter{UserID: testActor.ID, Region: "Delhi"}, 1},
		{"with limit", Filter{Limit: 2}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := trail.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			if len(entries) != tt.want {
				t.Errorf("entries = %d, want %d", len(entries), tt.want)
			}
		})
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	trail := NewTrail(NewMemoryStore())

	trail.Record(ctx, NewEntry(testActor, EventAccessChecked, "granted").WithRegion("Delhi"))
	trail.Record(ctx, NewEntry(testActor, EventAccessChecked, "granted").WithRegion("Delhi"))
	trail.Record(ctx, NewEntry(testActor, EventAccessDenied, "denied").WithRegion("Punjab").Failed("no access"))

	stats, err := trail.Stats(ctx, Filter{})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("total = %d, want 3", stats.Total)
	}
	if stats.SuccessCount != 2 || stats.FailureCount != 1 {
		t.Errorf("success/failure = %d/%d, want 2/1", stats.SuccessCount, stats.FailureCount)
	}
	if stats.ByRegion["Delhi"] != 2 {
		t.Errorf("by region = %v", stats.ByRegion)
	}
	if stats.ByType[string(EventAccessDenied)] != 1 {
		t.Errorf("by type = %v", stats.ByType)
	}
	if len(stats.Recent) != 3 {
		t.Errorf("recent = %d, want 3", len(stats.Recent))
	}
}

type failingStore struct {
	Store
}

func (failingStore) Insert(context.Context, *Entry) error {
	return fmt.Errorf("disk full")
}

func TestRecordSwallowsStoreFailure(t *testing.T) {
	trail := NewTrail(failingStore{Store: NewMemoryStore()})

	// Record must not panic or surface the failure; the caller's mutation
	// already happened and cannot be rolled back by the audit side effect.
	e := trail.Record(context.Background(), NewEntry(testActor, EventToolUsed, "doomed"))
	if e == nil || e.ID.IsZero() {
		t.Fatal("entry should still be returned with an id")
	}
}

type brokenListStore struct {
	Store
}

func (brokenListStore) List(context.Context, Filter) ([]Entry, error) {
	return nil, fmt.Errorf("connection reset")
}

func TestQuerySurfacesStorageError(t *testing.T) {
	trail := NewTrail(brokenListStore{Store: NewMemoryStore()})

	_, err := trail.Query(context.Background(), Filter{})
	if !errors.Is(err, errors.ErrStorage) {
		t.Fatalf("want storage error, got %v", err)
	}
}

func TestFailedEntryBumpsSeverity(t *testing.T) {
	e := NewEntry(testActor, EventToolUsed, "broke").Failed("boom")
	if e.Success {
		t.Error("failed entry should not be marked successful")
	}
	if e.Severity != SeverityError {
		t.Errorf("severity = %s, want error", e.Severity)
	}

	// An explicit severity set before Failed is preserved.
	w := NewEntry(testActor, EventAccessDenied, "denied").WithSeverity(SeverityWarning).Failed("no")
	if w.Severity != SeverityWarning {
		t.Errorf("severity = %s, want warning preserved", w.Severity)
	}
}
