package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/telegis/platform/internal/audit"
	"github.com/telegis/platform/internal/shared/auth"
	"github.com/telegis/platform/internal/shared/types"
)

func seedTrail(t *testing.T) (*Aggregator, auth.Actor, auth.Actor) {
	t.Helper()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	tick := 0
	trail := audit.NewTrail(audit.NewMemoryStore(), audit.WithClock(func() time.Time {
		tick++
		return now.Add(time.Duration(tick) * time.Second)
	}))

	vikram := auth.Actor{ID: types.NewID(), Name: "Vikram Singh", Role: auth.RoleTechnician}
	neha := auth.Actor{ID: types.NewID(), Name: "Neha Kapoor", Role: auth.RoleUser}
	ctx := context.Background()

	// Delhi: 4 granted, 1 denied. Punjab: 2 granted. Haryana: 1 denied.
	for i := 0; i < 4; i++ {
		trail.Record(ctx, audit.NewEntry(vikram, audit.EventAccessChecked, "region access granted").
			WithRegion("Delhi").WithTool("fiber-tracer"))
	}
	trail.Record(ctx, audit.NewEntry(neha, audit.EventAccessDenied, "region access denied").
		WithRegion("Delhi").Failed("region not in effective set"))
	for i := 0; i < 2; i++ {
		trail.Record(ctx, audit.NewEntry(vikram, audit.EventAccessChecked, "region access granted").
			WithRegion("Punjab"))
	}
	trail.Record(ctx, audit.NewEntry(neha, audit.EventAccessDenied, "region access denied").
		WithRegion("Haryana").Failed("region not in effective set"))

	return NewAggregator(trail), vikram, neha
}

func TestRegionUsage(t *testing.T) {
	agg, _, _ := seedTrail(t)

	usage, err := agg.RegionUsage(context.Background())
	if err != nil {
		t.Fatalf("region usage: %v", err)
	}
	if len(usage) != 3 {
		t.Fatalf("regions = %d, want 3", len(usage))
	}

	// Sorted by total activity, busiest first.
	if usage[0].Region != "Delhi" || usage[0].Granted != 4 || usage[0].Denied != 1 {
		t.Errorf("delhi = %+v, want 4 granted / 1 denied", usage[0])
	}
	if usage[1].Region != "Punjab" || usage[1].Granted != 2 || usage[1].Denied != 0 {
		t.Errorf("punjab = %+v, want 2 granted", usage[1])
	}
	if usage[2].Region != "Haryana" || usage[2].Granted != 0 || usage[2].Denied != 1 {
		t.Errorf("haryana = %+v, want 1 denied", usage[2])
	}
}

func TestHeatmapIntensity(t *testing.T) {
	agg, _, _ := seedTrail(t)

	points, err := agg.Heatmap(context.Background())
	if err != nil {
		t.Fatalf("heatmap: %v", err)
	}

	byRegion := make(map[string]HeatPoint, len(points))
	for _, p := range points {
		byRegion[p.Region] = p
	}

	// Delhi has the most successes (4), so it anchors the scale at 100.
	if byRegion["Delhi"].Intensity != 100 {
		t.Errorf("delhi intensity = %d, want 100", byRegion["Delhi"].Intensity)
	}
	if byRegion["Punjab"].Intensity != 50 {
		t.Errorf("punjab intensity = %d, want 50", byRegion["Punjab"].Intensity)
	}
	if byRegion["Haryana"].Intensity != 0 {
		t.Errorf("haryana intensity = %d, want 0", byRegion["Haryana"].Intensity)
	}
}

func TestHeatmapEmptyTrail(t *testing.T) {
	agg := NewAggregator(audit.NewTrail(audit.NewMemoryStore()))

	points, err := agg.Heatmap(context.Background())
	if err != nil {
		t.Fatalf("heatmap: %v", err)
	}
	if len(points) != 0 {
		t.Errorf("points = %v, want none", points)
	}
}

func TestUserActivity(t *testing.T) {
	agg, vikram, neha := seedTrail(t)

	activity, err := agg.UserActivity(context.Background())
	if err != nil {
		t.Fatalf("user activity: %v", err)
	}
	if len(activity) != 2 {
		t.Fatalf("users = %d, want 2", len(activity))
	}

	// Most active user first.
	if activity[0].UserID != vikram.ID {
		t.Fatalf("first user = %s, want Vikram", activity[0].UserName)
	}
	if activity[0].Actions != 6 {
		t.Errorf("actions = %d, want 6", activity[0].Actions)
	}
	if len(activity[0].Regions) != 2 {
		t.Errorf("regions = %v, want Delhi and Punjab", activity[0].Regions)
	}
	if activity[0].ToolUsage["fiber-tracer"] != 4 {
		t.Errorf("tool usage = %v, want fiber-tracer 4", activity[0].ToolUsage)
	}
	if !activity[0].LastActive.After(time.Time{}) {
		t.Error("last active not recorded")
	}

	if activity[1].UserID != neha.ID || activity[1].Actions != 2 {
		t.Errorf("second user = %+v, want Neha with 2 actions", activity[1])
	}
}
