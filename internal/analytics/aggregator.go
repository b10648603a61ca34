// Package analytics derives usage statistics from the audit trail. It
// holds no state of its own; every report is recomputable from the trail
// at any time.
package analytics

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/telegis/platform/internal/audit"
	"github.com/telegis/platform/internal/shared/types"
)

// RegionStat counts granted versus denied activity for one region.
type RegionStat struct {
	Region  string `json:"region"`
	Granted int    `json:"granted"`
	Denied  int    `json:"denied"`
	Total   int    `json:"total"`
}

// UserStat summarises one user's recorded activity.
type UserStat struct {
	UserID     types.ID       `json:"user_id"`
	UserName   string         `json:"user_name"`
	Regions    []string       `json:"regions"`
	ToolUsage  map[string]int `json:"tool_usage"`
	Actions    int            `json:"actions"`
	LastActive time.Time      `json:"last_active"`
}

// HeatPoint is a region's activity normalized against the busiest region.
// Intensity is 0..100, 100 for the region with the most successful events.
type HeatPoint struct {
	Region       string `json:"region"`
	SuccessCount int    `json:"success_count"`
	Intensity    int    `json:"intensity"`
}

// Aggregator computes reports from the audit trail.
type Aggregator struct {
	trail *audit.Trail
}

// NewAggregator creates an analytics aggregator
func NewAggregator(trail *audit.Trail) *Aggregator {
	return &Aggregator{trail: trail}
}

// RegionUsage returns per-region counts of granted and denied events,
// sorted by total activity, busiest first.
func (a *Aggregator) RegionUsage(ctx context.Context) ([]RegionStat, error) {
	entries, err := a.trail.Query(ctx, audit.Filter{})
	if err != nil {
		return nil, err
	}

	byRegion := make(map[string]*RegionStat)
	for _, e := range entries {
		if e.Region == "" {
			continue
		}
		stat, ok := byRegion[e.Region]
		if !ok {
			stat = &RegionStat{Region: e.Region}
			byRegion[e.Region] = stat
		}
		if e.Success {
			stat.Granted++
		} else {
			stat.Denied++
		}
		stat.Total++
	}

	out := make([]RegionStat, 0, len(byRegion))
	for _, stat := range byRegion {
		out = append(out, *stat)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total == out[j].Total {
			return out[i].Region < out[j].Region
		}
		return out[i].Total > out[j].Total
	})
	return out, nil
}

// UserActivity returns per-user summaries: distinct regions touched, tool
// usage, action count, and the most recent activity timestamp.
func (a *Aggregator) UserActivity(ctx context.Context) ([]UserStat, error) {
	entries, err := a.trail.Query(ctx, audit.Filter{})
	if err != nil {
		return nil, err
	}

	type acc struct {
		stat    *UserStat
		regions types.RegionSet
	}
	byUser := make(map[types.ID]*acc)
	for _, e := range entries {
		u, ok := byUser[e.UserID]
		if !ok {
			u = &acc{
				stat: &UserStat{
					UserID:    e.UserID,
					UserName:  e.UserName,
					ToolUsage: make(map[string]int),
				},
				regions: types.NewRegionSet(),
			}
			byUser[e.UserID] = u
		}
		u.stat.Actions++
		if e.Region != "" {
			u.regions.Add(e.Region)
		}
		if e.ToolName != "" {
			u.stat.ToolUsage[e.ToolName]++
		}
		if e.Timestamp.After(u.stat.LastActive) {
			u.stat.LastActive = e.Timestamp
		}
	}

	out := make([]UserStat, 0, len(byUser))
	for _, u := range byUser {
		u.stat.Regions = u.regions.Sorted()
		out = append(out, *u.stat)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Actions == out[j].Actions {
			return out[i].UserID < out[j].UserID
		}
		return out[i].Actions > out[j].Actions
	})
	return out, nil
}

// Heatmap returns per-region intensity scores normalized against the
// busiest region by successful events.
func (a *Aggregator) Heatmap(ctx context.Context) ([]HeatPoint, error) {
	usage, err := a.RegionUsage(ctx)
	if err != nil {
		return nil, err
	}

	maxSuccess := 0
	for _, stat := range usage {
		if stat.Granted > maxSuccess {
			maxSuccess = stat.Granted
		}
	}

	out := make([]HeatPoint, 0, len(usage))
	for _, stat := range usage {
		intensity := 0
		if maxSuccess > 0 {
			intensity = int(math.Round(100 * float64(stat.Granted) / float64(maxSuccess)))
		}
		out = append(out, HeatPoint{
			Region:       stat.Region,
			SuccessCount: stat.Granted,
			Intensity:    intensity,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Intensity == out[j].Intensity {
			return out[i].Region < out[j].Region
		}
		return out[i].Intensity > out[j].Intensity
	})
	return out, nil
}
