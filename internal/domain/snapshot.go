package domain

import "time"

// VillageCounts holds the per-status counts for one village. Also used for
// deltas, where values may be negative.
type VillageCounts struct {
	Active  int `json:"active"`
	Pending int `json:"pending"`
}

// Counts is the nested region -> village -> counts structure. encoding/json
// marshals map keys in sorted order, so a Counts value serializes
// identically regardless of insertion order.
type Counts map[string]map[string]VillageCounts

// Snapshot is one immutable, timestamped aggregation of listing counts
// across every known region and village. Villages with no listings appear
// with zero counts so historical charts never show false gaps.
type Snapshot struct {
	ID            int64
	CapturedAt    time.Time
	Counts        Counts
	TotalActive   int
	TotalPending  int
	TotalRejected int
	Outcome       Outcome
}

// Get returns the counts cell for a village, zero-valued when absent.
func (c Counts) Get(region, village string) VillageCounts {
	return c[region][village]
}

// Diff returns c minus prev per village, zero-filling either side. The
// result covers the union of both count structures.
func (c Counts) Diff(prev Counts) Counts {
	out := make(Counts)
	set := func(region, village string, vc VillageCounts) {
		if out[region] == nil {
			out[region] = make(map[string]VillageCounts)
		}
		out[region][village] = vc
	}
	for region, villages := range c {
		for village, vc := range villages {
			p := prev.Get(region, village)
			set(region, village, VillageCounts{
				Active:  vc.Active - p.Active,
				Pending: vc.Pending - p.Pending,
			})
		}
	}
	for region, villages := range prev {
		for village, p := range villages {
			if _, ok := c[region][village]; ok {
				continue
			}
			set(region, village, VillageCounts{Active: -p.Active, Pending: -p.Pending})
		}
	}
	return out
}
