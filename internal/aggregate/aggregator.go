package aggregate

import (
	"time"

	"village_tracker/internal/catalog"
	"village_tracker/internal/domain"
)

// Aggregator counts canonical listings into a snapshot. The snapshot's
// region/village shape comes from the catalog, not from the input, so a day
// with no listings for a village still records explicit zeros.
type Aggregator struct {
	catalog *catalog.Catalog
}

func New(c *catalog.Catalog) *Aggregator {
	return &Aggregator{catalog: c}
}

// Aggregate groups and counts a batch of listings captured at the given
// time. Listings sharing a non-empty SourceID are counted once, the
// last-seen status winning — scrapes of a virtual-scroll page can return
// the same card twice and that is not an error. Listings without a SourceID
// are never deduplicated.
func (a *Aggregator) Aggregate(listings []domain.Listing, capturedAt time.Time) domain.Snapshot {
	deduped := dedup(listings)

	counts := make(domain.Counts)
	for _, e := range a.catalog.AllVillages() {
		if counts[e.Region] == nil {
			counts[e.Region] = make(map[string]domain.VillageCounts)
		}
		counts[e.Region][e.Village] = domain.VillageCounts{}
	}

	snap := domain.Snapshot{
		CapturedAt: capturedAt.UTC(),
		Counts:     counts,
	}

	for _, l := range deduped {
		vc := counts[l.Region][l.Village]
		switch l.Status {
		case domain.StatusActive:
			vc.Active++
			snap.TotalActive++
		case domain.StatusPending:
			vc.Pending++
			snap.TotalPending++
		}
		counts[l.Region][l.Village] = vc
	}

	return snap
}

func dedup(listings []domain.Listing) []domain.Listing {
	out := make([]domain.Listing, 0, len(listings))
	byID := make(map[string]int) // SourceID -> index in out

	for _, l := range listings {
		if l.SourceID == "" {
			out = append(out, l)
			continue
		}
		if i, seen := byID[l.SourceID]; seen {
			out[i] = l // last-seen wins
			continue
		}
		byID[l.SourceID] = len(out)
		out = append(out, l)
	}
	return out
}
