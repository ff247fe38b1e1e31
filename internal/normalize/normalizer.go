package normalize

import (
	"errors"
	"strings"

	"village_tracker/internal/catalog"
	"village_tracker/internal/domain"
)

// Row-level errors. A rejected row is excluded from counting; it never
// aborts the run.
var (
	ErrEmptyVillage   = errors.New("empty village name")
	ErrUnknownStatus  = errors.New("unrecognized status text")
	ErrUnknownVillage = errors.New("village not in region catalog")
)

// statusTable is the exhaustive set of accepted raw status strings, keyed by
// trimmed lower-cased text. Anything not listed is rejected — a guessed
// status silently miscounts, a rejected one is at least visible.
var statusTable = map[string]domain.Status{
	"active":         domain.StatusActive,
	"available":      domain.StatusActive,
	"for sale":       domain.StatusActive,
	"pending":        domain.StatusPending,
	"sale pending":   domain.StatusPending,
	"under contract": domain.StatusPending,
}

// Normalizer turns one raw scraped row into a canonical Listing or rejects
// it with a typed reason. It is pure apart from the injected catalog.
type Normalizer struct {
	catalog *catalog.Catalog
}

func New(c *catalog.Catalog) *Normalizer {
	return &Normalizer{catalog: c}
}

// Normalize validates a raw row. On rejection the returned error is one of
// ErrEmptyVillage, ErrUnknownStatus, ErrUnknownVillage; ReasonOf maps it to
// a counting bucket.
func (n *Normalizer) Normalize(row domain.RawRow) (domain.Listing, error) {
	village := catalog.Normalize(row.Village)
	if village == "" {
		return domain.Listing{}, ErrEmptyVillage
	}

	status, ok := statusTable[strings.TrimSpace(strings.ToLower(row.Status))]
	if !ok {
		return domain.Listing{}, ErrUnknownStatus
	}

	entry, ok := n.catalog.Lookup(village)
	if !ok {
		return domain.Listing{}, ErrUnknownVillage
	}

	return domain.Listing{
		Village:  entry.Village,
		Region:   entry.Region,
		Status:   status,
		SourceID: strings.TrimSpace(row.SourceID),
	}, nil
}

// ReasonOf maps a rejection error to its RejectReason. Unrecognized errors
// return an empty reason; Normalize never produces one.
func ReasonOf(err error) domain.RejectReason {
	switch {
	case errors.Is(err, ErrEmptyVillage):
		return domain.RejectEmptyVillage
	case errors.Is(err, ErrUnknownStatus):
		return domain.RejectUnknownStatus
	case errors.Is(err, ErrUnknownVillage):
		return domain.RejectUnknownVillage
	}
	return ""
}
