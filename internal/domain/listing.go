package domain

// RawRow is one scraped listing card as it comes off the page: loosely
// structured text, not yet validated.
type RawRow struct {
	Village  string `json:"village"`
	Status   string `json:"status"`
	SourceID string `json:"source_id,omitempty"` // MLS-style identifier when the card exposes one
	Raw      string `json:"raw,omitempty"`
}

// Status is the canonical listing status. Raw status text that does not map
// to one of these is rejected, never coerced.
type Status string

const (
	StatusActive  Status = "active"
	StatusPending Status = "pending"
)

// Listing is a validated, canonical listing record. Listings live only for
// the duration of a single run.
type Listing struct {
	Village  string // trimmed, case-normalized
	Region   string // resolved via the region catalog
	Status   Status
	SourceID string // empty when the card had no identifier
}

// RejectReason classifies why a raw row was excluded from counting.
type RejectReason string

const (
	RejectEmptyVillage   RejectReason = "empty_village"
	RejectUnknownStatus  RejectReason = "unknown_status"
	RejectUnknownVillage RejectReason = "unknown_village"
)
