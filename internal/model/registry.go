package model

import "time"

// Change says which dimensions of a record differ from the last observation.
type Change struct {
	ObjectsChanged    bool `json:"objects_changed"`
	RequisitesChanged bool `json:"requisites_changed"`
}

// Any reports whether either dimension changed.
func (c Change) Any() bool {
	return c.ObjectsChanged || c.RequisitesChanged
}

// RegistryEntry is the mutable latest-state projection of a tracked contract.
type RegistryEntry struct {
	CreatedAt      time.Time
	LastChecked    *time.Time
	LastChanged    *time.Time
	ID             string
	Customer       string
	PriceRaw       string
	PriceSource    PriceSource
	DateStart      string
	DateEnd        string
	URL            string
	ObjectsHash    string
	RequisitesHash string
	SheetID        string
	SheetURL       string
	PaidRaw        string
	AcceptedRaw    string
	Price          float64
	Paid           float64
	Accepted       float64
}

// IsStub reports whether the entry has never been checked successfully.
func (e *RegistryEntry) IsStub() bool {
	return e.LastChecked == nil
}

// CheckEvent is one append-only row per poll attempt that produced a record.
type CheckEvent struct {
	CheckedAt      time.Time
	ID             string
	ObjectsHash    string
	RequisitesHash string
	Price          float64
	RowID          int64
}

// Dimension names a hashed part of a record.
type Dimension string

// Hashed dimensions.
const (
	DimensionObjects    Dimension = "objects"
	DimensionRequisites Dimension = "requisites"
)

// ChangeSnapshot is an append-only copy of one dimension taken when it changed.
type ChangeSnapshot struct {
	ChangedAt time.Time
	ID        string
	Dimension Dimension
	Payload   string
	Hash      string
	RowID     int64
}

// FeedTrigger maps a contract to the external feed whose new entries trigger a check.
type FeedTrigger struct {
	LastPolled  *time.Time
	ID          string
	FeedURL     string
	LastMarker  string
	LastPubDate string
}
