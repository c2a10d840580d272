package domain

import "time"

// Bookmark is a saved story.
//
// Records are keyed by ID and never mutated in place: a change is always a
// full replacement of the stored record.
type Bookmark struct {
	// ─────────────────────────────
	// Identity (required)
	// ─────────────────────────────

	// ID is the story identifier. Unique within a collection.
	ID string `json:"id" yaml:"id"`

	// ─────────────────────────────
	// Description (optional)
	// ─────────────────────────────

	Name        string `json:"name,omitempty" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description"`
	PhotoURL    string `json:"photoUrl,omitempty" yaml:"photoUrl"`

	// ─────────────────────────────
	// Location (optional)
	// ─────────────────────────────

	// Lat and Lon are nil when the story carries no location.
	// A zero coordinate is a valid location.
	Lat *float64 `json:"lat,omitempty" yaml:"lat"`
	Lon *float64 `json:"lon,omitempty" yaml:"lon"`

	// ─────────────────────────────
	// Metadata
	// ─────────────────────────────

	CreatedAt *time.Time `json:"createdAt,omitempty" yaml:"createdAt"`
}

// HasLocation reports whether both coordinates are set.
func (b Bookmark) HasLocation() bool {
	return b.Lat != nil && b.Lon != nil
}

// Coordinate returns a pointer to v, for building optional fields.
func Coordinate(v float64) *float64 {
	return &v
}
