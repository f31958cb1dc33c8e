package model

import (
	"time"

	"github.com/iliyamo/cityhelp/internal/geo"
)

// Counters aggregates interaction reports on an occurrence.
type Counters struct {
	Existing    uint32 `db:"existing_count"`
	NonExisting uint32 `db:"non_existing_count"`
	Closure     uint32 `db:"closure_count"`
}

// Occurrence mirrors the `occurrences` table.  Owner, type and location are
// fixed at creation.
type Occurrence struct {
	ID          uint64    `db:"id"`
	OwnerID     uint64    `db:"owner_id"`
	TypeID      uint64    `db:"type_id"`
	Latitude    float64   `db:"latitude"`
	Longitude   float64   `db:"longitude"`
	Description string    `db:"description"`
	ByVehicle   bool      `db:"by_vehicle"`
	ByFoot      bool      `db:"by_foot"`
	Active      bool      `db:"active"`
	CreatedAt   time.Time `db:"created_at"`
	Deadline    time.Time `db:"deadline"`
	Counters
}

// Point returns the occurrence location in (lng, lat) order.
func (o *Occurrence) Point() geo.Point {
	return geo.Point{Lng: o.Longitude, Lat: o.Latitude}
}

// Overdue reports whether the deadline has been reached at now.
func (o *Occurrence) Overdue(now time.Time) bool {
	return !now.Before(o.Deadline)
}

// OccurrenceFilter narrows List.  A nil Active returns both states.
type OccurrenceFilter struct {
	Active *bool
	Limit  int
	Offset int
}

// InteractionKind is the vote a reporter casts on an occurrence.
type InteractionKind string

const (
	InteractionExisting    InteractionKind = "EX"
	InteractionNonExisting InteractionKind = "IN"
	InteractionFinalized   InteractionKind = "FI"
)

func (k InteractionKind) Valid() bool {
	switch k {
	case InteractionExisting, InteractionNonExisting, InteractionFinalized:
		return true
	}
	return false
}

// Column is the occurrences counter column incremented by this kind.
func (k InteractionKind) Column() string {
	switch k {
	case InteractionNonExisting:
		return "non_existing_count"
	case InteractionFinalized:
		return "closure_count"
	}
	return "existing_count"
}

// Interaction is an append-only vote.
type Interaction struct {
	ID           uint64          `db:"id"`
	OccurrenceID uint64          `db:"occurrence_id"`
	ReporterID   uint64          `db:"reporter_id"`
	Kind         InteractionKind `db:"kind"`
	CreatedAt    time.Time       `db:"created_at"`
}
