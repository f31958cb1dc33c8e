package model

import "time"

// Type is an occurrence category.  Its duration fixes the deadline of every
// occurrence created with it.
type Type struct {
	ID              uint64 `db:"id"`
	Title           string `db:"title"`
	Description     string `db:"description"`
	DurationSeconds int64  `db:"duration_seconds"`
}

func (t *Type) Duration() time.Duration {
	return time.Duration(t.DurationSeconds) * time.Second
}
