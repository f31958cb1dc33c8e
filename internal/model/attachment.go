package model

import "time"

// Comment is append-only free text on an occurrence.
type Comment struct {
	ID           uint64    `db:"id"`
	OccurrenceID uint64    `db:"occurrence_id"`
	AuthorID     uint64    `db:"author_id"`
	Body         string    `db:"body"`
	CreatedAt    time.Time `db:"created_at"`
}

// ParentKind names what an image hangs off.
type ParentKind string

const (
	ParentOccurrence ParentKind = "occurrence"
	ParentComment    ParentKind = "comment"
)

// Parent identifies the owner row of an image.
type Parent struct {
	Kind ParentKind
	ID   uint64
}

// Image mirrors the `images` table.  Exactly one of OccurrenceID and
// CommentID is set.
type Image struct {
	ID           uint64    `db:"id"`
	OccurrenceID *uint64   `db:"occurrence_id"`
	CommentID    *uint64   `db:"comment_id"`
	UploaderID   uint64    `db:"uploader_id"`
	ObjectKey    string    `db:"object_key"`
	URL          string    `db:"url"`
	ContentType  string    `db:"content_type"`
	SizeBytes    int64     `db:"size_bytes"`
	CreatedAt    time.Time `db:"created_at"`
}

func (i *Image) Parent() Parent {
	if i.CommentID != nil {
		return Parent{Kind: ParentComment, ID: *i.CommentID}
	}
	var id uint64
	if i.OccurrenceID != nil {
		id = *i.OccurrenceID
	}
	return Parent{Kind: ParentOccurrence, ID: id}
}
