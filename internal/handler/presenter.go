package handler

import (
	"fmt"
	"time"

	"github.com/iliyamo/cityhelp/internal/model"
	"github.com/iliyamo/cityhelp/internal/service"
	"github.com/iliyamo/cityhelp/internal/utils"
)

// ----- response DTOs -----

type userResp struct {
	ID                 uint64    `json:"id"`
	Nickname           string    `json:"nickname"`
	Email              string    `json:"email"`
	FirstName          string    `json:"first_name"`
	LastName           string    `json:"last_name"`
	BirthDate          string    `json:"birth_date"`
	Role               string    `json:"role"`
	AnswerCount        uint32    `json:"answer_count"`
	TrustedAnswerCount uint32    `json:"trusted_answer_count"`
	CreatedAt          time.Time `json:"created_at"`
}

func presentUser(u *model.User) userResp {
	return userResp{
		ID:                 u.ID,
		Nickname:           u.Nickname,
		Email:              u.Email,
		FirstName:          u.FirstName,
		LastName:           u.LastName,
		BirthDate:          u.BirthDate.Format(time.DateOnly),
		Role:               u.Role,
		AnswerCount:        u.AnswerCount,
		TrustedAnswerCount: u.TrustedAnswerCount,
		CreatedAt:          u.CreatedAt,
	}
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type authResp struct {
	User    userResp  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

func presentSession(s *service.Session) authResp {
	return authResp{
		User:    presentUser(s.User),
		Access:  presentAccess(s.Access),
		Refresh: tokenPart{Token: s.Refresh.Raw, Expires: s.Refresh.Exp},
	}
}

func presentAccess(t utils.AccessToken) tokenPart {
	return tokenPart{Token: t.Token, Expires: t.Exp}
}

type typeResp struct {
	ID              uint64 `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	Duration        string `json:"duration"`
	DurationSeconds int64  `json:"duration_seconds"`
}

func presentType(t *model.Type) typeResp {
	return typeResp{
		ID:              t.ID,
		Title:           t.Title,
		Description:     t.Description,
		Duration:        formatDuration(t.Duration()),
		DurationSeconds: t.DurationSeconds,
	}
}

// formatDuration renders "[D ]HH:MM:SS", the form ParseDuration accepts.
func formatDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	days := secs / 86400
	secs %= 86400
	clock := fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs%3600/60, secs%60)
	if days > 0 {
		return fmt.Sprintf("%d %s", days, clock)
	}
	return clock
}

type countersResp struct {
	Existing    uint32 `json:"existing"`
	NonExisting uint32 `json:"non_existing"`
	Closure     uint32 `json:"closure"`
}

type occurrenceResp struct {
	ID          uint64       `json:"id"`
	OwnerID     uint64       `json:"owner_id"`
	TypeID      uint64       `json:"type_id"`
	Latitude    float64      `json:"latitude"`
	Longitude   float64      `json:"longitude"`
	Description string       `json:"description"`
	ByVehicle   bool         `json:"by_vehicle"`
	ByFoot      bool         `json:"by_foot"`
	Active      bool         `json:"active"`
	CreatedAt   time.Time    `json:"created_at"`
	Deadline    time.Time    `json:"deadline"`
	Counters    countersResp `json:"counters"`
}

func presentOccurrence(o *model.Occurrence) occurrenceResp {
	return occurrenceResp{
		ID:          o.ID,
		OwnerID:     o.OwnerID,
		TypeID:      o.TypeID,
		Latitude:    o.Latitude,
		Longitude:   o.Longitude,
		Description: o.Description,
		ByVehicle:   o.ByVehicle,
		ByFoot:      o.ByFoot,
		Active:      o.Active,
		CreatedAt:   o.CreatedAt,
		Deadline:    o.Deadline,
		Counters:    countersResp{Existing: o.Existing, NonExisting: o.NonExisting, Closure: o.Closure},
	}
}

type interactionResp struct {
	ID           uint64    `json:"id"`
	OccurrenceID uint64    `json:"occurrence_id"`
	ReporterID   uint64    `json:"reporter_id"`
	Kind         string    `json:"kind"`
	CreatedAt    time.Time `json:"created_at"`
}

func presentInteraction(in *model.Interaction) interactionResp {
	return interactionResp{
		ID:           in.ID,
		OccurrenceID: in.OccurrenceID,
		ReporterID:   in.ReporterID,
		Kind:         string(in.Kind),
		CreatedAt:    in.CreatedAt,
	}
}

type commentResp struct {
	ID           uint64    `json:"id"`
	OccurrenceID uint64    `json:"occurrence_id"`
	AuthorID     uint64    `json:"author_id"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"created_at"`
}

func presentComment(c *model.Comment) commentResp {
	return commentResp{ID: c.ID, OccurrenceID: c.OccurrenceID, AuthorID: c.AuthorID, Text: c.Body, CreatedAt: c.CreatedAt}
}

type imageResp struct {
	ID           uint64    `json:"id"`
	OccurrenceID *uint64   `json:"occurrence_id,omitempty"`
	CommentID    *uint64   `json:"comment_id,omitempty"`
	UploaderID   uint64    `json:"uploader_id"`
	URL          string    `json:"url"`
	ContentType  string    `json:"content_type"`
	SizeBytes    int64     `json:"size_bytes"`
	CreatedAt    time.Time `json:"created_at"`
}

func presentImage(i *model.Image) imageResp {
	return imageResp{
		ID:           i.ID,
		OccurrenceID: i.OccurrenceID,
		CommentID:    i.CommentID,
		UploaderID:   i.UploaderID,
		URL:          i.URL,
		ContentType:  i.ContentType,
		SizeBytes:    i.SizeBytes,
		CreatedAt:    i.CreatedAt,
	}
}

// listResp wraps collections.  Page and Limit are set for paged listings.
type listResp[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page,omitempty"`
	Limit int `json:"limit,omitempty"`
}

// presentAll maps items through fn.  The result is never nil so empty lists
// encode as [].
func presentAll[M, R any](items []M, fn func(*M) R) []R {
	out := make([]R, 0, len(items))
	for i := range items {
		out = append(out, fn(&items[i]))
	}
	return out
}
