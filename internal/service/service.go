// Package service holds the domain rules: identity and age policy, the
// occurrence lifecycle and consensus, attachment ownership and region
// filters.  Every operation validates and authorizes before it mutates.
package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"log/slog"
	"time"

	"github.com/iliyamo/cityhelp/internal/events"
	"github.com/iliyamo/cityhelp/internal/geo"
	"github.com/iliyamo/cityhelp/internal/model"
)

type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByNickname(ctx context.Context, nickname string) (*model.User, error)
	Update(ctx context.Context, u *model.User) error
	Delete(ctx context.Context, id uint64) error
	List(ctx context.Context, limit, offset int) ([]model.User, int, error)
}

type TokenRepository interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

type TypeRepository interface {
	Create(ctx context.Context, t *model.Type) error
	GetByID(ctx context.Context, id uint64) (*model.Type, error)
	List(ctx context.Context) ([]model.Type, error)
	Update(ctx context.Context, t *model.Type) error
	Delete(ctx context.Context, id uint64) error
}

type OccurrenceRepository interface {
	Create(ctx context.Context, o *model.Occurrence) error
	GetByID(ctx context.Context, id uint64) (*model.Occurrence, error)
	List(ctx context.Context, f model.OccurrenceFilter) ([]model.Occurrence, int, error)
	ListInBox(ctx context.Context, box geo.Box, active *bool) ([]model.Occurrence, error)
	UpdateDetails(ctx context.Context, o *model.Occurrence) error
	Delete(ctx context.Context, id uint64) error
	RecordInteraction(ctx context.Context, in *model.Interaction, closeWhen func(model.Counters) bool) (*model.Occurrence, bool, error)
	ListInteractions(ctx context.Context, occurrenceID uint64) ([]model.Interaction, error)
	ExpireIfOverdue(ctx context.Context, id uint64, now time.Time) (bool, error)
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

type CommentRepository interface {
	Create(ctx context.Context, c *model.Comment) error
	GetByID(ctx context.Context, id uint64) (*model.Comment, error)
	ListByOccurrence(ctx context.Context, occurrenceID uint64) ([]model.Comment, error)
}

type ImageRepository interface {
	Create(ctx context.Context, img *model.Image) error
	GetByID(ctx context.Context, id uint64) (*model.Image, error)
	ListByParent(ctx context.Context, p model.Parent) ([]model.Image, error)
	Delete(ctx context.Context, id uint64) error
}

// ImageStore keeps image bytes and hands out public URLs.
type ImageStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

// Geocoder resolves a place id to its boundary polygon.
type Geocoder interface {
	Polygon(ctx context.Context, placeID uint64) (geo.Polygon, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

// Option tunes a service at construction.
type Option func(*options)

type options struct {
	now    func() time.Time
	logger *slog.Logger
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, logger: slog.Default()}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Page is a 1-based page request.
type Page struct {
	Page  int
	Limit int
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

func (p Page) normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultPageLimit
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	return p
}

func (p Page) offset() int { return (p.Page - 1) * p.Limit }

// PageResult is one page of items plus the total count.
type PageResult[T any] struct {
	Items []T
	Total int
	Page  int
	Limit int
}

// publish sends ev after a successful commit.  Failures are logged only.
func publish(ctx context.Context, pub EventPublisher, logger *slog.Logger, ev events.Event) {
	if pub == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := pub.Publish(ctx, ev); err != nil {
		logger.Warn("publish event failed", "kind", ev.Kind, "occurrence_id", ev.OccurrenceID, "err", err)
	}
}
