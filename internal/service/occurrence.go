package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/iliyamo/cityhelp/internal/events"
	"github.com/iliyamo/cityhelp/internal/geo"
	"github.com/iliyamo/cityhelp/internal/geocoding"
	"github.com/iliyamo/cityhelp/internal/model"
	"github.com/iliyamo/cityhelp/internal/repository"
	"github.com/iliyamo/cityhelp/internal/validation"
)

// OccurrenceService runs the occurrence lifecycle: creation, interaction
// reports with their closure policy, expiry and region filters.
type OccurrenceService struct {
	occurrences OccurrenceRepository
	types       TypeRepository
	geocoder    Geocoder
	policy      ClosurePolicy
	events      EventPublisher
	options
}

func NewOccurrenceService(occurrences OccurrenceRepository, types TypeRepository, geocoder Geocoder,
	policy ClosurePolicy, pub EventPublisher, opts ...Option) *OccurrenceService {
	return &OccurrenceService{
		occurrences: occurrences,
		types:       types,
		geocoder:    geocoder,
		policy:      policy,
		events:      pub,
		options:     buildOptions(opts),
	}
}

type CreateOccurrenceInput struct {
	TypeID      *uint64  `json:"type_id" validate:"required"`
	Latitude    *float64 `json:"latitude" validate:"required,lat"`
	Longitude   *float64 `json:"longitude" validate:"required,lng"`
	ByVehicle   *bool    `json:"by_vehicle"`
	ByFoot      *bool    `json:"by_foot"`
	Description string   `json:"description" validate:"notblank"`
}

// UpdateOccurrenceInput touches only the owner-editable fields.
type UpdateOccurrenceInput struct {
	Description *string `json:"description" validate:"omitnil,notblank"`
	ByVehicle   *bool   `json:"by_vehicle"`
	ByFoot      *bool   `json:"by_foot"`
}

// InteractionResult is the outcome of one report.
type InteractionResult struct {
	Interaction *model.Interaction
	Occurrence  *model.Occurrence
	Closed      bool
}

// Create stores a new active occurrence owned by ownerID with counters
// (1, 0, 0) and deadline = created_at + type duration.
func (s *OccurrenceService) Create(ctx context.Context, ownerID uint64, in CreateOccurrenceInput) (*model.Occurrence, error) {
	if ownerID == 0 {
		return nil, ErrAuthentication
	}
	in.Description = strings.TrimSpace(in.Description)
	if fields := validation.Struct(in); fields != nil {
		return nil, invalidFields(fields)
	}
	typ, err := s.types.GetByID(ctx, *in.TypeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalidField("type_id", "unknown type")
		}
		return nil, fromRepo("load type", err)
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	o := &model.Occurrence{
		OwnerID:     ownerID,
		TypeID:      typ.ID,
		Latitude:    *in.Latitude,
		Longitude:   *in.Longitude,
		Description: in.Description,
		ByVehicle:   in.ByVehicle != nil && *in.ByVehicle,
		ByFoot:      in.ByFoot != nil && *in.ByFoot,
		Active:      true,
		CreatedAt:   now,
		Deadline:    now.Add(typ.Duration()),
		Counters:    model.Counters{Existing: 1},
	}
	if err := s.occurrences.Create(ctx, o); err != nil {
		return nil, fromRepo("create occurrence", err)
	}
	publish(ctx, s.events, s.logger, events.Event{
		Kind: events.OccurrenceCreated, OccurrenceID: o.ID, UserID: ownerID, OccurredAt: now,
	})
	return o, nil
}

func (s *OccurrenceService) Get(ctx context.Context, id uint64) (*model.Occurrence, error) {
	o, err := s.occurrences.GetByID(ctx, id)
	if err != nil {
		return nil, fromRepo("get occurrence", err)
	}
	return o, nil
}

// List pages through occurrences, optionally only active or inactive ones.
func (s *OccurrenceService) List(ctx context.Context, active *bool, p Page) (*PageResult[model.Occurrence], error) {
	p = p.normalize()
	items, total, err := s.occurrences.List(ctx, model.OccurrenceFilter{Active: active, Limit: p.Limit, Offset: p.offset()})
	if err != nil {
		return nil, fromRepo("list occurrences", err)
	}
	return &PageResult[model.Occurrence]{Items: items, Total: total, Page: p.Page, Limit: p.Limit}, nil
}

// Update lets the owner change the description and passability flags.
func (s *OccurrenceService) Update(ctx context.Context, callerID, id uint64, in UpdateOccurrenceInput) (*model.Occurrence, error) {
	if in.Description != nil {
		*in.Description = strings.TrimSpace(*in.Description)
	}
	if fields := validation.Struct(in); fields != nil {
		return nil, invalidFields(fields)
	}
	o, err := s.ownedOccurrence(ctx, callerID, id)
	if err != nil {
		return nil, err
	}
	if in.Description != nil {
		o.Description = *in.Description
	}
	if in.ByVehicle != nil {
		o.ByVehicle = *in.ByVehicle
	}
	if in.ByFoot != nil {
		o.ByFoot = *in.ByFoot
	}
	if err := s.occurrences.UpdateDetails(ctx, o); err != nil {
		return nil, fromRepo("update occurrence", err)
	}
	return o, nil
}

// Delete is owner-only and fails with ErrReferenced once the occurrence has
// interactions, comments or images.
func (s *OccurrenceService) Delete(ctx context.Context, callerID, id uint64) error {
	if _, err := s.ownedOccurrence(ctx, callerID, id); err != nil {
		return err
	}
	return fromRepo("delete occurrence", s.occurrences.Delete(ctx, id))
}

func (s *OccurrenceService) ownedOccurrence(ctx context.Context, callerID, id uint64) (*model.Occurrence, error) {
	o, err := s.occurrences.GetByID(ctx, id)
	if err != nil {
		return nil, fromRepo("get occurrence", err)
	}
	if o.OwnerID != callerID {
		return nil, ErrForbidden
	}
	return o, nil
}

// ReportInteraction records one vote and bumps exactly one counter.  The
// closure policy runs on the fresh counters in the same transaction.
// Repeat votes from the same reporter are accepted.
func (s *OccurrenceService) ReportInteraction(ctx context.Context, reporterID, occurrenceID uint64, kind model.InteractionKind) (*InteractionResult, error) {
	if reporterID == 0 {
		return nil, ErrAuthentication
	}
	if !kind.Valid() {
		return nil, invalidField("kind", "must be one of: EX IN FI")
	}
	in := &model.Interaction{
		OccurrenceID: occurrenceID,
		ReporterID:   reporterID,
		Kind:         kind,
		CreatedAt:    s.now().UTC().Truncate(time.Microsecond),
	}
	o, closed, err := s.occurrences.RecordInteraction(ctx, in, s.policy.ShouldClose)
	if err != nil {
		if errors.Is(err, repository.ErrInactive) {
			return nil, invalid(CodeOccurrenceInactive, "occurrence is no longer active")
		}
		return nil, fromRepo("record interaction", err)
	}

	publish(ctx, s.events, s.logger, events.Event{
		Kind: events.InteractionReported, OccurrenceID: occurrenceID, UserID: reporterID,
		Interaction: string(kind), OccurredAt: in.CreatedAt,
	})
	if closed {
		s.logger.Info("occurrence closed by reports", "occurrence_id", occurrenceID,
			"existing", o.Existing, "non_existing", o.NonExisting, "closure", o.Closure)
		publish(ctx, s.events, s.logger, events.Event{
			Kind: events.OccurrenceClosed, OccurrenceID: occurrenceID, OccurredAt: in.CreatedAt,
		})
	}
	return &InteractionResult{Interaction: in, Occurrence: o, Closed: closed}, nil
}

func (s *OccurrenceService) ListInteractions(ctx context.Context, occurrenceID uint64) ([]model.Interaction, error) {
	if _, err := s.Get(ctx, occurrenceID); err != nil {
		return nil, err
	}
	items, err := s.occurrences.ListInteractions(ctx, occurrenceID)
	if err != nil {
		return nil, fromRepo("list interactions", err)
	}
	return items, nil
}

// ExpireIfOverdue deactivates the occurrence when its deadline has passed.
// It is idempotent; the bool reports whether this call did the change.
// Rows that are already inactive or not yet due are returned untouched.
func (s *OccurrenceService) ExpireIfOverdue(ctx context.Context, id uint64) (*model.Occurrence, bool, error) {
	now := s.now().UTC()
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if !o.Active || !o.Overdue(now) {
		return o, false, nil
	}
	expired, err := s.occurrences.ExpireIfOverdue(ctx, id, now)
	if err != nil {
		return nil, false, fromRepo("expire occurrence", err)
	}
	if !expired {
		// closed or expired concurrently
		o, err = s.Get(ctx, id)
		if err != nil {
			return nil, false, err
		}
		return o, false, nil
	}
	o.Active = false
	publish(ctx, s.events, s.logger, events.Event{Kind: events.OccurrenceExpired, OccurrenceID: id, OccurredAt: now})
	return o, true, nil
}

// ExpireOverdue sweeps every overdue active occurrence.
func (s *OccurrenceService) ExpireOverdue(ctx context.Context) (int64, error) {
	n, err := s.occurrences.ExpireOverdue(ctx, s.now().UTC())
	if err != nil {
		return 0, fromRepo("expire overdue", err)
	}
	if n > 0 {
		s.logger.Info("expired overdue occurrences", "count", n)
	}
	return n, nil
}

// FilterByBox returns the occurrences inside the box spanned by the two
// corners, edges included.  Each corner is [latitude, longitude].
func (s *OccurrenceService) FilterByBox(ctx context.Context, southWest, northEast []float64, active *bool) ([]model.Occurrence, error) {
	box, err := parseBox(southWest, northEast)
	if err != nil {
		return nil, err
	}
	candidates, err := s.occurrences.ListInBox(ctx, box, active)
	if err != nil {
		return nil, fromRepo("list in box", err)
	}
	out := make([]model.Occurrence, 0, len(candidates))
	for _, o := range candidates {
		if box.Contains(o.Point()) {
			out = append(out, o)
		}
	}
	return out, nil
}

func parseBox(southWest, northEast []float64) (geo.Box, error) {
	if len(southWest) == 0 && len(northEast) == 0 {
		return geo.Box{}, invalid(CodeInvalidRegion, "southWest and northEast are required")
	}
	fields := map[string]string{}
	corner := func(name string, v []float64) geo.Point {
		switch {
		case len(v) == 0:
			fields[name] = "required when the other corner is given"
		case len(v) != 2:
			fields[name] = "must hold exactly two numbers: latitude, longitude"
		case math.IsNaN(v[0]) || math.IsNaN(v[1]):
			fields[name] = "coordinates must be numbers"
		case v[0] < -90 || v[0] > 90:
			fields[name] = "latitude must be between -90 and 90"
		case v[1] < -180 || v[1] > 180:
			fields[name] = "longitude must be between -180 and 180"
		default:
			return geo.Point{Lat: v[0], Lng: v[1]}
		}
		return geo.Point{}
	}
	sw := corner("southWest", southWest)
	ne := corner("northEast", northEast)
	if len(fields) > 0 {
		return geo.Box{}, &ValidationError{Code: CodeInvalidRegion, Message: "invalid bounding box", Fields: fields}
	}
	return geo.Box{SouthWest: sw, NorthEast: ne}, nil
}

// FilterByPlace returns the occurrences strictly inside the boundary of a
// geocoded place.  Geometries other than Polygon are rejected before any
// containment test.
func (s *OccurrenceService) FilterByPlace(ctx context.Context, placeID uint64, active *bool) ([]model.Occurrence, error) {
	if placeID == 0 {
		return nil, invalidField("place_id", "must be a positive integer")
	}
	if s.geocoder == nil {
		return nil, fmt.Errorf("resolve place %d: geocoder not configured: %w", placeID, ErrDependency)
	}
	poly, err := s.geocoder.Polygon(ctx, placeID)
	if err != nil {
		if errors.Is(err, geocoding.ErrNotAPolygon) {
			return nil, invalid(CodeNotAPolygon, "place boundary is not a polygon")
		}
		return nil, fmt.Errorf("resolve place %d: %v: %w", placeID, err, ErrDependency)
	}
	candidates, err := s.occurrences.ListInBox(ctx, poly.Bounds(), active)
	if err != nil {
		return nil, fromRepo("list in box", err)
	}
	out := make([]model.Occurrence, 0, len(candidates))
	for _, o := range candidates {
		if geo.PointInPolygon(o.Point(), poly) {
			out = append(out, o)
		}
	}
	return out, nil
}
