package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/cityhelp/internal/geo"
	"github.com/iliyamo/cityhelp/internal/model"
)

const occurrenceColumns = `id, owner_id, type_id, latitude, longitude, description, by_vehicle, by_foot,
	active, existing_count, non_existing_count, closure_count, created_at, deadline`

// OccurrenceRepo stores occurrences and their interactions.  Counter changes
// only happen inside RecordInteraction.
type OccurrenceRepo struct{ DB *sqlx.DB }

func NewOccurrenceRepo(db *sqlx.DB) *OccurrenceRepo { return &OccurrenceRepo{DB: db} }

func (r *OccurrenceRepo) Create(ctx context.Context, o *model.Occurrence) error {
	res, err := r.DB.NamedExecContext(ctx, `INSERT INTO occurrences
		(owner_id, type_id, latitude, longitude, description, by_vehicle, by_foot, active,
		 existing_count, non_existing_count, closure_count, created_at, deadline)
		VALUES (:owner_id, :type_id, :latitude, :longitude, :description, :by_vehicle, :by_foot, :active,
		 :existing_count, :non_existing_count, :closure_count, :created_at, :deadline)`, o)
	if err != nil {
		return mapError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)
	return nil
}

func (r *OccurrenceRepo) GetByID(ctx context.Context, id uint64) (*model.Occurrence, error) {
	var o model.Occurrence
	if err := r.DB.GetContext(ctx, &o, "SELECT "+occurrenceColumns+" FROM occurrences WHERE id=?", id); err != nil {
		return nil, mapError(err)
	}
	return &o, nil
}

// List returns a page of occurrences, newest first, and the total count.
func (r *OccurrenceRepo) List(ctx context.Context, f model.OccurrenceFilter) ([]model.Occurrence, int, error) {
	where, args := activeClause(f.Active, nil, nil)

	var total int
	if err := r.DB.GetContext(ctx, &total, "SELECT COUNT(*) FROM occurrences"+where, args...); err != nil {
		return nil, 0, err
	}
	out := []model.Occurrence{}
	q := "SELECT " + occurrenceColumns + " FROM occurrences" + where + " ORDER BY id DESC LIMIT ? OFFSET ?"
	if err := r.DB.SelectContext(ctx, &out, q, append(args, f.Limit, f.Offset)...); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ListInBox is the SQL prefilter for region queries: every occurrence whose
// coordinates fall inside box, edges included.
func (r *OccurrenceRepo) ListInBox(ctx context.Context, box geo.Box, active *bool) ([]model.Occurrence, error) {
	conds := []string{"latitude BETWEEN ? AND ?", "longitude BETWEEN ? AND ?"}
	args := []any{box.SouthWest.Lat, box.NorthEast.Lat, box.SouthWest.Lng, box.NorthEast.Lng}
	where, args := activeClause(active, conds, args)

	out := []model.Occurrence{}
	if err := r.DB.SelectContext(ctx, &out,
		"SELECT "+occurrenceColumns+" FROM occurrences"+where+" ORDER BY id", args...); err != nil {
		return nil, err
	}
	return out, nil
}

func activeClause(active *bool, conds []string, args []any) (string, []any) {
	if active != nil {
		conds = append(conds, "active=?")
		args = append(args, *active)
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// UpdateDetails writes the owner-editable fields.
func (r *OccurrenceRepo) UpdateDetails(ctx context.Context, o *model.Occurrence) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE occurrences SET description=?, by_vehicle=?, by_foot=? WHERE id=?",
		o.Description, o.ByVehicle, o.ByFoot, o.ID)
	if err != nil {
		return mapError(err)
	}
	return requireRow(res)
}

// Delete fails with ErrReferenced while interactions, comments or images
// point at the occurrence.
func (r *OccurrenceRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM occurrences WHERE id=?", id)
	if err != nil {
		return mapError(err)
	}
	return requireRow(res)
}

// RecordInteraction appends in and increments the matching counter in one
// transaction while holding the occurrence row lock.  closeWhen receives the
// counters after the increment; when it returns true the occurrence is
// deactivated in the same transaction.  The returned bool reports that
// deactivation.
func (r *OccurrenceRepo) RecordInteraction(ctx context.Context, in *model.Interaction, closeWhen func(model.Counters) bool) (*model.Occurrence, bool, error) {
	if !in.Kind.Valid() {
		return nil, false, fmt.Errorf("record interaction: unknown kind %q", in.Kind)
	}
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback() }()

	var o model.Occurrence
	if err := tx.GetContext(ctx, &o,
		"SELECT "+occurrenceColumns+" FROM occurrences WHERE id=? FOR UPDATE", in.OccurrenceID); err != nil {
		return nil, false, mapError(err)
	}
	if !o.Active {
		return &o, false, ErrInactive
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO interactions (occurrence_id, reporter_id, kind, created_at) VALUES (?,?,?,?)",
		in.OccurrenceID, in.ReporterID, in.Kind, in.CreatedAt)
	if err != nil {
		return nil, false, mapError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, false, err
	}
	in.ID = uint64(id)

	// Column comes from a closed set, never from input.
	col := in.Kind.Column()
	if _, err := tx.ExecContext(ctx,
		"UPDATE occurrences SET "+col+" = "+col+" + 1 WHERE id=?", o.ID); err != nil {
		return nil, false, err
	}
	if err := tx.GetContext(ctx, &o.Counters,
		"SELECT existing_count, non_existing_count, closure_count FROM occurrences WHERE id=?", o.ID); err != nil {
		return nil, false, err
	}

	closed := false
	if closeWhen != nil && closeWhen(o.Counters) {
		if _, err := tx.ExecContext(ctx, "UPDATE occurrences SET active=0 WHERE id=?", o.ID); err != nil {
			return nil, false, err
		}
		o.Active = false
		closed = true
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return &o, closed, nil
}

func (r *OccurrenceRepo) ListInteractions(ctx context.Context, occurrenceID uint64) ([]model.Interaction, error) {
	out := []model.Interaction{}
	if err := r.DB.SelectContext(ctx, &out,
		"SELECT id, occurrence_id, reporter_id, kind, created_at FROM interactions WHERE occurrence_id=? ORDER BY id",
		occurrenceID); err != nil {
		return nil, err
	}
	return out, nil
}

// ExpireIfOverdue deactivates one occurrence whose deadline has passed.
// It reports whether this call made the change; repeating it is harmless.
func (r *OccurrenceRepo) ExpireIfOverdue(ctx context.Context, id uint64, now time.Time) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE occurrences SET active=0 WHERE id=? AND active=1 AND deadline <= ?", id, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ExpireOverdue deactivates every overdue active occurrence and returns how
// many were changed.
func (r *OccurrenceRepo) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE occurrences SET active=0 WHERE active=1 AND deadline <= ?", now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
