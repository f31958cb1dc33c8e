package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/cityhelp/internal/model"
)

// TypeRepo stores occurrence types.
type TypeRepo struct{ DB *sqlx.DB }

func NewTypeRepo(db *sqlx.DB) *TypeRepo { return &TypeRepo{DB: db} }

func (r *TypeRepo) Create(ctx context.Context, t *model.Type) error {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO occurrence_types (title, description, duration_seconds) VALUES (?,?,?)",
		t.Title, t.Description, t.DurationSeconds)
	if err != nil {
		return mapError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

func (r *TypeRepo) GetByID(ctx context.Context, id uint64) (*model.Type, error) {
	var t model.Type
	if err := r.DB.GetContext(ctx, &t,
		"SELECT id, title, description, duration_seconds FROM occurrence_types WHERE id=?", id); err != nil {
		return nil, mapError(err)
	}
	return &t, nil
}

func (r *TypeRepo) List(ctx context.Context) ([]model.Type, error) {
	types := []model.Type{}
	if err := r.DB.SelectContext(ctx, &types,
		"SELECT id, title, description, duration_seconds FROM occurrence_types ORDER BY id"); err != nil {
		return nil, err
	}
	return types, nil
}

// Update rewrites title, description and duration.  Deadlines of existing
// occurrences are not touched.
func (r *TypeRepo) Update(ctx context.Context, t *model.Type) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE occurrence_types SET title=?, description=?, duration_seconds=? WHERE id=?",
		t.Title, t.Description, t.DurationSeconds, t.ID)
	if err != nil {
		return mapError(err)
	}
	return requireRow(res)
}

// Delete fails with ErrReferenced while occurrences still use the type.
func (r *TypeRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM occurrence_types WHERE id=?", id)
	if err != nil {
		return mapError(err)
	}
	return requireRow(res)
}
