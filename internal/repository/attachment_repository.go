package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/cityhelp/internal/model"
)

// CommentRepo stores comments.  There is no update or delete.
type CommentRepo struct{ DB *sqlx.DB }

func NewCommentRepo(db *sqlx.DB) *CommentRepo { return &CommentRepo{DB: db} }

func (r *CommentRepo) Create(ctx context.Context, c *model.Comment) error {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO comments (occurrence_id, author_id, body, created_at) VALUES (?,?,?,?)",
		c.OccurrenceID, c.AuthorID, c.Body, c.CreatedAt)
	if err != nil {
		return mapError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	return nil
}

func (r *CommentRepo) GetByID(ctx context.Context, id uint64) (*model.Comment, error) {
	var c model.Comment
	if err := r.DB.GetContext(ctx, &c,
		"SELECT id, occurrence_id, author_id, body, created_at FROM comments WHERE id=?", id); err != nil {
		return nil, mapError(err)
	}
	return &c, nil
}

func (r *CommentRepo) ListByOccurrence(ctx context.Context, occurrenceID uint64) ([]model.Comment, error) {
	out := []model.Comment{}
	if err := r.DB.SelectContext(ctx, &out,
		"SELECT id, occurrence_id, author_id, body, created_at FROM comments WHERE occurrence_id=? ORDER BY id",
		occurrenceID); err != nil {
		return nil, err
	}
	return out, nil
}

const imageColumns = "id, occurrence_id, comment_id, uploader_id, object_key, url, content_type, size_bytes, created_at"

// ImageRepo stores image metadata; the bytes live in object storage.
type ImageRepo struct{ DB *sqlx.DB }

func NewImageRepo(db *sqlx.DB) *ImageRepo { return &ImageRepo{DB: db} }

func (r *ImageRepo) Create(ctx context.Context, img *model.Image) error {
	res, err := r.DB.NamedExecContext(ctx, `INSERT INTO images
		(occurrence_id, comment_id, uploader_id, object_key, url, content_type, size_bytes, created_at)
		VALUES (:occurrence_id, :comment_id, :uploader_id, :object_key, :url, :content_type, :size_bytes, :created_at)`, img)
	if err != nil {
		return mapError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	img.ID = uint64(id)
	return nil
}

func (r *ImageRepo) GetByID(ctx context.Context, id uint64) (*model.Image, error) {
	var img model.Image
	if err := r.DB.GetContext(ctx, &img, "SELECT "+imageColumns+" FROM images WHERE id=?", id); err != nil {
		return nil, mapError(err)
	}
	return &img, nil
}

func (r *ImageRepo) ListByParent(ctx context.Context, p model.Parent) ([]model.Image, error) {
	col := "occurrence_id"
	if p.Kind == model.ParentComment {
		col = "comment_id"
	}
	out := []model.Image{}
	if err := r.DB.SelectContext(ctx, &out,
		"SELECT "+imageColumns+" FROM images WHERE "+col+"=? ORDER BY id", p.ID); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ImageRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM images WHERE id=?", id)
	if err != nil {
		return mapError(err)
	}
	return requireRow(res)
}
