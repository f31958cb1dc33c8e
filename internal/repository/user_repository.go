package repository

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/cityhelp/internal/model"
)

// Unique keys on the users table, as reported in DuplicateError.Key.
const (
	KeyUserEmail    = "uq_users_email"
	KeyUserNickname = "uq_users_nickname"
)

const userColumns = `id, nickname, email, password_hash, first_name, last_name, birth_date, role,
	is_active, answer_count, trusted_answer_count, created_at, updated_at`

type UserRepo struct{ DB *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts u and sets its ID.  Email is stored lower-cased.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = normalizeEmail(u.Email)
	res, err := r.DB.NamedExecContext(ctx, `INSERT INTO users
		(nickname, email, password_hash, first_name, last_name, birth_date, role, is_active,
		 answer_count, trusted_answer_count, created_at, updated_at)
		VALUES (:nickname, :email, :password_hash, :first_name, :last_name, :birth_date, :role, :is_active,
		 :answer_count, :trusted_answer_count, :created_at, :updated_at)`, u)
	if err != nil {
		return mapError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	var u model.User
	if err := r.DB.GetContext(ctx, &u, "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id); err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	if err := r.DB.GetContext(ctx, &u, "SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", normalizeEmail(email)); err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

func (r *UserRepo) GetByNickname(ctx context.Context, nickname string) (*model.User, error) {
	var u model.User
	if err := r.DB.GetContext(ctx, &u, "SELECT "+userColumns+" FROM users WHERE nickname=? LIMIT 1", nickname); err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

// Update writes the self-editable profile fields.
func (r *UserRepo) Update(ctx context.Context, u *model.User) error {
	u.Email = normalizeEmail(u.Email)
	u.UpdatedAt = time.Now().UTC()
	res, err := r.DB.NamedExecContext(ctx, `UPDATE users SET nickname=:nickname, email=:email,
		first_name=:first_name, last_name=:last_name, birth_date=:birth_date, updated_at=:updated_at
		WHERE id=:id`, u)
	if err != nil {
		return mapError(err)
	}
	return requireRow(res)
}

func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		return mapError(err)
	}
	return requireRow(res)
}

// List returns one page ordered by id and the total row count.
func (r *UserRepo) List(ctx context.Context, limit, offset int) ([]model.User, int, error) {
	var total int
	if err := r.DB.GetContext(ctx, &total, "SELECT COUNT(*) FROM users"); err != nil {
		return nil, 0, err
	}
	users := []model.User{}
	if err := r.DB.SelectContext(ctx, &users,
		"SELECT "+userColumns+" FROM users ORDER BY id LIMIT ? OFFSET ?", limit, offset); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// IncrementAnswers bumps the answer counter of a reporter.
func (r *UserRepo) IncrementAnswers(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET answer_count = answer_count + 1 WHERE id=?", userID)
	return err
}

// IncrementTrustedAnswers credits every distinct reporter whose NonExisting
// or Finalized vote agreed with the closure of occurrenceID.
func (r *UserRepo) IncrementTrustedAnswers(ctx context.Context, occurrenceID uint64) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE users u
		JOIN (SELECT DISTINCT reporter_id FROM interactions
		      WHERE occurrence_id=? AND kind IN (?, ?)) r ON r.reporter_id = u.id
		SET u.trusted_answer_count = u.trusted_answer_count + 1`,
		occurrenceID, model.InteractionNonExisting, model.InteractionFinalized)
	return err
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }
