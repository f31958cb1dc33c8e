package model

import "time"

// Roles stored in users.role.  New accounts are always USER; ADMIN is
// granted out of band.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User represents an application user record as stored in the `users`
// table.  Handlers project it into response types; PasswordHash never
// leaves the service layer.
type User struct {
	ID                 uint64    `db:"id"`
	Nickname           string    `db:"nickname"`
	Email              string    `db:"email"`
	PasswordHash       string    `db:"password_hash"`
	FirstName          string    `db:"first_name"`
	LastName           string    `db:"last_name"`
	BirthDate          time.Time `db:"birth_date"`
	Role               string    `db:"role"`
	IsActive           bool      `db:"is_active"`
	AnswerCount        uint32    `db:"answer_count"`
	TrustedAnswerCount uint32    `db:"trusted_answer_count"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// RefreshToken models an entry in the `refresh_tokens` table.  The plain
// token is not stored; only its SHA-256 hash.
type RefreshToken struct {
	ID        uint64     `db:"id"`
	UserID    uint64     `db:"user_id"`
	TokenHash string     `db:"token_hash"`
	ExpiresAt time.Time  `db:"expires_at"`
	RevokedAt *time.Time `db:"revoked_at"`
	CreatedAt time.Time  `db:"created_at"`
}
