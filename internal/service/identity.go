package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/cityhelp/internal/model"
	"github.com/iliyamo/cityhelp/internal/repository"
	"github.com/iliyamo/cityhelp/internal/utils"
	"github.com/iliyamo/cityhelp/internal/validation"
)

// MinimumAge is the youngest age, in whole years, allowed to register.
const MinimumAge = 18

type IdentityConfig struct {
	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int
}

// IdentityService owns accounts and sessions.
type IdentityService struct {
	users  UserRepository
	tokens TokenRepository
	cfg    IdentityConfig
	options
}

func NewIdentityService(users UserRepository, tokens TokenRepository, cfg IdentityConfig, opts ...Option) *IdentityService {
	return &IdentityService{users: users, tokens: tokens, cfg: cfg, options: buildOptions(opts)}
}

type RegisterInput struct {
	FirstName string `json:"first_name" validate:"notblank,max=150"`
	LastName  string `json:"last_name" validate:"notblank,max=150"`
	Nickname  string `json:"nickname" validate:"notblank,max=150"`
	BirthDate string `json:"birth_date" validate:"required,date"`
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
}

// UpdateUserInput is a partial profile edit; nil fields are left alone.
type UpdateUserInput struct {
	FirstName *string `json:"first_name" validate:"omitnil,notblank,max=150"`
	LastName  *string `json:"last_name" validate:"omitnil,notblank,max=150"`
	Nickname  *string `json:"nickname" validate:"omitnil,notblank,max=150"`
	BirthDate *string `json:"birth_date" validate:"omitnil,date"`
	Email     *string `json:"email" validate:"omitnil,email,max=254"`
}

// Session is an authenticated user with a fresh token pair.
type Session struct {
	User    *model.User
	Access  utils.AccessToken
	Refresh utils.RefreshToken
}

// Caller is the authenticated principal of a request.
type Caller struct {
	ID   uint64
	Role string
}

func (c Caller) IsAdmin() bool { return c.Role == model.RoleAdmin }

// Age is the number of whole years between birth and at: the calendar-year
// difference, minus one when at's (month, day) precedes birth's.
func Age(birth, at time.Time) int {
	years := at.Year() - birth.Year()
	if at.Month() < birth.Month() || (at.Month() == birth.Month() && at.Day() < birth.Day()) {
		years--
	}
	return years
}

// Register creates an account and then issues its first token pair.
func (s *IdentityService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Nickname = strings.TrimSpace(in.Nickname)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if fields := validation.Struct(in); fields != nil {
		return nil, invalidFields(fields)
	}
	birth, _ := time.Parse(time.DateOnly, in.BirthDate)
	now := s.now().UTC()
	if Age(birth, now) < MinimumAge {
		return nil, invalid(CodeUnderage, fmt.Sprintf("users must be at least %d years old", MinimumAge))
	}
	if err := s.ensureUnique(ctx, 0, in.Email, in.Nickname); err != nil {
		return nil, err
	}

	hash, err := utils.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &model.User{
		Nickname:     in.Nickname,
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		BirthDate:    birth,
		Role:         model.RoleUser,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if verr := duplicateToValidation(err); verr != nil {
			return nil, verr
		}
		return nil, fromRepo("create user", err)
	}
	return s.issueSession(ctx, u)
}

// Authenticate accepts a nickname or an email as identifier.
func (s *IdentityService) Authenticate(ctx context.Context, identifier, password string) (*Session, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, ErrAuthentication
	}
	var (
		u   *model.User
		err error
	)
	if strings.Contains(identifier, "@") {
		u, err = s.users.GetByEmail(ctx, identifier)
	} else {
		u, err = s.users.GetByNickname(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAuthentication
		}
		return nil, fromRepo("load user", err)
	}
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, password) {
		return nil, ErrAuthentication
	}
	return s.issueSession(ctx, u)
}

// Refresh rotates a refresh token: the old one is revoked and a new pair is
// issued.
func (s *IdentityService) Refresh(ctx context.Context, raw string) (*Session, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, invalidField("refresh_token", "required")
	}
	hash := utils.HashRefreshRaw(raw)
	userID, err := s.tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAuthentication
		}
		return nil, fromRepo("validate refresh", err)
	}
	if err := s.tokens.RevokeByHash(ctx, hash); err != nil {
		return nil, fromRepo("revoke refresh", err)
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAuthentication
		}
		return nil, fromRepo("load user", err)
	}
	return s.issueSession(ctx, u)
}

// Logout revokes one refresh token when raw is given, otherwise every token
// of userID.
func (s *IdentityService) Logout(ctx context.Context, raw string, userID uint64) error {
	raw = strings.TrimSpace(raw)
	switch {
	case raw != "":
		hash := utils.HashRefreshRaw(raw)
		if _, err := s.tokens.ValidateRefresh(ctx, hash); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrAuthentication
			}
			return fromRepo("validate refresh", err)
		}
		return fromRepo("revoke refresh", s.tokens.RevokeByHash(ctx, hash))
	case userID != 0:
		return fromRepo("revoke sessions", s.tokens.RevokeAllForUser(ctx, userID))
	}
	return invalidField("refresh_token", "required")
}

// Me returns the caller's own profile.
func (s *IdentityService) Me(ctx context.Context, callerID uint64) (*model.User, error) {
	u, err := s.users.GetByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAuthentication
		}
		return nil, fromRepo("load user", err)
	}
	return u, nil
}

// Get is open to the user themself and to admins.
func (s *IdentityService) Get(ctx context.Context, caller Caller, id uint64) (*model.User, error) {
	if caller.ID != id && !caller.IsAdmin() {
		return nil, ErrForbidden
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fromRepo("get user", err)
	}
	return u, nil
}

// List pages through all accounts.  Callers are admins (enforced by the
// route policy).
func (s *IdentityService) List(ctx context.Context, p Page) (*PageResult[model.User], error) {
	p = p.normalize()
	users, total, err := s.users.List(ctx, p.Limit, p.offset())
	if err != nil {
		return nil, fromRepo("list users", err)
	}
	return &PageResult[model.User]{Items: users, Total: total, Page: p.Page, Limit: p.Limit}, nil
}

// UpdateSelf applies patch to the caller's own account.  The age rule is
// checked again against the account's creation date.
func (s *IdentityService) UpdateSelf(ctx context.Context, callerID, targetID uint64, patch UpdateUserInput) (*model.User, error) {
	if callerID != targetID {
		return nil, ErrForbidden
	}
	trimPtr(patch.FirstName)
	trimPtr(patch.LastName)
	trimPtr(patch.Nickname)
	if patch.Email != nil {
		*patch.Email = strings.ToLower(strings.TrimSpace(*patch.Email))
	}
	if fields := validation.Struct(patch); fields != nil {
		return nil, invalidFields(fields)
	}

	u, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, fromRepo("get user", err)
	}
	if patch.BirthDate != nil {
		birth, _ := time.Parse(time.DateOnly, *patch.BirthDate)
		if Age(birth, u.CreatedAt) < MinimumAge {
			return nil, invalid(CodeUnderage, fmt.Sprintf("users must be at least %d years old", MinimumAge))
		}
		u.BirthDate = birth
	}
	email, nickname := "", ""
	if patch.Email != nil && *patch.Email != u.Email {
		email = *patch.Email
		u.Email = email
	}
	if patch.Nickname != nil && *patch.Nickname != u.Nickname {
		nickname = *patch.Nickname
		u.Nickname = nickname
	}
	if err := s.ensureUnique(ctx, u.ID, email, nickname); err != nil {
		return nil, err
	}
	if patch.FirstName != nil {
		u.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		u.LastName = *patch.LastName
	}
	u.UpdatedAt = s.now().UTC()

	if err := s.users.Update(ctx, u); err != nil {
		if verr := duplicateToValidation(err); verr != nil {
			return nil, verr
		}
		return nil, fromRepo("update user", err)
	}
	return u, nil
}

// Delete removes the caller's own account.  Accounts that authored
// occurrences, interactions or comments cannot be removed.
func (s *IdentityService) Delete(ctx context.Context, callerID, targetID uint64) error {
	if callerID != targetID {
		return ErrForbidden
	}
	return fromRepo("delete user", s.users.Delete(ctx, targetID))
}

func (s *IdentityService) issueSession(ctx context.Context, u *model.User) (*Session, error) {
	access, err := utils.NewAccessToken(s.cfg.JWTSecret, u.ID, u.Role, s.cfg.AccessTTLMin)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := utils.NewRefreshToken(s.cfg.RefreshTTLDays)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	if err := s.tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return nil, fromRepo("store refresh token", err)
	}
	return &Session{User: u, Access: access, Refresh: refresh}, nil
}

// ensureUnique rejects an email or nickname already used by another account.
// Empty values are skipped.
func (s *IdentityService) ensureUnique(ctx context.Context, selfID uint64, email, nickname string) error {
	if email != "" {
		u, err := s.users.GetByEmail(ctx, email)
		switch {
		case err == nil && u.ID != selfID:
			return invalid(CodeDuplicateEmail, "email already registered")
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return fromRepo("check email", err)
		}
	}
	if nickname != "" {
		u, err := s.users.GetByNickname(ctx, nickname)
		switch {
		case err == nil && u.ID != selfID:
			return invalid(CodeDuplicateNickname, "nickname already taken")
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return fromRepo("check nickname", err)
		}
	}
	return nil
}

// duplicateToValidation catches the unique-key race the up-front checks
// cannot close.
func duplicateToValidation(err error) error {
	var de *repository.DuplicateError
	if !errors.As(err, &de) {
		return nil
	}
	if de.Key == repository.KeyUserNickname {
		return invalid(CodeDuplicateNickname, "nickname already taken")
	}
	return invalid(CodeDuplicateEmail, "email already registered")
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}
