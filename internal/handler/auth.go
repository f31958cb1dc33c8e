package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cityhelp/internal/middleware"
	"github.com/iliyamo/cityhelp/internal/service"
)

// AuthHandler bundles the session endpoints.
type AuthHandler struct {
	base
	Identity *service.IdentityService
}

func NewAuthHandler(identity *service.IdentityService, timeout time.Duration, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{base: newBase(timeout, logger), Identity: identity}
}

// ----- request DTOs -----

// loginReq accepts the identifier under any of its names.
type loginReq struct {
	Identifier string `json:"identifier"`
	Nickname   string `json:"nickname"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

func (r loginReq) login() string {
	for _, v := range []string{r.Identifier, r.Nickname, r.Email} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

// Register creates the account and returns its first token pair.
func (h *AuthHandler) Register(c echo.Context) error {
	var req service.RegisterInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, service.CodeInvalidFields, "invalid body")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	sess, err := h.Identity.Register(ctx, req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, presentSession(sess))
}

// Login verifies the credentials and returns a new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, service.CodeInvalidFields, "invalid body")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	sess, err := h.Identity.Authenticate(ctx, req.login(), req.Password)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, presentSession(sess))
}

// Refresh rotates the refresh token.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, service.CodeInvalidFields, "invalid body")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	sess, err := h.Identity.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, presentSession(sess))
}

// Logout revokes the refresh token in the body.  Without one, a bearer
// caller is logged out of every session.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)

	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := h.Identity.Logout(ctx, req.RefreshToken, middleware.UserID(c)); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
