package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cityhelp/internal/middleware"
	"github.com/iliyamo/cityhelp/internal/service"
)

type UserHandler struct {
	base
	Identity *service.IdentityService
}

func NewUserHandler(identity *service.IdentityService, timeout time.Duration, logger *slog.Logger) *UserHandler {
	return &UserHandler{base: newBase(timeout, logger), Identity: identity}
}

// Me returns the caller's own profile.
func (h *UserHandler) Me(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()

	u, err := h.Identity.Me(ctx, middleware.UserID(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, presentUser(u))
}

func (h *UserHandler) List(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()

	page, err := h.Identity.List(ctx, queryPage(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, listResp[userResp]{
		Items: presentAll(page.Items, presentUser),
		Total: page.Total,
		Page:  page.Page,
		Limit: page.Limit,
	})
}

func (h *UserHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "id")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	u, err := h.Identity.Get(ctx, caller(c), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, presentUser(u))
}

// Update serves both PATCH and PUT; absent fields are left unchanged.
func (h *UserHandler) Update(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "id")
	}
	var req service.UpdateUserInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, service.CodeInvalidFields, "invalid body")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	u, err := h.Identity.UpdateSelf(ctx, middleware.UserID(c), id, req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, presentUser(u))
}

func (h *UserHandler) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "id")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := h.Identity.Delete(ctx, middleware.UserID(c), id); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
