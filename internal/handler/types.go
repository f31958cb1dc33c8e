package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cityhelp/internal/service"
)

// TypeHandler serves the occurrence type catalog.
type TypeHandler struct {
	base
	Catalog *service.CatalogService
}

func NewTypeHandler(catalog *service.CatalogService, timeout time.Duration, logger *slog.Logger) *TypeHandler {
	return &TypeHandler{base: newBase(timeout, logger), Catalog: catalog}
}

func (h *TypeHandler) List(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()

	types, err := h.Catalog.List(ctx)
	if err != nil {
		return h.fail(c, err)
	}
	items := presentAll(types, presentType)
	return c.JSON(http.StatusOK, listResp[typeResp]{Items: items, Total: len(items)})
}

func (h *TypeHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "id")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	t, err := h.Catalog.Get(ctx, id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, presentType(t))
}

func (h *TypeHandler) Create(c echo.Context) error {
	var req service.TypeInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, service.CodeInvalidFields, "invalid body")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	t, err := h.Catalog.Create(ctx, req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, presentType(t))
}

func (h *TypeHandler) Update(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "id")
	}
	var req service.TypeInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, service.CodeInvalidFields, "invalid body")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	t, err := h.Catalog.Update(ctx, id, req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, presentType(t))
}

// Delete answers 409 while occurrences still use the type.
func (h *TypeHandler) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "id")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := h.Catalog.Delete(ctx, id); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
