package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cityhelp/internal/middleware"
	"github.com/iliyamo/cityhelp/internal/model"
	"github.com/iliyamo/cityhelp/internal/service"
)

// OccurrenceHandler serves occurrences, their interactions, expiry and the
// region reports.
type OccurrenceHandler struct {
	base
	Occurrences *service.OccurrenceService
}

func NewOccurrenceHandler(occurrences *service.OccurrenceService, timeout time.Duration, logger *slog.Logger) *OccurrenceHandler {
	return &OccurrenceHandler{base: newBase(timeout, logger), Occurrences: occurrences}
}

type interactionReq struct {
	Kind string `json:"kind"`
}

type interactionResultResp struct {
	Interaction interactionResp `json:"interaction"`
	Occurrence  occurrenceResp  `json:"occurrence"`
	Closed      bool            `json:"closed"`
}

type expireResp struct {
	Occurrence occurrenceResp `json:"occurrence"`
	Expired    bool           `json:"expired"`
}

// List pages through occurrences.  With southWest[] and northEast[] it
// returns every occurrence inside that box instead.
func (h *OccurrenceHandler) List(c echo.Context) error {
	active, err := queryBool(c, "active")
	if err != nil {
		return h.fail(c, err)
	}
	sw, err := queryFloats(c, "southWest")
	if err != nil {
		return h.fail(c, err)
	}
	ne, err := queryFloats(c, "northEast")
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	if len(sw) > 0 || len(ne) > 0 {
		items, err := h.Occurrences.FilterByBox(ctx, sw, ne, active)
		if err != nil {
			return h.fail(c, err)
		}
		out := presentAll(items, presentOccurrence)
		return c.JSON(http.StatusOK, listResp[occurrenceResp]{Items: out, Total: len(out)})
	}

	page, err := h.Occurrences.List(ctx, active, queryPage(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, listResp[occurrenceResp]{
		Items: presentAll(page.Items, presentOccurrence),
		Total: page.Total,
		Page:  page.Page,
		Limit: page.Limit,
	})
}

func (h *OccurrenceHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "id")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	o, err := h.Occurrences.Get(ctx, id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, presentOccurrence(o))
}

func (h *OccurrenceHandler) Create(c echo.Context) error {
	var req service.CreateOccurrenceInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, service.CodeInvalidFields, "invalid body")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	o, err := h.Occurrences.Create(ctx, middleware.UserID(c), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, presentOccurrence(o))
}

func (h *OccurrenceHandler) Update(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "id")
	}
	var req service.UpdateOccurrenceInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c, service.CodeInvalidFields, "invalid body")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	o, err := h.Occurrences.Update(ctx, middleware.UserID(c), id, req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, presentOccurrence(o))
}

func (h *OccurrenceHandler) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "id")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := h.Occurrences.Delete(ctx, middleware.UserID(c), id); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Report records one interaction.  kind is EX, IN or FI.
func (h *OccurrenceHandler) Report(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "id")
	}
	var req interactionReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, service.CodeInvalidFields, "invalid body")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	kind := model.InteractionKind(strings.ToUpper(strings.TrimSpace(req.Kind)))
	res, err := h.Occurrences.ReportInteraction(ctx, middleware.UserID(c), id, kind)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, interactionResultResp{
		Interaction: presentInteraction(res.Interaction),
		Occurrence:  presentOccurrence(res.Occurrence),
		Closed:      res.Closed,
	})
}

func (h *OccurrenceHandler) ListInteractions(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "id")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	items, err := h.Occurrences.ListInteractions(ctx, id)
	if err != nil {
		return h.fail(c, err)
	}
	out := presentAll(items, presentInteraction)
	return c.JSON(http.StatusOK, listResp[interactionResp]{Items: out, Total: len(out)})
}

// Expire deactivates the occurrence when its deadline has passed.  Calling
// it again is harmless.
func (h *OccurrenceHandler) Expire(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "id")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	o, expired, err := h.Occurrences.ExpireIfOverdue(ctx, id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, expireResp{Occurrence: presentOccurrence(o), Expired: expired})
}

// Sweep expires every overdue occurrence.
func (h *OccurrenceHandler) Sweep(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()

	n, err := h.Occurrences.ExpireOverdue(ctx)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"expired": n})
}

// PlaceReport lists the occurrences inside the boundary of a geocoded place.
func (h *OccurrenceHandler) PlaceReport(c echo.Context) error {
	placeID, ok := pathID(c, "place_id")
	if !ok {
		return badID(c, "place_id")
	}
	active, err := queryBool(c, "active")
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	items, err := h.Occurrences.FilterByPlace(ctx, placeID, active)
	if err != nil {
		return h.fail(c, err)
	}
	out := presentAll(items, presentOccurrence)
	return c.JSON(http.StatusOK, listResp[occurrenceResp]{Items: out, Total: len(out)})
}
