package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cityhelp/internal/middleware"
	"github.com/iliyamo/cityhelp/internal/model"
	"github.com/iliyamo/cityhelp/internal/service"
)

// imageField is the multipart field carrying the upload.
const imageField = "image"

// AttachmentHandler serves comments and images.
type AttachmentHandler struct {
	base
	Attachments *service.AttachmentService
	maxBytes    int64
}

func NewAttachmentHandler(attachments *service.AttachmentService, maxBytes int64, timeout time.Duration, logger *slog.Logger) *AttachmentHandler {
	return &AttachmentHandler{base: newBase(timeout, logger), Attachments: attachments, maxBytes: maxBytes}
}

type commentReq struct {
	Text string `json:"text"`
}

func (h *AttachmentHandler) ListComments(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "id")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	items, err := h.Attachments.ListComments(ctx, id)
	if err != nil {
		return h.fail(c, err)
	}
	out := presentAll(items, presentComment)
	return c.JSON(http.StatusOK, listResp[commentResp]{Items: out, Total: len(out)})
}

func (h *AttachmentHandler) CreateComment(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "id")
	}
	var req commentReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, service.CodeInvalidFields, "invalid body")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	cm, err := h.Attachments.CreateComment(ctx, middleware.UserID(c), id, req.Text)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, presentComment(cm))
}

func (h *AttachmentHandler) GetComment(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "id")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	cm, err := h.Attachments.GetComment(ctx, id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, presentComment(cm))
}

func (h *AttachmentHandler) ListOccurrenceImages(c echo.Context) error {
	return h.listImages(c, model.ParentOccurrence)
}

func (h *AttachmentHandler) ListCommentImages(c echo.Context) error {
	return h.listImages(c, model.ParentComment)
}

func (h *AttachmentHandler) listImages(c echo.Context, kind model.ParentKind) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "id")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	items, err := h.Attachments.ListImages(ctx, model.Parent{Kind: kind, ID: id})
	if err != nil {
		return h.fail(c, err)
	}
	out := presentAll(items, presentImage)
	return c.JSON(http.StatusOK, listResp[imageResp]{Items: out, Total: len(out)})
}

// AttachOccurrenceImage stores the multipart "image" on an occurrence the
// caller owns.
func (h *AttachmentHandler) AttachOccurrenceImage(c echo.Context) error {
	return h.attach(c, h.Attachments.AttachImageToOccurrence)
}

// AttachCommentImage stores the multipart "image" on a comment the caller
// wrote.
func (h *AttachmentHandler) AttachCommentImage(c echo.Context) error {
	return h.attach(c, h.Attachments.AttachImageToComment)
}

type attachFunc func(ctx context.Context, callerID, parentID uint64, up service.Upload) (*model.Image, error)

func (h *AttachmentHandler) attach(c echo.Context, fn attachFunc) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "id")
	}
	// A missing file reaches the service as an empty upload, so ownership is
	// still checked first.
	up, err := h.readUpload(c)
	if err != nil {
		return h.fail(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	img, err := fn(ctx, middleware.UserID(c), id, up)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, presentImage(img))
}

// readUpload reads at most maxBytes+1 bytes so the service can tell an
// oversized file from one at the limit.  A missing image field yields an
// empty upload; any other multipart failure is a validation error.
func (h *AttachmentHandler) readUpload(c echo.Context) (service.Upload, error) {
	fh, err := c.FormFile(imageField)
	if errors.Is(err, http.ErrMissingFile) {
		return service.Upload{}, nil
	}
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code == http.StatusRequestEntityTooLarge {
			return service.Upload{}, &service.ValidationError{Code: service.CodeImageTooLarge, Message: "request body too large"}
		}
		return service.Upload{}, &service.ValidationError{Code: service.CodeInvalidImage, Message: "malformed multipart body: " + err.Error()}
	}
	f, err := fh.Open()
	if err != nil {
		return service.Upload{}, err
	}
	defer f.Close()

	r := io.Reader(f)
	if h.maxBytes > 0 {
		r = io.LimitReader(f, h.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return service.Upload{}, err
	}
	return service.Upload{Filename: fh.Filename, Data: data}, nil
}

func (h *AttachmentHandler) GetImage(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "id")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	img, err := h.Attachments.GetImage(ctx, id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, presentImage(img))
}

func (h *AttachmentHandler) DeleteImage(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c, "id")
	}
	ctx, cancel := h.ctx(c)
	defer cancel()

	if err := h.Attachments.DeleteImage(ctx, middleware.UserID(c), id); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
