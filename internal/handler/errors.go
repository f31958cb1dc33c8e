package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cityhelp/internal/service"
)

// errorResp is the body of every non-2xx response produced by a handler.
type errorResp struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// writeError maps a service error kind to its HTTP status.  Unknown errors
// are logged and reported as 500 without details.
func writeError(c echo.Context, logger *slog.Logger, err error) error {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, errorResp{Error: "validation", Code: verr.Code, Message: verr.Message, Fields: verr.Fields})
	case errors.Is(err, service.ErrValidation):
		return c.JSON(http.StatusBadRequest, errorResp{Error: "validation", Message: err.Error()})
	case errors.Is(err, service.ErrAuthentication):
		return c.JSON(http.StatusUnauthorized, errorResp{Error: "unauthenticated", Message: "invalid or missing credentials"})
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, errorResp{Error: "forbidden", Message: "not allowed for this caller"})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResp{Error: "not_found", Message: "resource not found"})
	case errors.Is(err, service.ErrReferenced):
		return c.JSON(http.StatusConflict, errorResp{Error: "referenced", Message: "resource is still referenced by other records"})
	case errors.Is(err, service.ErrDependency):
		logger.Warn("dependency failure", "path", c.Path(), "err", err)
		return c.JSON(http.StatusFailedDependency, errorResp{Error: "dependency_failed", Message: "an upstream service is unavailable"})
	}
	logger.Error("request failed", "method", c.Request().Method, "path", c.Path(), "err", err)
	return c.JSON(http.StatusInternalServerError, errorResp{Error: "internal", Message: "internal server error"})
}

func badRequest(c echo.Context, code, msg string) error {
	return c.JSON(http.StatusBadRequest, errorResp{Error: "validation", Code: code, Message: msg})
}
