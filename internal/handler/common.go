package handler

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cityhelp/internal/middleware"
	"github.com/iliyamo/cityhelp/internal/service"
)

const defaultTimeout = 5 * time.Second

// base carries what every handler needs: a per-request deadline and a logger.
type base struct {
	timeout time.Duration
	logger  *slog.Logger
}

func newBase(timeout time.Duration, logger *slog.Logger) base {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return base{timeout: timeout, logger: logger}
}

func (b base) ctx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), b.timeout)
}

func (b base) fail(c echo.Context, err error) error {
	return writeError(c, b.logger, err)
}

// caller returns the authenticated principal set by JWTAuth.
func caller(c echo.Context) service.Caller {
	return service.Caller{ID: middleware.UserID(c), Role: middleware.Role(c)}
}

// pathID reads a positive integer path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

func badID(c echo.Context, name string) error {
	return badRequest(c, service.CodeInvalidFields, name+" must be a positive integer")
}

// queryBool parses an optional boolean query parameter.
func queryBool(c echo.Context, name string) (*bool, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, &service.ValidationError{
			Code:    service.CodeInvalidFields,
			Message: "invalid query parameter",
			Fields:  map[string]string{name: "must be true or false"},
		}
	}
	return &v, nil
}

// queryPage reads page and limit; missing or malformed values fall back to
// the service defaults.
func queryPage(c echo.Context) service.Page {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	return service.Page{Page: page, Limit: limit}
}

// queryFloats reads a repeated numeric parameter, accepting both name[] and
// name, each value either repeated or comma separated.
func queryFloats(c echo.Context, name string) ([]float64, error) {
	params := c.QueryParams()
	raw := append(append([]string{}, params[name+"[]"]...), params[name]...)
	var out []float64
	for _, r := range raw {
		for _, part := range strings.Split(r, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			f, err := strconv.ParseFloat(part, 64)
			if err != nil {
				return nil, &service.ValidationError{
					Code:    service.CodeInvalidRegion,
					Message: "invalid bounding box",
					Fields:  map[string]string{name: "must be numbers"},
				}
			}
			out = append(out, f)
		}
	}
	return out, nil
}
