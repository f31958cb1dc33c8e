package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cityhelp/internal/service"
)

func TestWriteError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"validation", &service.ValidationError{Code: service.CodeUnderage, Message: "too young"}, http.StatusBadRequest, "validation"},
		{"authentication", service.ErrAuthentication, http.StatusUnauthorized, "unauthenticated"},
		{"forbidden", fmt.Errorf("op: %w", service.ErrForbidden), http.StatusForbidden, "forbidden"},
		{"not found", fmt.Errorf("get: %w", service.ErrNotFound), http.StatusNotFound, "not_found"},
		{"referenced", service.ErrReferenced, http.StatusConflict, "referenced"},
		{"dependency", fmt.Errorf("geocoder: %w", service.ErrDependency), http.StatusFailedDependency, "dependency_failed"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
			if err := writeError(c, logger, tt.err); err != nil {
				t.Fatalf("writeError: %v", err)
			}
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			var body errorResp
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error != tt.kind {
				t.Fatalf("error = %q, want %q", body.Error, tt.kind)
			}
			if tt.status == http.StatusInternalServerError && body.Message != "internal server error" {
				t.Fatalf("internal details leaked: %q", body.Message)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{6 * time.Hour, "06:00:00"},
		{90 * time.Second, "00:01:30"},
		{26*time.Hour + 3*time.Minute + 4*time.Second, "1 02:03:04"},
	}
	for _, tt := range tests {
		got := formatDuration(tt.d)
		if got != tt.want {
			t.Errorf("formatDuration(%s) = %q, want %q", tt.d, got, tt.want)
		}
		if back, err := service.ParseDuration(got); err != nil || back != tt.d {
			t.Errorf("ParseDuration(%q) = %s, %v", got, back, err)
		}
	}
}

func TestQueryFloats(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?southWest[]=1.5&southWest[]=-2&northEast=3,4", nil), httptest.NewRecorder())

	sw, err := queryFloats(c, "southWest")
	if err != nil || len(sw) != 2 || sw[0] != 1.5 || sw[1] != -2 {
		t.Fatalf("southWest = %v, %v", sw, err)
	}
	ne, err := queryFloats(c, "northEast")
	if err != nil || len(ne) != 2 || ne[0] != 3 || ne[1] != 4 {
		t.Fatalf("northEast = %v, %v", ne, err)
	}
	none, err := queryFloats(c, "missing")
	if err != nil || len(none) != 0 {
		t.Fatalf("missing = %v, %v", none, err)
	}
}

func TestQueryBool(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?active=false&bad=maybe", nil), httptest.NewRecorder())

	v, err := queryBool(c, "active")
	if err != nil || v == nil || *v {
		t.Fatalf("active = %v, %v", v, err)
	}
	if v, err := queryBool(c, "absent"); err != nil || v != nil {
		t.Fatalf("absent = %v, %v", v, err)
	}
	if _, err := queryBool(c, "bad"); !errors.Is(err, service.ErrValidation) {
		t.Fatalf("bad = %v", err)
	}
}
