package handler

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cityhelp/internal/service"
)

func multipartBody(t *testing.T, field string, data []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, "photo.png")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = part.Write(data)
	_ = w.Close()
	return &buf, w.FormDataContentType()
}

func TestReadUpload(t *testing.T) {
	h := NewAttachmentHandler(nil, 8, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))

	tests := []struct {
		name     string
		body     func(t *testing.T) (io.Reader, string)
		wantData string
		wantCode string
	}{
		{
			name:     "file read",
			body:     func(t *testing.T) (io.Reader, string) { return multipartBody(t, imageField, []byte("abc")) },
			wantData: "abc",
		},
		{
			name:     "read stops past the limit",
			body:     func(t *testing.T) (io.Reader, string) { return multipartBody(t, imageField, []byte("0123456789abc")) },
			wantData: "012345678",
		},
		{
			name: "missing field is an empty upload",
			body: func(t *testing.T) (io.Reader, string) { return multipartBody(t, "other", []byte("abc")) },
		},
		{
			name: "not multipart",
			body: func(*testing.T) (io.Reader, string) {
				return strings.NewReader(`{"image":"x"}`), echo.MIMEApplicationJSON
			},
			wantCode: service.CodeInvalidImage,
		},
		{
			name: "truncated multipart",
			body: func(*testing.T) (io.Reader, string) {
				return strings.NewReader("--xyz\r\nContent-Disposition: form-data; name=\"image\"; filename=\"a.png\"\r\n\r\nabc"),
					"multipart/form-data; boundary=xyz"
			},
			wantCode: service.CodeInvalidImage,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := tt.body(t)
			req := httptest.NewRequest(http.MethodPost, "/", body)
			req.Header.Set(echo.HeaderContentType, ct)
			c := echo.New().NewContext(req, httptest.NewRecorder())

			up, err := h.readUpload(c)
			if tt.wantCode != "" {
				var verr *service.ValidationError
				if !errors.As(err, &verr) || verr.Code != tt.wantCode {
					t.Fatalf("err = %v, want validation %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("readUpload: %v", err)
			}
			if string(up.Data) != tt.wantData {
				t.Fatalf("data = %q, want %q", up.Data, tt.wantData)
			}
		})
	}
}
