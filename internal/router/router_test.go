package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/cityhelp/internal/config"
	"github.com/iliyamo/cityhelp/internal/geo"
	"github.com/iliyamo/cityhelp/internal/geocoding"
	"github.com/iliyamo/cityhelp/internal/handler"
	"github.com/iliyamo/cityhelp/internal/model"
	"github.com/iliyamo/cityhelp/internal/repository"
	"github.com/iliyamo/cityhelp/internal/router"
	"github.com/iliyamo/cityhelp/internal/service"
	"github.com/iliyamo/cityhelp/internal/service/mocks"
	"github.com/iliyamo/cityhelp/internal/utils"
)

const secret = "router-secret"

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)

type stack struct {
	e        *echo.Echo
	users    *mocks.MockUserRepository
	tokens   *mocks.MockTokenRepository
	types    *mocks.MockTypeRepository
	occ      *mocks.MockOccurrenceRepository
	comments *mocks.MockCommentRepository
	images   *mocks.MockImageRepository
	store    *mocks.MockImageStore
	geocoder *mocks.MockGeocoder
}

func newStack(t *testing.T) *stack {
	t.Helper()
	ctrl := gomock.NewController(t)
	s := &stack{
		users:    mocks.NewMockUserRepository(ctrl),
		tokens:   mocks.NewMockTokenRepository(ctrl),
		types:    mocks.NewMockTypeRepository(ctrl),
		occ:      mocks.NewMockOccurrenceRepository(ctrl),
		comments: mocks.NewMockCommentRepository(ctrl),
		images:   mocks.NewMockImageRepository(ctrl),
		store:    mocks.NewMockImageStore(ctrl),
		geocoder: mocks.NewMockGeocoder(ctrl),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts := []service.Option{service.WithLogger(logger)}

	identity := service.NewIdentityService(s.users, s.tokens, service.IdentityConfig{
		JWTSecret: secret, AccessTTLMin: 5, RefreshTTLDays: 1, BcryptCost: bcrypt.MinCost,
	}, opts...)
	catalog := service.NewCatalogService(s.types, opts...)
	occurrences := service.NewOccurrenceService(s.occ, s.types, s.geocoder, service.DefaultClosurePolicy(), nil, opts...)
	attachments := service.NewAttachmentService(s.occ, s.comments, s.images, s.store, 1<<20, nil, opts...)

	s.e = router.New(router.Handlers{
		Auth:        handler.NewAuthHandler(identity, time.Second, logger),
		Users:       handler.NewUserHandler(identity, time.Second, logger),
		Types:       handler.NewTypeHandler(catalog, time.Second, logger),
		Occurrences: handler.NewOccurrenceHandler(occurrences, time.Second, logger),
		Attachments: handler.NewAttachmentHandler(attachments, 1<<20, time.Second, logger),
	}, router.Options{
		JWTSecret:     secret,
		RateLimit:     config.RateLimitConfig{Enabled: false},
		Cache:         config.CacheConfig{Enabled: false},
		Logger:        logger,
		MaxUploadSize: 1 << 20,
	})
	return s
}

func token(t *testing.T, userID uint64, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, userID, role, 5)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	return tok.Token
}

func (s *stack) do(t *testing.T, method, target, bearer string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *stack) doJSON(t *testing.T, method, target, bearer string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		bs, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(bs)
	}
	return s.do(t, method, target, bearer, body, echo.MIMEApplicationJSON)
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

type errorBody struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields"`
}

func multipartImage(t *testing.T, data []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", "photo.png")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	_, _ = part.Write(data)
	_ = w.Close()
	return &buf, w.FormDataContentType()
}

func TestHealth(t *testing.T) {
	s := newStack(t)
	if rec := s.do(t, http.MethodGet, "/healthz", "", nil, ""); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestOccurrenceImageUpload_AuthorizationOrder(t *testing.T) {
	const userA, userB = 1, 2
	s := newStack(t)
	s.occ.EXPECT().GetByID(gomock.Any(), uint64(10)).Return(&model.Occurrence{ID: 10, OwnerID: userA, Active: true}, nil).Times(2)

	body, ct := multipartImage(t, pngBytes)
	if rec := s.do(t, http.MethodPost, "/v1/occurrences/10/images", "", body, ct); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d", rec.Code)
	}

	body, ct = multipartImage(t, pngBytes)
	rec := s.do(t, http.MethodPost, "/v1/occurrences/10/images", token(t, userB, model.RoleUser), body, ct)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("B status = %d: %s", rec.Code, rec.Body.String())
	}

	s.store.EXPECT().Put(gomock.Any(), gomock.Any(), "image/png", pngBytes).
		DoAndReturn(func(_ context.Context, key, _ string, _ []byte) (string, error) {
			return "https://cdn.test/" + key, nil
		})
	s.images.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, img *model.Image) error {
		img.ID = 77
		return nil
	})
	body, ct = multipartImage(t, pngBytes)
	rec = s.do(t, http.MethodPost, "/v1/occurrences/10/images", token(t, userA, model.RoleUser), body, ct)
	if rec.Code != http.StatusCreated {
		t.Fatalf("A status = %d: %s", rec.Code, rec.Body.String())
	}
	got := decodeJSON[struct {
		ID           uint64 `json:"id"`
		OccurrenceID uint64 `json:"occurrence_id"`
		URL          string `json:"url"`
	}](t, rec)
	if got.ID != 77 || got.OccurrenceID != 10 || !strings.HasPrefix(got.URL, "https://cdn.test/occurrences/") {
		t.Fatalf("unexpected image %+v", got)
	}
}

func TestRegister(t *testing.T) {
	s := newStack(t)
	s.users.EXPECT().GetByEmail(gomock.Any(), "ana@example.com").Return(nil, repository.ErrNotFound)
	s.users.EXPECT().GetByNickname(gomock.Any(), "ana").Return(nil, repository.ErrNotFound)
	s.users.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, u *model.User) error {
		u.ID = 3
		return nil
	})
	s.tokens.EXPECT().StoreRefresh(gomock.Any(), uint64(3), gomock.Any(), gomock.Any()).Return(nil)

	rec := s.doJSON(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"first_name": "Ana", "last_name": "Souza", "nickname": "ana",
		"birth_date": "1990-01-01", "email": "ana@example.com", "password": "long-enough",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	got := decodeJSON[struct {
		User struct {
			ID          uint64 `json:"id"`
			BirthDate   string `json:"birth_date"`
			AnswerCount uint32 `json:"answer_count"`
		} `json:"user"`
		Access  struct{ Token string } `json:"access"`
		Refresh struct{ Token string } `json:"refresh"`
	}](t, rec)
	if got.User.ID != 3 || got.User.BirthDate != "1990-01-01" || got.Access.Token == "" || got.Refresh.Token == "" {
		t.Fatalf("unexpected response %+v", got)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Fatal("response must not expose password material")
	}
}

func TestRegister_Underage(t *testing.T) {
	s := newStack(t)
	birth := time.Now().UTC().AddDate(-17, 0, 0).Format(time.DateOnly)
	rec := s.doJSON(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"first_name": "Kid", "last_name": "Doe", "nickname": "kid",
		"birth_date": birth, "email": "kid@example.com", "password": "long-enough",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decodeJSON[errorBody](t, rec); got.Code != service.CodeUnderage {
		t.Fatalf("code = %q", got.Code)
	}
}

func TestListUsers_AdminOnly(t *testing.T) {
	s := newStack(t)
	if rec := s.do(t, http.MethodGet, "/v1/users", token(t, 5, model.RoleUser), nil, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("user status = %d", rec.Code)
	}
	s.users.EXPECT().List(gomock.Any(), 20, 0).Return([]model.User{{ID: 5}}, 1, nil)
	rec := s.do(t, http.MethodGet, "/v1/users", token(t, 1, model.RoleAdmin), nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("admin status = %d", rec.Code)
	}
	if got := decodeJSON[struct{ Total, Page, Limit int }](t, rec); got.Total != 1 || got.Page != 1 || got.Limit != 20 {
		t.Fatalf("unexpected page %+v", got)
	}
}

func TestOccurrences_BoxQuery(t *testing.T) {
	s := newStack(t)
	s.occ.EXPECT().ListInBox(gomock.Any(), geo.Box{
		SouthWest: geo.Point{Lat: -10, Lng: -10},
		NorthEast: geo.Point{Lat: 10, Lng: 10},
	}, gomock.Any()).Return([]model.Occurrence{
		{ID: 1, Latitude: 0, Longitude: 0, Active: true},
		{ID: 2, Latitude: 15, Longitude: 0, Active: true},
	}, nil)

	rec := s.do(t, http.MethodGet,
		"/v1/occurrences?southWest[]=-10&southWest[]=-10&northEast[]=10&northEast[]=10&active=true", "", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	got := decodeJSON[struct {
		Items []struct{ ID uint64 } `json:"items"`
		Total int                   `json:"total"`
	}](t, rec)
	if got.Total != 1 || got.Items[0].ID != 1 {
		t.Fatalf("unexpected items %+v", got)
	}

	rec = s.do(t, http.MethodGet, "/v1/occurrences?southWest[]=abc&northEast[]=1&northEast[]=1", "", nil, "")
	if rec.Code != http.StatusBadRequest || decodeJSON[errorBody](t, rec).Code != service.CodeInvalidRegion {
		t.Fatalf("bad box = %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodGet, "/v1/occurrences?southWest[]=NaN&southWest[]=0&northEast[]=10&northEast[]=10", "", nil, "")
	if rec.Code != http.StatusBadRequest || decodeJSON[errorBody](t, rec).Code != service.CodeInvalidRegion {
		t.Fatalf("NaN box = %d %s", rec.Code, rec.Body.String())
	}
}

func TestPlaceReport_Errors(t *testing.T) {
	s := newStack(t)
	s.geocoder.EXPECT().Polygon(gomock.Any(), uint64(5)).Return(nil, geocoding.ErrNotAPolygon)
	s.geocoder.EXPECT().Polygon(gomock.Any(), uint64(6)).Return(nil, geocoding.ErrUnavailable)

	rec := s.do(t, http.MethodGet, "/v1/report/5", "", nil, "")
	if rec.Code != http.StatusBadRequest || decodeJSON[errorBody](t, rec).Code != service.CodeNotAPolygon {
		t.Fatalf("not a polygon = %d %s", rec.Code, rec.Body.String())
	}
	if rec := s.do(t, http.MethodGet, "/v1/report/6", "", nil, ""); rec.Code != http.StatusFailedDependency {
		t.Fatalf("geocoder down = %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/v1/report/abc", "", nil, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad place id = %d", rec.Code)
	}
}

func TestCreateOccurrence_Validation(t *testing.T) {
	s := newStack(t)
	rec := s.doJSON(t, http.MethodPost, "/v1/occurrences", token(t, 1, model.RoleUser), map[string]any{
		"type_id": 1, "latitude": 91, "longitude": 0, "description": "pothole",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decodeJSON[errorBody](t, rec); got.Fields["latitude"] == "" {
		t.Fatalf("fields = %v", got.Fields)
	}
}

func TestReportInteraction(t *testing.T) {
	s := newStack(t)
	s.occ.EXPECT().RecordInteraction(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in *model.Interaction, closeWhen func(model.Counters) bool) (*model.Occurrence, bool, error) {
			in.ID = 9
			o := &model.Occurrence{ID: in.OccurrenceID, Active: true, Counters: model.Counters{Existing: 2}}
			return o, closeWhen(o.Counters), nil
		})

	rec := s.doJSON(t, http.MethodPost, "/v1/occurrences/4/interactions", token(t, 8, model.RoleUser), map[string]string{"kind": "ex"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	got := decodeJSON[struct {
		Interaction struct {
			Kind string `json:"kind"`
		} `json:"interaction"`
		Occurrence struct {
			Counters struct {
				Existing uint32 `json:"existing"`
			} `json:"counters"`
		} `json:"occurrence"`
		Closed bool `json:"closed"`
	}](t, rec)
	if got.Interaction.Kind != "EX" || got.Occurrence.Counters.Existing != 2 || got.Closed {
		t.Fatalf("unexpected response %+v", got)
	}

	s.occ.EXPECT().RecordInteraction(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, false, repository.ErrInactive)
	rec = s.doJSON(t, http.MethodPost, "/v1/occurrences/4/interactions", token(t, 8, model.RoleUser), map[string]string{"kind": "FI"})
	if rec.Code != http.StatusBadRequest || decodeJSON[errorBody](t, rec).Code != service.CodeOccurrenceInactive {
		t.Fatalf("inactive = %d %s", rec.Code, rec.Body.String())
	}
}

func TestDeleteType_Referenced(t *testing.T) {
	s := newStack(t)
	s.types.EXPECT().Delete(gomock.Any(), uint64(2)).Return(repository.ErrReferenced)
	rec := s.do(t, http.MethodDelete, "/v1/types/2", token(t, 1, model.RoleAdmin), nil, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGetOccurrence_NotFound(t *testing.T) {
	s := newStack(t)
	s.occ.EXPECT().GetByID(gomock.Any(), uint64(404)).Return(nil, repository.ErrNotFound)
	if rec := s.do(t, http.MethodGet, "/v1/occurrences/404", "", nil, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}
