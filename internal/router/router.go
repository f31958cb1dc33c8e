// Package router wires handlers, middleware and the access policy onto an
// Echo instance.
package router

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cityhelp/internal/config"
	"github.com/iliyamo/cityhelp/internal/handler"
	"github.com/iliyamo/cityhelp/internal/middleware"
)

// Handlers are the endpoint groups served by the API.
type Handlers struct {
	Auth        *handler.AuthHandler
	Users       *handler.UserHandler
	Types       *handler.TypeHandler
	Occurrences *handler.OccurrenceHandler
	Attachments *handler.AttachmentHandler
	DB          handler.Pinger
}

// Options configure the cross-cutting middleware.  A nil Redis client keeps
// rate limiting in process and disables the response cache.
type Options struct {
	JWTSecret     string
	Policy        middleware.Policy
	RateLimit     config.RateLimitConfig
	Cache         config.CacheConfig
	Redis         *redis.Client
	Logger        *slog.Logger
	MaxUploadSize int64
}

// New builds the Echo instance with every route of the API.
func New(h Handlers, o Options) *echo.Echo {
	if o.Policy == nil {
		o.Policy = middleware.DefaultPolicy()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(o.Logger))
	e.Use(echomw.BodyLimit(bodyLimit(o.MaxUploadSize)))
	e.Use(middleware.JWTAuth(o.JWTSecret))
	e.Use(middleware.NewTokenBucket(o.RateLimit, o.Redis, o.Logger))

	r := &routes{e: e, policy: o.Policy}
	cache := middleware.NewRedisCache(o.Cache, o.Redis, o.Logger)

	r.add(http.MethodGet, "/healthz", middleware.OpHealth, handler.Health)
	if h.DB != nil {
		r.add(http.MethodGet, "/readyz", middleware.OpReady, handler.Ready(h.DB))
	}

	// Sessions
	r.add(http.MethodPost, "/v1/auth/register", middleware.OpRegister, h.Auth.Register)
	r.add(http.MethodPost, "/v1/auth/login", middleware.OpLogin, h.Auth.Login)
	r.add(http.MethodPost, "/v1/auth/refresh", middleware.OpRefresh, h.Auth.Refresh)
	r.add(http.MethodPost, "/v1/auth/logout", middleware.OpLogout, h.Auth.Logout)

	// Users
	r.add(http.MethodGet, "/v1/users/me", middleware.OpMe, h.Users.Me)
	r.add(http.MethodGet, "/v1/users", middleware.OpListUsers, h.Users.List)
	r.add(http.MethodGet, "/v1/users/:id", middleware.OpGetUser, h.Users.Get)
	r.add(http.MethodPatch, "/v1/users/:id", middleware.OpUpdateUser, h.Users.Update)
	r.add(http.MethodPut, "/v1/users/:id", middleware.OpUpdateUser, h.Users.Update)
	r.add(http.MethodDelete, "/v1/users/:id", middleware.OpDeleteUser, h.Users.Delete)

	// Types
	r.add(http.MethodGet, "/v1/types", middleware.OpListTypes, h.Types.List, cache)
	r.add(http.MethodGet, "/v1/types/:id", middleware.OpGetType, h.Types.Get, cache)
	r.add(http.MethodPost, "/v1/types", middleware.OpCreateType, h.Types.Create)
	r.add(http.MethodPut, "/v1/types/:id", middleware.OpUpdateType, h.Types.Update)
	r.add(http.MethodDelete, "/v1/types/:id", middleware.OpDeleteType, h.Types.Delete)

	// Occurrences
	r.add(http.MethodGet, "/v1/occurrences", middleware.OpListOccurrences, h.Occurrences.List)
	r.add(http.MethodPost, "/v1/occurrences", middleware.OpCreateOccurrence, h.Occurrences.Create)
	r.add(http.MethodGet, "/v1/occurrences/:id", middleware.OpGetOccurrence, h.Occurrences.Get)
	r.add(http.MethodPatch, "/v1/occurrences/:id", middleware.OpUpdateOccurrence, h.Occurrences.Update)
	r.add(http.MethodDelete, "/v1/occurrences/:id", middleware.OpDeleteOccurrence, h.Occurrences.Delete)
	r.add(http.MethodPost, "/v1/occurrences/:id/interactions", middleware.OpReport, h.Occurrences.Report)
	r.add(http.MethodGet, "/v1/occurrences/:id/interactions", middleware.OpListInteractions, h.Occurrences.ListInteractions)
	r.add(http.MethodPost, "/v1/occurrences/:id/expire", middleware.OpExpire, h.Occurrences.Expire)
	r.add(http.MethodGet, "/v1/report/:place_id", middleware.OpPlaceReport, h.Occurrences.PlaceReport, cache)
	r.add(http.MethodPost, "/v1/admin/occurrences/expire", middleware.OpSweep, h.Occurrences.Sweep)

	// Comments and images
	r.add(http.MethodGet, "/v1/occurrences/:id/comments", middleware.OpListComments, h.Attachments.ListComments)
	r.add(http.MethodPost, "/v1/occurrences/:id/comments", middleware.OpCreateComment, h.Attachments.CreateComment)
	r.add(http.MethodGet, "/v1/occurrences/:id/images", middleware.OpListOccImages, h.Attachments.ListOccurrenceImages)
	r.add(http.MethodPost, "/v1/occurrences/:id/images", middleware.OpAttachOccImage, h.Attachments.AttachOccurrenceImage)
	r.add(http.MethodGet, "/v1/comments/:id", middleware.OpGetComment, h.Attachments.GetComment)
	r.add(http.MethodGet, "/v1/comments/:id/images", middleware.OpListComImages, h.Attachments.ListCommentImages)
	r.add(http.MethodPost, "/v1/comments/:id/images", middleware.OpAttachComImage, h.Attachments.AttachCommentImage)
	r.add(http.MethodGet, "/v1/images/:id", middleware.OpGetImage, h.Attachments.GetImage)
	r.add(http.MethodDelete, "/v1/images/:id", middleware.OpDeleteImage, h.Attachments.DeleteImage)

	return e
}

type routes struct {
	e      *echo.Echo
	policy middleware.Policy
}

// add registers one route behind the policy entry for op.  The route is named
// after op.
func (r *routes) add(method, path, op string, h echo.HandlerFunc, extra ...echo.MiddlewareFunc) {
	mws := append([]echo.MiddlewareFunc{middleware.Authorize(r.policy, op)}, extra...)
	r.e.Add(method, path, h, mws...).Name = op
}

// bodyLimit leaves room for multipart framing around the largest upload.
func bodyLimit(maxUpload int64) string {
	const overhead = 64 << 10
	if maxUpload <= 0 {
		maxUpload = 5 << 20
	}
	return strconv.FormatInt((maxUpload+overhead)/1024, 10) + "K"
}
