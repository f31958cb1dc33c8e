package middleware // middleware provides shared request processing for handlers

import (
	"github.com/labstack/echo/v4"
)

// RequireRole returns a middleware that lets through only authenticated
// callers whose role claim is one of roles.  Anonymous callers get 401 and
// authenticated callers with another role get 403.  It must run after
// JWTAuth.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if UserID(c) == 0 {
				return unauthorized(c, "authentication required")
			}
			if !allowed[Role(c)] {
				return forbidden(c, "insufficient role")
			}
			return next(c)
		}
	}
}

// RequireAuth lets through any authenticated caller.
func RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if UserID(c) == 0 {
				return unauthorized(c, "authentication required")
			}
			return next(c)
		}
	}
}
