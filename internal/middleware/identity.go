package middleware

// identity.go holds the context keys written by JWTAuth and the accessors the
// rest of the HTTP layer uses to read them back.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// UserID returns the authenticated user id, or 0 for anonymous requests.
func UserID(c echo.Context) uint64 {
	id, _ := c.Get(ctxUserID).(uint64)
	return id
}

// Role returns the role claim of the authenticated user, or "".
func Role(c echo.Context) string {
	role, _ := c.Get(ctxRole).(string)
	return role
}

// currentUserID renders the caller for rate limit and cache keys.
func currentUserID(c echo.Context) string {
	if id := UserID(c); id != 0 {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
