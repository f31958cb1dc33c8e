package middleware

import (
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cityhelp/internal/model"
)

// Capability is the minimum standing a caller needs for an operation.
// Ownership checks (self, owner, author) happen in the services on top of
// Authenticated.
type Capability int

const (
	Anyone Capability = iota
	Authenticated
	Admin
)

func (c Capability) String() string {
	switch c {
	case Anyone:
		return "anyone"
	case Authenticated:
		return "authenticated"
	case Admin:
		return "admin"
	}
	return fmt.Sprintf("Capability(%d)", int(c))
}

// Policy maps an operation name to its capability.
type Policy map[string]Capability

// Operation names used by the router.
const (
	OpHealth           = "health"
	OpReady            = "ready"
	OpRegister         = "auth.register"
	OpLogin            = "auth.login"
	OpRefresh          = "auth.refresh"
	OpLogout           = "auth.logout"
	OpMe               = "users.me"
	OpListUsers        = "users.list"
	OpGetUser          = "users.get"
	OpUpdateUser       = "users.update"
	OpDeleteUser       = "users.delete"
	OpListTypes        = "types.list"
	OpGetType          = "types.get"
	OpCreateType       = "types.create"
	OpUpdateType       = "types.update"
	OpDeleteType       = "types.delete"
	OpListOccurrences  = "occurrences.list"
	OpGetOccurrence    = "occurrences.get"
	OpCreateOccurrence = "occurrences.create"
	OpUpdateOccurrence = "occurrences.update"
	OpDeleteOccurrence = "occurrences.delete"
	OpReport           = "occurrences.interactions.create"
	OpListInteractions = "occurrences.interactions.list"
	OpExpire           = "occurrences.expire"
	OpListComments     = "occurrences.comments.list"
	OpCreateComment    = "occurrences.comments.create"
	OpListOccImages    = "occurrences.images.list"
	OpAttachOccImage   = "occurrences.images.create"
	OpGetComment       = "comments.get"
	OpListComImages    = "comments.images.list"
	OpAttachComImage   = "comments.images.create"
	OpGetImage         = "images.get"
	OpDeleteImage      = "images.delete"
	OpPlaceReport      = "report.place"
	OpSweep            = "admin.occurrences.expire"
)

// DefaultPolicy is the access table of the public API.
func DefaultPolicy() Policy {
	return Policy{
		OpHealth:           Anyone,
		OpReady:            Anyone,
		OpRegister:         Anyone,
		OpLogin:            Anyone,
		OpRefresh:          Anyone,
		OpLogout:           Anyone,
		OpMe:               Authenticated,
		OpListUsers:        Admin,
		OpGetUser:          Authenticated,
		OpUpdateUser:       Authenticated,
		OpDeleteUser:       Authenticated,
		OpListTypes:        Anyone,
		OpGetType:          Anyone,
		OpCreateType:       Admin,
		OpUpdateType:       Admin,
		OpDeleteType:       Admin,
		OpListOccurrences:  Anyone,
		OpGetOccurrence:    Anyone,
		OpCreateOccurrence: Authenticated,
		OpUpdateOccurrence: Authenticated,
		OpDeleteOccurrence: Authenticated,
		OpReport:           Authenticated,
		OpListInteractions: Anyone,
		OpExpire:           Authenticated,
		OpListComments:     Anyone,
		OpCreateComment:    Authenticated,
		OpListOccImages:    Anyone,
		OpAttachOccImage:   Authenticated,
		OpGetComment:       Anyone,
		OpListComImages:    Anyone,
		OpAttachComImage:   Authenticated,
		OpGetImage:         Anyone,
		OpDeleteImage:      Authenticated,
		OpPlaceReport:      Anyone,
		OpSweep:            Admin,
	}
}

// Authorize returns the middleware enforcing policy[op].  It panics at route
// registration when op is missing, so every route has an explicit entry.
func Authorize(policy Policy, op string) echo.MiddlewareFunc {
	capability, ok := policy[op]
	if !ok {
		panic("middleware: no policy entry for operation " + op)
	}
	switch capability {
	case Authenticated:
		return RequireAuth()
	case Admin:
		return RequireRole(model.RoleAdmin)
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
}
