package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/iliyamo/cityhelp/internal/repository"
)

// Error kinds surfaced by every service.  Handlers map them to HTTP status
// codes with errors.Is.
var (
	ErrValidation     = errors.New("validation failed")
	ErrAuthentication = errors.New("authentication failed")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not found")
	ErrReferenced     = errors.New("resource is still referenced")
	ErrDependency     = errors.New("dependency failed")
)

// Validation codes.
const (
	CodeInvalidFields      = "invalid_fields"
	CodeUnderage           = "underage"
	CodeDuplicateEmail     = "duplicate_email"
	CodeDuplicateNickname  = "duplicate_nickname"
	CodeOccurrenceInactive = "occurrence_inactive"
	CodeNotAPolygon        = "not_a_polygon"
	CodeInvalidRegion      = "invalid_region"
	CodeInvalidImage       = "invalid_image"
	CodeImageTooLarge      = "image_too_large"
)

// ValidationError is a caller-fixable rejection.  Fields maps JSON field
// names to messages when the problem is tied to specific inputs.
type ValidationError struct {
	Code    string
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(code, msg string) *ValidationError {
	return &ValidationError{Code: code, Message: msg}
}

func invalidFields(fields map[string]string) *ValidationError {
	return &ValidationError{Code: CodeInvalidFields, Message: "invalid input", Fields: fields}
}

func invalidField(field, msg string) *ValidationError {
	return invalidFields(map[string]string{field: msg})
}

// fromRepo lifts repository sentinels into service error kinds.
func fromRepo(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, repository.ErrReferenced):
		return fmt.Errorf("%s: %w", op, ErrReferenced)
	}
	return fmt.Errorf("%s: %w", op, err)
}
