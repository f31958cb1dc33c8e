// Package repository defines error types that are reused across multiple
// repositories.  Driver errors are translated here so higher layers never
// inspect MySQL error numbers themselves.
package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrReferenced is returned when a delete would orphan dependent rows
// (foreign keys are ON DELETE RESTRICT).  Handlers translate this into 409.
var ErrReferenced = errors.New("row is referenced by other rows")

// ErrMissingReference is returned when an insert points at a parent row that
// does not exist.
var ErrMissingReference = fmt.Errorf("%w: referenced row missing", ErrNotFound)

// ErrDuplicate matches every DuplicateError.
var ErrDuplicate = errors.New("duplicate entry")

// ErrInactive is returned when an interaction targets a closed occurrence.
var ErrInactive = errors.New("occurrence is inactive")

// DuplicateError names the unique key that rejected a write.
type DuplicateError struct {
	Key string
}

func (e *DuplicateError) Error() string { return "duplicate entry for key " + e.Key }

func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicate }

// MySQL server error numbers handled by mapError.
const (
	errDupEntry         = 1062
	errRowIsReferenced  = 1451
	errNoReferencedRow  = 1452
	errRowIsReferenced2 = 1217
)

// mapError converts driver errors into repository sentinels and leaves
// anything else untouched.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case errDupEntry:
			return &DuplicateError{Key: duplicateKey(me.Message)}
		case errRowIsReferenced, errRowIsReferenced2:
			return ErrReferenced
		case errNoReferencedRow:
			return ErrMissingReference
		}
	}
	return err
}

// duplicateKey extracts the index name from a message like
// "Duplicate entry 'a@b' for key 'users.uq_users_email'".
func duplicateKey(msg string) string {
	i := strings.LastIndex(msg, "for key '")
	if i < 0 {
		return ""
	}
	key := strings.TrimSuffix(msg[i+len("for key '"):], "'")
	if dot := strings.LastIndex(key, "."); dot >= 0 {
		key = key[dot+1:]
	}
	return key
}
