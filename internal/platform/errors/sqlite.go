package errors

// SQLite-specific helpers for mapping driver errors to project ErrorCode,
// extracting fields, and retry semantics

import (
	"context"
	stderrs "errors"
	"fmt"
	"strings"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// ExtractSQLiteError returns (sqlite3.Error, true) if the root cause is a driver error.
func ExtractSQLiteError(err error) (sqlite3.Error, bool) {
	var se sqlite3.Error
	if stderrs.As(Root(err), &se) {
		return se, true
	}
	return sqlite3.Error{}, false
}

// isExtended reports whether the error carries the given extended result code
func isExtended(err error, code sqlite3.ErrNoExtended) bool {
	se, ok := ExtractSQLiteError(err)
	return ok && se.ExtendedCode == code
}

// Human-friendly predicates for common constraint classes.

// IsDuplicateKey reports whether the error is a unique or primary key constraint violation
func IsDuplicateKey(err error) bool {
	return isExtended(err, sqlite3.ErrConstraintUnique) || isExtended(err, sqlite3.ErrConstraintPrimaryKey)
}

// IsForeignKeyViolation reports whether the error is a foreign key constraint violation
func IsForeignKeyViolation(err error) bool { return isExtended(err, sqlite3.ErrConstraintForeignKey) }

// IsNotNullViolation reports whether the error is a not-null constraint violation
func IsNotNullViolation(err error) bool { return isExtended(err, sqlite3.ErrConstraintNotNull) }

// IsCheckViolation reports whether the error is a check constraint violation
func IsCheckViolation(err error) bool { return isExtended(err, sqlite3.ErrConstraintCheck) }

// IsBusy reports whether the database file is momentarily locked by another connection
func IsBusy(err error) bool {
	se, ok := ExtractSQLiteError(err)
	return ok && (se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked)
}

// DBErrorCode maps a SQLite error to an ErrorCode with an ok flag
// !ok means err wasn't a driver error; caller may fall back to generic handling
func DBErrorCode(err error) (ErrorCode, bool) {
	var se sqlite3.Error
	if !stderrs.As(Root(err), &se) {
		return ErrorCodeUnknown, false
	}

	switch se.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return ErrorCodeDuplicateKey, true

	case sqlite3.ErrConstraintForeignKey:
		// Typically this means input referenced a missing row: classify as invalid input
		return ErrorCodeInvalidArgument, true

	case sqlite3.ErrConstraintNotNull, sqlite3.ErrConstraintCheck:
		return ErrorCodeValidation, true
	}

	switch se.Code {
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		// Retryable contention on the single writer
		return ErrorCodeDB, true

	case sqlite3.ErrCantOpen, sqlite3.ErrReadonly, sqlite3.ErrIoErr:
		// Transient/unavailable storage
		return ErrorCodeUnavailable, true
	}

	// Default: still a DB error
	return ErrorCodeDB, true
}

// FromSQLite wraps a driver error with a mapped ErrorCode and message.
// Errors already carrying a project code pass through untouched, so repos
// can wrap whatever the store row helpers return without re-classifying a
// scan failure as a generic DB error. If err is nil, returns nil
func FromSQLite(err error, msg string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrs.As(err, &e) {
		return err
	}
	if code, ok := DBErrorCode(err); ok {
		return Wrap(err, code, msg)
	}
	return Wrap(err, ErrorCodeDB, msg)
}

// FromSQLitef is the formatted variant of FromSQLite
func FromSQLitef(err error, format string, a ...any) error {
	return FromSQLite(err, fmt.Sprintf(format, a...))
}

// AttachFieldFromSQLite tries to enrich an error with a column name parsed from
// the driver message, e.g. "UNIQUE constraint failed: prs.repo_id, prs.number"
// yields "repo_id". Returns the original error if no field can be inferred
func AttachFieldFromSQLite(err error) error {
	se, ok := ExtractSQLiteError(err)
	if !ok {
		return err
	}
	msg := se.Error()
	i := strings.Index(msg, "constraint failed: ")
	if i < 0 {
		return err
	}
	rest := msg[i+len("constraint failed: "):]
	if j := strings.IndexAny(rest, ","); j >= 0 {
		rest = rest[:j]
	}
	rest = strings.TrimSpace(rest)
	if k := strings.LastIndex(rest, "."); k >= 0 && k+1 < len(rest) {
		rest = rest[k+1:]
	}
	if rest == "" {
		return err
	}
	return WithField(err, rest)
}

// FromSQLiteWithField wraps the error (like FromSQLite) and then attempts to
// attach a field name if discoverable from the driver message
func FromSQLiteWithField(err error, msg string) error {
	return AttachFieldFromSQLite(FromSQLite(err, msg))
}

// IsRetryable reports whether a database error represents a transient condition
// worth retrying. It handles both structured sqlite3.Error codes and the
// generic lock text seen when a second connection holds the write lock
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Do not retry local cancellations/timeouts; let the caller decide higher-level retries
	if stderrs.Is(err, context.Canceled) || stderrs.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Unwrap to the root cause so we can see either the driver error or lock text
	root := Root(err)

	var se sqlite3.Error
	if stderrs.As(root, &se) {
		switch se.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrProtocol:
			return true
		default:
			return false
		}
	}

	// Fallback: text patterns from the driver or database/sql plumbing
	s := strings.ToLower(root.Error())
	switch {
	case strings.Contains(s, "database is locked"),
		strings.Contains(s, "database table is locked"),
		strings.Contains(s, "database schema has changed"),
		strings.Contains(s, "bad connection"):
		return true
	default:
		return false
	}
}
