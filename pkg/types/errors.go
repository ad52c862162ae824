package types

import (
	"errors"
	"fmt"
)

// Table operation errors. Caller errors; never retried.
var (
	ErrValidation   = errors.New("invalid field value")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrNotFound     = errors.New("record not found")
)

// Persistence and sync errors.
var (
	// ErrPathNotFound is returned by RemoteStore.Get when nothing is stored
	// at the path. TableStore turns it into an empty table.
	ErrPathNotFound = errors.New("remote path not found")

	// ErrCorruptData is returned when remote content cannot be parsed
	// against the schema. Fatal; no repair is attempted.
	ErrCorruptData = errors.New("corrupt table data")

	// ErrConflict is returned by RemoteStore.Put when the expected revision
	// does not match the stored one.
	ErrConflict = errors.New("revision conflict")

	// ErrMergeConflict is returned when a mutation collides with a
	// concurrent write to the same key and must be resubmitted by hand.
	ErrMergeConflict = errors.New("merge conflict")

	// ErrTransport is returned on network or availability failures.
	ErrTransport = errors.New("transport failure")

	// ErrSyncExhausted is returned when the retry budget for a mutation is
	// spent. The edit is kept pending in memory.
	ErrSyncExhausted = errors.New("sync retries exhausted")

	// ErrNoPendingEdit is returned by Retry when there is nothing to retry.
	ErrNoPendingEdit = errors.New("no pending edit")

	// ErrEditPending is returned by Mutate while an earlier edit awaits
	// Retry or Discard.
	ErrEditPending = errors.New("an earlier edit is pending")
)

// ValidationError reports a field value that violates its declared type,
// bounds or option set, or a field the schema does not declare.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid record: %s", e.Reason)
	}
	return fmt.Sprintf("invalid value %v for field %q: %s", e.Value, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// DuplicateKeyError reports an insert (or key rename) onto a key that is
// already present.
type DuplicateKeyError struct {
	Key string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key %q", e.Key)
}

func (e *DuplicateKeyError) Is(target error) bool { return target == ErrDuplicateKey }

// NotFoundError reports a key that no record carries.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no record with key %q", e.Key)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// CorruptDataError reports unparsable remote content. Line is 1-based and
// counts the header; zero means the error is not tied to a line.
type CorruptDataError struct {
	Path   string
	Line   int
	Reason string
}

func (e *CorruptDataError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("corrupt data in %s at line %d: %s", e.Path, e.Line, e.Reason)
	}
	return fmt.Sprintf("corrupt data in %s: %s", e.Path, e.Reason)
}

func (e *CorruptDataError) Is(target error) bool { return target == ErrCorruptData }

// ConflictError is returned by RemoteStore.Put when the expected revision is
// stale. Current is empty when the store does not report it.
type ConflictError struct {
	Path     string
	Expected Revision
	Current  Revision
}

func (e *ConflictError) Error() string {
	if e.Expected.IsAbsent() {
		return fmt.Sprintf("revision conflict on %s: expected absent blob", e.Path)
	}
	return fmt.Sprintf("revision conflict on %s: expected %s", e.Path, e.Expected)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// MergeConflictError names the key on which a mutation collided with a
// concurrent writer. The concurrent value won; the mutation was not saved.
type MergeConflictError struct {
	Key string
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("merge conflict on key %q: record changed concurrently, resubmit the edit", e.Key)
}

func (e *MergeConflictError) Is(target error) bool { return target == ErrMergeConflict }

// TransportError wraps a network or availability failure. StatusCode is the
// HTTP status when one was received, zero otherwise.
type TransportError struct {
	Op         string
	Path       string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Op, e.Path)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

func (e *TransportError) Unwrap() error { return e.Err }

// SyncExhaustedError is returned after Attempts conflicting saves. Last is
// the final conflict and is not part of the Unwrap chain.
type SyncExhaustedError struct {
	Attempts int
	Last     error
}

func (e *SyncExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d conflicting saves; edit kept locally", e.Attempts)
}

func (e *SyncExhaustedError) Is(target error) bool { return target == ErrSyncExhausted }

// IsCallerError reports whether err is a validation or key error, the
// class of errors that are surfaced immediately and never retried.
func IsCallerError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrDuplicateKey) ||
		errors.Is(err, ErrNotFound)
}
