package interview

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionClosed is returned for any mutation of a closed session.
	ErrSessionClosed = errors.New("session is closed")
	// ErrCollaboratorUnavailable means a generation collaborator failed or
	// timed out. The turn was not committed and may be retried.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
	// ErrMalformedProfileField marks an extracted value that failed validation.
	ErrMalformedProfileField = errors.New("malformed profile field")
	// ErrPersistenceFailure means the session store rejected a write. The
	// in-memory session is still valid.
	ErrPersistenceFailure = errors.New("persistence failure")
	ErrInvalidTransition  = errors.New("invalid stage transition")
	ErrEmptyUtterance     = errors.New("empty utterance")
	ErrRejectedInput      = errors.New("input rejected by policy")
	ErrUnknownStyle       = errors.New("unknown memoir style")
	ErrSessionNotFound    = errors.New("session not found")
)

// MalformedFieldError describes a dropped profile update.
type MalformedFieldError struct {
	Field  Field
	Value  string
	Reason string
}

func (e *MalformedFieldError) Error() string {
	return fmt.Sprintf("profile field %s: %q %s", e.Field, e.Value, e.Reason)
}

func (e *MalformedFieldError) Unwrap() error {
	return ErrMalformedProfileField
}

// CollaboratorError wraps a failure of an external generation component.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, ErrCollaboratorUnavailable, e.Err)
}

// Is matches ErrCollaboratorUnavailable while Unwrap keeps the cause reachable.
func (e *CollaboratorError) Is(target error) bool {
	return target == ErrCollaboratorUnavailable
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// Unavailable wraps err as a collaborator failure for op. A nil err stays nil.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *CollaboratorError
	if errors.As(err, &ce) {
		return err
	}
	return &CollaboratorError{Op: op, Err: err}
}

// PersistenceError reports a failed session write.
type PersistenceError struct {
	SessionID string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist session %s: %v", e.SessionID, e.Err)
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistenceFailure
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
