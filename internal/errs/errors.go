package errs

import (
	"errors"
	"fmt"
)

// Taxonomy base errors. Specific errors below wrap exactly one base so that
// callers can match either the concrete error or the whole class with
// errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrPermission = errors.New("permission denied")
	ErrStore      = errors.New("store error")
)

var (
	// ErrUserNotFound indicates that no user record exists for the identity.
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)
	// ErrQuizNotFound indicates that the quiz id is unknown.
	ErrQuizNotFound = fmt.Errorf("quiz %w", ErrNotFound)
	// ErrQuestionNotFound indicates that the quiz has no such ordinal.
	ErrQuestionNotFound = fmt.Errorf("question %w", ErrNotFound)
	// ErrNoActiveSession indicates an answer arrived without an active session.
	ErrNoActiveSession = fmt.Errorf("no active session: %w", ErrConflict)
	// ErrSessionActive indicates a quiz start while another session is active.
	ErrSessionActive = fmt.Errorf("session already active: %w", ErrConflict)
	// ErrQuizNotCompleted indicates a rewrite request for a quiz the user never finished.
	ErrQuizNotCompleted = fmt.Errorf("quiz not completed: %w", ErrConflict)
	// ErrQuizNameTaken indicates an upload reusing an existing internal quiz name.
	ErrQuizNameTaken = fmt.Errorf("quiz name already taken: %w", ErrConflict)
	// ErrQuizAlreadyCompleted indicates a start request for a quiz the user already finished.
	ErrQuizAlreadyCompleted = fmt.Errorf("quiz already completed: %w", ErrConflict)
	// ErrAlreadyBanned indicates a ban request against a subject with an active ban.
	ErrAlreadyBanned = fmt.Errorf("subject already banned: %w", ErrConflict)
	// ErrNotAuthorized indicates the user's role does not grant the capability.
	ErrNotAuthorized = fmt.Errorf("not authorized: %w", ErrPermission)
	// ErrBanned indicates the user is banned and the capability is not the help path.
	ErrBanned = fmt.Errorf("user is banned: %w", ErrPermission)
	// ErrCannotBanSuperAdmin indicates a ban attempt against the top-level admin.
	ErrCannotBanSuperAdmin = fmt.Errorf("cannot ban the super admin: %w", ErrPermission)
	// ErrBadDuration indicates a ban duration outside the <int><s|m|h|d> grammar.
	ErrBadDuration = fmt.Errorf("bad duration: %w", ErrValidation)
	// ErrBadBool indicates a flag value other than the literal "true"/"false".
	ErrBadBool = fmt.Errorf("bad boolean literal: %w", ErrValidation)
)

// Store wraps a persistence failure into the store class.
func Store(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrStore, err)
}
