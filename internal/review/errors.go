package review

import (
	"github.com/pkg/errors"
)

var (
	// ErrNotAuthenticated means no valid user session could be resolved
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrInvalidOutcome means the outcome is not one of the enumerated values
	ErrInvalidOutcome = errors.New("invalid result: must be FAILED, STRUGGLED, SOLVED, or INSTANT")
	// ErrInvalidSettings means a settings update is out of bounds or empty
	ErrInvalidSettings = errors.New("invalid settings")
	// ErrProblemNotFound means the slug is not in the catalog
	ErrProblemNotFound = errors.New("problem not found")
	// ErrRepositoryUnavailable means a storage call failed or timed out
	ErrRepositoryUnavailable = errors.New("repository unavailable")
	// ErrConflict is returned by a Repository when an optimistic write lost a race
	ErrConflict = errors.New("review record was modified concurrently")
)

// unavailable tags a storage failure with ErrRepositoryUnavailable, keeping the cause in the message
func unavailable(err error, op string) error {
	return errors.Wrapf(ErrRepositoryUnavailable, "%s: %v", op, err)
}

// invalidSettings tags a validation failure with ErrInvalidSettings using msg verbatim
func invalidSettings(msg string) error {
	return &settingsError{msg: msg}
}

type settingsError struct {
	msg string
}

func (e *settingsError) Error() string { return e.msg }

func (e *settingsError) Is(target error) bool { return target == ErrInvalidSettings }
