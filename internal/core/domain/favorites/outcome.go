package favorites

import "errors"

var (
	// ErrValidation is the sentinel error for malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrAlreadyExists is returned by stores when the pair is already favorited.
	ErrAlreadyExists = errors.New("favorite already exists")

	// ErrNotFound is returned by stores when there is no row to delete.
	ErrNotFound = errors.New("favorite not found")

	// ErrRemoteUnavailable wraps any store failure during a toggle.
	ErrRemoteUnavailable = errors.New("favorite store unavailable")
)

// Outcome is the result of a toggle. It is sealed: the only implementations
// are Committed, RolledBack and AuthRequired.
type Outcome interface {
	// Kind is a stable machine name for the outcome.
	Kind() string
	isOutcome()
}

// Committed means the store accepted the change.
type Committed struct {
	Favorite bool
}

// RolledBack means the store rejected the change and the cache was restored.
type RolledBack struct {
	Favorite bool
	Reason   error
}

// AuthRequired means there was no user; nothing was changed.
type AuthRequired struct{}

func (Committed) Kind() string    { return "committed" }
func (RolledBack) Kind() string   { return "rolled_back" }
func (AuthRequired) Kind() string { return "auth_required" }

func (Committed) isOutcome()    {}
func (RolledBack) isOutcome()   {}
func (AuthRequired) isOutcome() {}

// IsConflict reports whether err is one of the idempotent store conflicts that
// a toggle treats as success.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyExists) || errors.Is(err, ErrNotFound)
}
