package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel errors shared by the domain capabilities. Callers match them with
// errors.Is; producers wrap them with record context.
var (
	// ErrPrecondition reports an operation invoked on a record that lacks data
	// the operation requires (for example a grid label without a grid parent).
	ErrPrecondition = errors.New("precondition failed")
	// ErrUnknownUnit reports a quantity referencing a unit id the registry does not know.
	ErrUnknownUnit = errors.New("unknown unit")
	// ErrIncompatibleUnits reports a conversion between units of different categories.
	ErrIncompatibleUnits = errors.New("incompatible units")
	// ErrUserCancelled is returned by an activation the user declined.
	ErrUserCancelled = errors.New("cancelled by user")
	// ErrInvalidGlobalID reports a malformed or unknown global id.
	ErrInvalidGlobalID = errors.New("invalid global id")
	// ErrNotFound reports a record absent from a tree or store.
	ErrNotFound = errors.New("not found")
)

// NotFoundError identifies the missing record. It matches ErrNotFound.
type NotFoundError struct {
	Entity RecordType
	ID     GlobalID
}

func (e NotFoundError) Error() string {
	if e.Entity == "" {
		return fmt.Sprintf("record %s not found", e.ID)
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Is reports whether target is ErrNotFound.
func (e NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func preconditionf(format string, args ...any) error {
	return errors.Wrapf(ErrPrecondition, format, args...)
}
