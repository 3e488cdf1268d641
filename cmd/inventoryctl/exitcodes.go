package main

import (
	"github.com/pkg/errors"

	"inventorycore/internal/core"
	"inventorycore/pkg/domain"
)

const (
	exitOK       = 0
	exitFailure  = 1
	exitUsage    = 2
	exitNotFound = 3
	exitBlocked  = 4
)

type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }

func (e *cliError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: code, err: err}
}

// exitCode maps an error onto the process status. Explicit codes win over
// the domain error kinds.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	var violation domain.RuleViolationError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return exitNotFound
	case errors.As(err, &violation), errors.Is(err, domain.ErrPrecondition):
		return exitBlocked
	case errors.Is(err, core.ErrInvalidPayload):
		return exitUsage
	default:
		return exitFailure
	}
}
