package main

import (
	"fmt"

	"github.com/pkg/errors"
)

// Exit codes.
const (
	exitFailure      = 1 // a scenario failed
	exitCommandError = 2 // bad arguments, unreadable files, fetch errors
)

// exitError carries the process exit code of a failed command.
type exitError struct {
	code    int
	message string
	err     error
}

func (e *exitError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}
	return e.message
}

func (e *exitError) Unwrap() error { return e.err }

func commandError(message string, err error) error {
	return &exitError{code: exitCommandError, message: message, err: err}
}

func exitCode(err error) int {
	var e *exitError
	if errors.As(err, &e) {
		return e.code
	}
	return exitCommandError
}
