package cli

import "errors"

// ErrUsage marks command-line usage mistakes so the entry point can exit
// with a distinct status code.
var ErrUsage = errors.New("cli usage error")

// ErrIncompatible is returned by the check command when any error-severity
// finding exists, after the report has been printed.
var ErrIncompatible = errors.New("interface mismatch detected")

type usageError struct {
	msg string
}

func newUsageError(msg string) error { return usageError{msg: msg} }

func (e usageError) Error() string { return e.msg }

func (e usageError) Is(target error) bool { return target == ErrUsage }
