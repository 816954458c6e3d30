package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"banktransfer/internal/domain"
)

// Exit codes. Each error kind has its own code so scripts can branch on it.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

var kindExitCodes = map[domain.ErrorKind]int{
	domain.KindAuthFailed:        3,
	domain.KindInvalidAccount:    4,
	domain.KindAccountNotFound:   5,
	domain.KindInsufficientFunds: 6,
	domain.KindAuthRequired:      7,
	domain.KindUnavailable:       8,
	domain.KindProtocolError:     9,
	domain.KindClientError:       10,
}

// usageError marks bad arguments or flags.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usage(err error) error {
	if err == nil {
		return nil
	}
	return &usageError{err: err}
}

// usageArgs marks positional argument errors from fn as usage errors.
func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return usage(fn(cmd, args))
	}
}

// reportedError is an error whose details were already printed.
type reportedError struct{ err error }

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

func reported(err error) error {
	if err == nil {
		return nil
	}
	return &reportedError{err: err}
}

// Reported reports whether err was already shown to the user.
func Reported(err error) bool {
	var r *reportedError
	return errors.As(err, &r)
}

// ExitCode maps err to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var u *usageError
	if errors.As(err, &u) {
		return ExitUsage
	}
	if code, ok := kindExitCodes[kindOf(err)]; ok {
		return code
	}
	return ExitFailure
}

func kindOf(err error) domain.ErrorKind {
	var f *domain.Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return domain.KindOf(err)
}
