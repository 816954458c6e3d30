package types

import "fmt"

// Step names a stage of the transfer workflow.
type Step string

const (
	StepAuthenticate Step = "authenticate"
	StepValidate     Step = "validate"
	StepCheckBalance Step = "check_balance"
	StepTransfer     Step = "transfer"
	StepHistory      Step = "history"
)

// String returns the step name.
func (s Step) String() string { return string(s) }

// DefaultHistoryLimit is used when Options.HistoryLimit is not positive.
const DefaultHistoryLimit = 10

// Options selects the optional workflow steps. Transfer always runs.
type Options struct {
	Authenticate bool
	// ForceRefresh re-authenticates even when a valid credential is held.
	ForceRefresh bool
	Validate     bool
	CheckBalance bool
	History      bool

	HistoryLimit   int
	HistoryAccount AccountID
}

// HistoryQuery filters a transaction history lookup.
type HistoryQuery struct {
	Limit   int
	Account AccountID
}

// Failure describes why a workflow stopped.
type Failure struct {
	Kind    ErrorKind
	Message string
	Step    Step
	Err     error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s failed (%s): %s", f.Step, f.Kind, f.Message)
}

func (f *Failure) Unwrap() error { return f.Err }

// Warning is a non-fatal problem attached to a successful outcome.
type Warning struct {
	Step    Step
	Kind    ErrorKind
	Message string
}

// Outcome is the single result of a workflow run. Exactly one of Receipt and
// Failure is set.
type Outcome struct {
	Receipt  *TransferReceipt
	Balances *BalancePair
	History  []TransferReceipt
	Warnings []Warning
	Failure  *Failure
}

// Succeeded reports whether the transfer completed.
func (o Outcome) Succeeded() bool { return o.Failure == nil && o.Receipt != nil }

// Err returns the failure as an error, or nil on success.
func (o Outcome) Err() error {
	if o.Failure == nil {
		return nil
	}
	return o.Failure
}
