package types

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// amountPlaces is the number of fractional digits a transfer amount may carry.
const amountPlaces = 2

var (
	ErrEmptyFromAccount = errors.New("source account cannot be empty")
	ErrEmptyToAccount   = errors.New("destination account cannot be empty")
	ErrSameAccount      = errors.New("source and destination accounts must be different")
	ErrNonPositive      = errors.New("transfer amount must be positive")
	ErrAmountPrecision  = fmt.Errorf("transfer amount must have at most %d decimal places", amountPlaces)
)

// TransferRequest is a validated, immutable instruction to move funds.
//
// The zero value is not a valid request; build one with NewTransferRequest.
type TransferRequest struct {
	from   AccountID
	to     AccountID
	amount decimal.Decimal
}

// NewTransferRequest validates its inputs and returns a request.
func NewTransferRequest(from, to string, amount decimal.Decimal) (TransferRequest, error) {
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)
	switch {
	case from == "":
		return TransferRequest{}, ErrEmptyFromAccount
	case to == "":
		return TransferRequest{}, ErrEmptyToAccount
	case from == to:
		return TransferRequest{}, ErrSameAccount
	case !amount.IsPositive():
		return TransferRequest{}, ErrNonPositive
	case !amount.Equal(amount.Round(amountPlaces)):
		return TransferRequest{}, ErrAmountPrecision
	}
	return TransferRequest{
		from:   AccountID(from),
		to:     AccountID(to),
		amount: amount.Round(amountPlaces),
	}, nil
}

// ParseAmount parses a user-supplied decimal amount such as "100.50".
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}

// From returns the source account.
func (r TransferRequest) From() AccountID { return r.from }

// To returns the destination account.
func (r TransferRequest) To() AccountID { return r.to }

// Amount returns the amount, rounded to two places.
func (r TransferRequest) Amount() decimal.Decimal { return r.amount }

// String renders the request for logs and prompts.
func (r TransferRequest) String() string {
	return fmt.Sprintf("%s -> %s: %s", r.from, r.to, r.amount.StringFixed(amountPlaces))
}

// TransferStatus is the server-reported state of a transfer.
type TransferStatus string

const (
	TransferSucceeded TransferStatus = "SUCCESS"
	TransferFailed    TransferStatus = "FAILED"
)

// ParseTransferStatus normalises a server status string. Anything other than
// SUCCESS is treated as FAILED.
func ParseTransferStatus(s string) TransferStatus {
	if strings.EqualFold(strings.TrimSpace(s), string(TransferSucceeded)) {
		return TransferSucceeded
	}
	return TransferFailed
}

// TransferReceipt is the server's record of a transfer. It is built only
// from a successful gateway response and never mutated afterwards.
type TransferReceipt struct {
	TransactionID TransactionID   `json:"transaction_id"`
	Status        TransferStatus  `json:"status"`
	From          AccountID       `json:"from_account"`
	To            AccountID       `json:"to_account"`
	Amount        decimal.Decimal `json:"amount"`
	Timestamp     time.Time       `json:"timestamp"`

	Type            string           `json:"type,omitempty"`
	Message         string           `json:"message,omitempty"`
	PermissionLevel string           `json:"permission_level,omitempty"`
	NewFromBalance  *decimal.Decimal `json:"new_from_balance,omitempty"`
	NewToBalance    *decimal.Decimal `json:"new_to_balance,omitempty"`
}
