package types

import "github.com/shopspring/decimal"

// AccountSnapshot is a point-in-time balance reading.
type AccountSnapshot struct {
	AccountID AccountID       `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
	Currency  string          `json:"currency,omitempty"`
	Status    string          `json:"status,omitempty"`
}

// AccountSummary is one entry of the remote account listing.
type AccountSummary struct {
	AccountID AccountID        `json:"account_id"`
	Status    string           `json:"status,omitempty"`
	Balance   *decimal.Decimal `json:"balance,omitempty"`
}

// BalancePair holds the two balances observed before a transfer.
type BalancePair struct {
	From AccountSnapshot `json:"from"`
	To   AccountSnapshot `json:"to"`
}
