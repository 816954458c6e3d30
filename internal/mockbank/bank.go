package mockbank

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Error codes returned in {"error": CODE, "message": ...} payloads.
const (
	CodeAccountNotFound   = "ACCOUNT_NOT_FOUND"
	CodeInvalidAccount    = "INVALID_ACCOUNT"
	CodeInvalidAmount     = "INVALID_AMOUNT"
	CodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeBadRequest        = "BAD_REQUEST"
	CodeInjectedFault     = "INJECTED_FAULT"
)

const (
	statusActive    = "ACTIVE"
	defaultCurrency = "USD"
)

// Account is one ledger account.
type Account struct {
	ID       string          `json:"accountId"`
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
	Status   string          `json:"status"`
}

// Transaction is one recorded transfer.
type Transaction struct {
	ID              string          `json:"transactionId"`
	Status          string          `json:"status"`
	Type            string          `json:"type"`
	From            string          `json:"fromAccount"`
	To              string          `json:"toAccount"`
	Amount          decimal.Decimal `json:"amount"`
	Timestamp       time.Time       `json:"timestamp"`
	Message         string          `json:"message"`
	PermissionLevel string          `json:"permissionLevel"`
	NewFromBalance  decimal.Decimal `json:"newFromAccountBalance"`
	NewToBalance    decimal.Decimal `json:"newToAccountBalance"`
	Owner           string          `json:"-"`
}

// Rejection is a business-rule refusal carrying an API error code.
type Rejection struct {
	Code    string
	Message string
}

func (r *Rejection) Error() string { return r.Code + ": " + r.Message }

// Bank is the in-memory ledger. It is safe for concurrent use.
type Bank struct {
	mu       sync.RWMutex
	accounts map[string]*Account
	txns     []Transaction
	now      func() time.Time
}

// NewBank seeds n accounts ACC1000, ACC1001, ... holding opening each.
func NewBank(n int, opening decimal.Decimal, now func() time.Time) *Bank {
	if now == nil {
		now = time.Now
	}
	b := &Bank{accounts: make(map[string]*Account, n), now: now}
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("ACC%d", 1000+i)
		b.accounts[id] = &Account{ID: id, Balance: opening, Currency: defaultCurrency, Status: statusActive}
	}
	return b
}

// Accounts returns all accounts ordered by id.
func (b *Bank) Accounts() []Account {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Account, 0, len(b.accounts))
	for _, a := range b.accounts {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Account returns the account with id.
func (b *Bank) Account(id string) (Account, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	a, ok := b.accounts[id]
	if !ok {
		return Account{}, false
	}
	return *a, true
}

// SetBalance overwrites the balance of an existing account.
func (b *Bank) SetBalance(id string, balance decimal.Decimal) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.accounts[id]
	if ok {
		a.Balance = balance
	}
	return ok
}

// Transfer moves amount between two accounts and records the transaction.
// owner is the authenticated subject, empty for anonymous transfers.
func (b *Bank) Transfer(from, to string, amount decimal.Decimal, owner string) (Transaction, error) {
	switch {
	case from == "" || to == "":
		return Transaction{}, &Rejection{CodeInvalidAccount, "fromAccount and toAccount are required"}
	case from == to:
		return Transaction{}, &Rejection{CodeInvalidAccount, "cannot transfer to the same account"}
	case !amount.IsPositive():
		return Transaction{}, &Rejection{CodeInvalidAmount, "amount must be positive"}
	case !amount.Equal(amount.Round(2)):
		return Transaction{}, &Rejection{CodeInvalidAmount, "amount must have at most 2 decimal places"}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	src, ok := b.accounts[from]
	if !ok {
		return Transaction{}, &Rejection{CodeAccountNotFound, fmt.Sprintf("account %s not found", from)}
	}
	dst, ok := b.accounts[to]
	if !ok {
		return Transaction{}, &Rejection{CodeAccountNotFound, fmt.Sprintf("account %s not found", to)}
	}
	if src.Balance.LessThan(amount) {
		return Transaction{}, &Rejection{CodeInsufficientFunds, fmt.Sprintf("insufficient funds in %s", from)}
	}

	src.Balance = src.Balance.Sub(amount)
	dst.Balance = dst.Balance.Add(amount)

	level := "BASIC"
	if owner != "" {
		level = "ENHANCED"
	}
	tx := Transaction{
		ID:              uuid.NewString(),
		Status:          "SUCCESS",
		Type:            "TRANSFER",
		From:            from,
		To:              to,
		Amount:          amount,
		Timestamp:       b.now().UTC(),
		Message:         "Transfer completed successfully",
		PermissionLevel: level,
		NewFromBalance:  src.Balance,
		NewToBalance:    dst.Balance,
		Owner:           owner,
	}
	b.txns = append(b.txns, tx)
	return tx, nil
}

// History returns up to limit transactions newest first, optionally only
// those touching account.
func (b *Bank) History(account string, limit int) []Transaction {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Transaction, 0, len(b.txns))
	for i := len(b.txns) - 1; i >= 0; i-- {
		tx := b.txns[i]
		if account != "" && tx.From != account && tx.To != account {
			continue
		}
		out = append(out, tx)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Transactions returns the number of recorded transfers.
func (b *Bank) Transactions() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.txns)
}
