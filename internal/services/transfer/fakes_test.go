package transfer_test

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"banktransfer/internal/domain"
)

type fakeTokens struct {
	mu      sync.Mutex
	held    *domain.Credential
	next    domain.Credential
	err     error
	calls   int
	lastCtx context.Context
}

func (f *fakeTokens) Authenticate(ctx context.Context) (domain.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastCtx = ctx
	if f.err != nil {
		return domain.Credential{}, f.err
	}
	c := f.next
	f.held = &c
	return c, nil
}

func (f *fakeTokens) Current() *domain.Credential {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held == nil {
		return nil
	}
	c := *f.held
	return &c
}

func (f *fakeTokens) IsExpired(c domain.Credential, now time.Time) bool { return c.Expired(now) }

func (f *fakeTokens) authCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeAccounts struct {
	mu          sync.Mutex
	valid       map[domain.AccountID]bool
	validateErr error
	balances    map[domain.AccountID]decimal.Decimal
	balanceErr  map[domain.AccountID]error
	validated   []domain.AccountID
	looked      []domain.AccountID
}

func (f *fakeAccounts) Validate(_ context.Context, id domain.AccountID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validated = append(f.validated, id)
	if f.validateErr != nil {
		return false, f.validateErr
	}
	return f.valid[id], nil
}

func (f *fakeAccounts) Balance(_ context.Context, id domain.AccountID) (domain.AccountSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.looked = append(f.looked, id)
	if err := f.balanceErr[id]; err != nil {
		return domain.AccountSnapshot{}, err
	}
	b, ok := f.balances[id]
	if !ok {
		return domain.AccountSnapshot{}, domain.NewError(domain.KindAccountNotFound, "account %s not found", id)
	}
	return domain.AccountSnapshot{AccountID: id, Balance: b, Currency: "USD", Status: "ACTIVE"}, nil
}

func (f *fakeAccounts) List(context.Context) ([]domain.AccountSummary, error) {
	return nil, nil
}

func (f *fakeAccounts) validatedIDs() []domain.AccountID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.AccountID(nil), f.validated...)
}

// fakeTransfers echoes the request back as a successful receipt unless err
// is set. History mirrors the gateway's rule that a credential is required.
type fakeTransfers struct {
	mu         sync.Mutex
	err        error
	history    []domain.TransferReceipt
	historyErr error
	calls      int
	creds      []*domain.Credential
	queries    []domain.HistoryQuery
	historyN   int
}

func (f *fakeTransfers) Transfer(_ context.Context, req domain.TransferRequest, cred *domain.Credential) (domain.TransferReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.creds = append(f.creds, cred)
	if f.err != nil {
		return domain.TransferReceipt{}, f.err
	}
	return domain.TransferReceipt{
		TransactionID: domain.TransactionID("TXN-" + req.From().String()),
		Status:        domain.TransferSucceeded,
		From:          req.From(),
		To:            req.To(),
		Amount:        req.Amount(),
		Timestamp:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}, nil
}

func (f *fakeTransfers) History(_ context.Context, cred *domain.Credential, q domain.HistoryQuery) ([]domain.TransferReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyN++
	f.queries = append(f.queries, q)
	if cred == nil {
		return nil, domain.NewError(domain.KindAuthRequired, "transaction history requires an authenticated session")
	}
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.history, nil
}

func (f *fakeTransfers) transferCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeTransfers) historyCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.historyN
}
