package gateway_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"banktransfer/internal/domain"
	"banktransfer/internal/gateway"
	"banktransfer/internal/transport"
)

type route struct {
	status int
	body   string
}

// stubAPI serves canned responses keyed by "METHOD path" and records the last
// request seen on each key.
type stubAPI struct {
	routes map[string]route
	hits   atomic.Int32

	mu     sync.Mutex
	last   map[string]*http.Request
	bodies map[string]string
}

func (s *stubAPI) request(key string) (*http.Request, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last[key], s.bodies[key]
}

func newStub(t *testing.T, routes map[string]route) (*stubAPI, *transport.Client) {
	t.Helper()
	s := &stubAPI{routes: routes, last: map[string]*http.Request{}, bodies: map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		key := r.Method + " " + r.URL.EscapedPath()
		b, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.last[key] = r.Clone(context.Background())
		s.bodies[key] = string(b)
		s.mu.Unlock()
		rt, ok := s.routes[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"NOT_FOUND","message":"no route"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(rt.status)
		_, _ = w.Write([]byte(rt.body))
	}))
	t.Cleanup(srv.Close)

	c, err := transport.New(transport.Config{
		BaseURL:     srv.URL,
		Timeout:     time.Second,
		MaxRetries:  0,
		BackoffBase: time.Millisecond,
	})
	require.NoError(t, err)
	return s, c
}

func mustRequest(t *testing.T, from, to, amount string) domain.TransferRequest {
	t.Helper()
	amt, err := domain.ParseAmount(amount)
	require.NoError(t, err)
	req, err := domain.NewTransferRequest(from, to, amt)
	require.NoError(t, err)
	return req
}

func TestAccounts_Validate(t *testing.T) {
	_, api := newStub(t, map[string]route{
		"GET /accounts/validate/ACC1000": {200, `{"isValid":true,"accountId":"ACC1000","status":"ACTIVE"}`},
		"GET /accounts/validate/ACC2000": {200, `{"isValid":false,"accountId":"ACC2000"}`},
		"GET /accounts/validate/BROKEN":  {500, `{"error":"BOOM"}`},
		"GET /accounts/validate/ODD":     {200, `{"accountId":"ODD"}`},
	})
	accounts := gateway.NewAccounts(api, nil)
	ctx := context.Background()

	ok, err := accounts.Validate(ctx, "ACC1000")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = accounts.Validate(ctx, "ACC2000")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = accounts.Validate(ctx, "ACC9999")
	require.NoError(t, err, "unknown accounts are a business outcome")
	assert.False(t, ok)

	_, err = accounts.Validate(ctx, "BROKEN")
	assert.Equal(t, domain.KindUnavailable, domain.KindOf(err))

	_, err = accounts.Validate(ctx, "ODD")
	assert.Equal(t, domain.KindProtocolError, domain.KindOf(err))
}

func TestAccounts_ValidateEscapesID(t *testing.T) {
	stub, api := newStub(t, map[string]route{
		"GET /accounts/validate/a%2Fb": {200, `{"isValid":true}`},
	})
	ok, err := gateway.NewAccounts(api, nil).Validate(context.Background(), "a/b")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(1), stub.hits.Load())
}

func TestAccounts_Balance(t *testing.T) {
	_, api := newStub(t, map[string]route{
		"GET /accounts/balance/ACC1000": {200, `{"accountId":"ACC1000","balance":1000.5,"currency":"USD","status":"ACTIVE"}`},
		"GET /accounts/balance/GONE":    {400, `{"error":"ACCOUNT_NOT_FOUND","message":"no such account"}`},
		"GET /accounts/balance/EMPTY":   {200, `{"accountId":"EMPTY"}`},
		"GET /accounts/balance/DOWN":    {503, ``},
	})
	accounts := gateway.NewAccounts(api, nil)
	ctx := context.Background()

	snap, err := accounts.Balance(ctx, "ACC1000")
	require.NoError(t, err)
	assert.Equal(t, domain.AccountID("ACC1000"), snap.AccountID)
	assert.True(t, decimal.RequireFromString("1000.50").Equal(snap.Balance))
	assert.Equal(t, "USD", snap.Currency)

	_, err = accounts.Balance(ctx, "ACC9999")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	assert.Equal(t, http.StatusNotFound, domain.StatusOf(err))

	_, err = accounts.Balance(ctx, "GONE")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = accounts.Balance(ctx, "EMPTY")
	assert.Equal(t, domain.KindProtocolError, domain.KindOf(err))

	_, err = accounts.Balance(ctx, "DOWN")
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

func TestAccounts_List(t *testing.T) {
	cases := []struct {
		name string
		body string
		want []domain.AccountID
	}{
		{"wrapped objects", `{"accounts":[{"accountId":"ACC1000","balance":1,"status":"ACTIVE"},{"accountId":"ACC1001"}]}`, []domain.AccountID{"ACC1000", "ACC1001"}},
		{"bare objects", `[{"id":"ACC1"}]`, []domain.AccountID{"ACC1"}},
		{"bare ids", `["ACC1","ACC2","ACC3"]`, []domain.AccountID{"ACC1", "ACC2", "ACC3"}},
		{"null list", `{"accounts":null}`, []domain.AccountID{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, api := newStub(t, map[string]route{"GET /accounts": {200, tc.body}})
			got, err := gateway.NewAccounts(api, nil).List(context.Background())
			require.NoError(t, err)
			ids := make([]domain.AccountID, 0, len(got))
			for _, s := range got {
				ids = append(ids, s.AccountID)
			}
			assert.Equal(t, tc.want, ids)
		})
	}

	_, api := newStub(t, map[string]route{"GET /accounts": {200, `{"items":[]}`}})
	_, err := gateway.NewAccounts(api, nil).List(context.Background())
	assert.Equal(t, domain.KindProtocolError, domain.KindOf(err))
}

func TestTransfers_Transfer(t *testing.T) {
	stub, api := newStub(t, map[string]route{
		"POST /transfer": {200, `{
			"transactionId": "TXN-abc/123",
			"status": "SUCCESS",
			"fromAccount": "ACC1000",
			"toAccount": "ACC1001",
			"amount": 100.00,
			"timestamp": "2025-01-02T03:04:05Z",
			"message": "Transfer completed",
			"permissionLevel": "ENHANCED",
			"newFromAccountBalance": 900.00,
			"newToAccountBalance": 1100.00
		}`},
	})
	transfers := gateway.NewTransfers(api, nil)
	req := mustRequest(t, "ACC1000", "ACC1001", "100")

	receipt, err := transfers.Transfer(context.Background(), req, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.TransactionID("TXN-abc/123"), receipt.TransactionID)
	assert.Equal(t, domain.TransferSucceeded, receipt.Status)
	assert.Equal(t, req.From(), receipt.From)
	assert.Equal(t, req.To(), receipt.To)
	assert.True(t, req.Amount().Equal(receipt.Amount))
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), receipt.Timestamp.UTC())
	assert.Equal(t, "ENHANCED", receipt.PermissionLevel)
	require.NotNil(t, receipt.NewFromBalance)
	assert.True(t, decimal.NewFromInt(900).Equal(*receipt.NewFromBalance))

	sent, body := stub.request("POST /transfer")
	require.NotNil(t, sent)
	assert.Empty(t, sent.Header.Get("Authorization"))
	assert.JSONEq(t, `{"fromAccount":"ACC1000","toAccount":"ACC1001","amount":100.00}`, body)
	assert.Contains(t, body, `"amount":100.00`)
}

func TestTransfers_TransferWithCredential(t *testing.T) {
	stub, api := newStub(t, map[string]route{
		"POST /transfer": {200, `{"transactionId":"T1","status":"SUCCESS"}`},
	})
	cred := &domain.Credential{Token: "tok", ExpiresAt: time.Now().Add(time.Hour)}
	req := mustRequest(t, "ACC1000", "ACC1001", "12.5")

	receipt, err := gateway.NewTransfers(api, nil).Transfer(context.Background(), req, cred)
	require.NoError(t, err)
	sent, _ := stub.request("POST /transfer")
	require.NotNil(t, sent)
	assert.Equal(t, "Bearer tok", sent.Header.Get("Authorization"))
	assert.Equal(t, req.From(), receipt.From, "missing echo fields fall back to the request")
	assert.True(t, decimal.RequireFromString("12.50").Equal(receipt.Amount))
}

func TestTransfers_TransferErrors(t *testing.T) {
	cases := []struct {
		name string
		rt   route
		kind domain.ErrorKind
	}{
		{"insufficient code", route{400, `{"error":"INSUFFICIENT_FUNDS","message":"Insufficient funds"}`}, domain.KindInsufficientFunds},
		{"insufficient text", route{422, `{"message":"insufficient balance"}`}, domain.KindInsufficientFunds},
		{"invalid account", route{400, `{"error":"INVALID_ACCOUNT","message":"bad account"}`}, domain.KindInvalidAccount},
		{"not found", route{404, `{"error":"ACCOUNT_NOT_FOUND"}`}, domain.KindInvalidAccount},
		{"other 4xx", route{400, `{"error":"INVALID_AMOUNT","message":"too big"}`}, domain.KindClientError},
		{"server fault", route{500, `oops`}, domain.KindUnavailable},
		{"no transaction id", route{200, `{"status":"SUCCESS"}`}, domain.KindProtocolError},
		{"not json", route{200, `<html/>`}, domain.KindProtocolError},
		{"failed status", route{200, `{"transactionId":"T9","status":"FAILED","message":"declined"}`}, domain.KindClientError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, api := newStub(t, map[string]route{"POST /transfer": tc.rt})
			_, err := gateway.NewTransfers(api, nil).Transfer(context.Background(), mustRequest(t, "ACC1000", "ACC1001", "5"), nil)
			require.Error(t, err)
			assert.Equal(t, tc.kind, domain.KindOf(err), err.Error())
		})
	}
}

func TestTransfers_HistoryRequiresCredential(t *testing.T) {
	stub, api := newStub(t, nil)
	_, err := gateway.NewTransfers(api, nil).History(context.Background(), nil, domain.HistoryQuery{Limit: 5})
	assert.ErrorIs(t, err, domain.ErrAuthRequired)
	assert.Equal(t, int32(0), stub.hits.Load())
}

func TestTransfers_HistoryNewestFirst(t *testing.T) {
	stub, api := newStub(t, map[string]route{
		"GET /transactions/history": {200, `{"transactions":[
			{"transactionId":"T1","status":"SUCCESS","amount":1,"timestamp":"2025-01-01T10:00:00Z"},
			{"transactionId":"T3","status":"SUCCESS","amount":3,"timestamp":"2025-01-03T10:00:00Z"},
			{"transactionId":"T2","status":"FAILED","amount":2,"timestamp":"2025-01-02 10:00:00"}
		],"totalReturned":3}`},
	})
	cred := &domain.Credential{Token: "tok"}

	got, err := gateway.NewTransfers(api, nil).History(context.Background(), cred, domain.HistoryQuery{Limit: 2, Account: "ACC1000"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.TransactionID("T3"), got[0].TransactionID)
	assert.Equal(t, domain.TransactionID("T2"), got[1].TransactionID)
	assert.Equal(t, domain.TransferFailed, got[1].Status)

	sent, _ := stub.request("GET /transactions/history")
	require.NotNil(t, sent)
	assert.Equal(t, "2", sent.URL.Query().Get("limit"))
	assert.Equal(t, "ACC1000", sent.URL.Query().Get("accountNumber"))
	assert.Equal(t, "Bearer tok", sent.Header.Get("Authorization"))
}

func TestTransfers_HistoryRejectedCredential(t *testing.T) {
	_, api := newStub(t, map[string]route{
		"GET /transactions/history": {401, `{"error":"UNAUTHORIZED","message":"token expired"}`},
	})
	_, err := gateway.NewTransfers(api, nil).History(context.Background(), &domain.Credential{Token: "old"}, domain.HistoryQuery{})
	assert.ErrorIs(t, err, domain.ErrAuthRequired)
	assert.Equal(t, http.StatusUnauthorized, domain.StatusOf(err))
}
