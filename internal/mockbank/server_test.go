package mockbank_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"banktransfer/internal/mockbank"
)

type client struct {
	t    *testing.T
	base string
}

func start(t *testing.T, cfg mockbank.Config) (*mockbank.Server, *client) {
	t.Helper()
	srv := mockbank.New(cfg)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, &client{t: t, base: ts.URL}
}

func (c *client) do(method, path, token string, body any) (int, map[string]any) {
	c.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, rd)
	require.NoError(c.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	if len(bytes.TrimSpace(raw)) > 0 && raw[0] == '{' {
		require.NoError(c.t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func (c *client) token() string {
	c.t.Helper()
	status, out := c.do(http.MethodPost, "/authToken?claim=transfer", "", map[string]string{"username": "alice", "password": "any"})
	require.Equal(c.t, http.StatusOK, status)
	tok, _ := out["token"].(string)
	require.NotEmpty(c.t, tok)
	return tok
}

func transfer(from, to string, amount any) map[string]any {
	return map[string]any{"fromAccount": from, "toAccount": to, "amount": amount}
}

func TestAuthToken_IssueAndValidate(t *testing.T) {
	_, c := start(t, mockbank.Config{})
	tok := c.token()

	status, out := c.do(http.MethodPost, "/auth/validate", tok, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, out["valid"])
	assert.Equal(t, "alice", out["username"])

	status, out = c.do(http.MethodPost, "/auth/validate", "forged.token.value", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, false, out["valid"])

	status, _ = c.do(http.MethodPost, "/authToken?claim=admin", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = c.do(http.MethodPost, "/authToken", "", map[string]string{"username": "alice"})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAuthToken_Credentials(t *testing.T) {
	_, c := start(t, mockbank.Config{})

	cases := []struct {
		name string
		body any
		want int
	}{
		{"no body uses default user", nil, http.StatusOK},
		{"username and password", map[string]string{"username": "bob", "password": "pw"}, http.StatusOK},
		{"password missing", map[string]string{"username": "alice"}, http.StatusUnauthorized},
		{"username missing", map[string]string{"password": "any"}, http.StatusUnauthorized},
		{"empty object", map[string]string{}, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, out := c.do(http.MethodPost, "/authToken?claim=transfer", "", tc.body)
			assert.Equal(t, tc.want, status)
			if tc.want == http.StatusOK {
				assert.NotEmpty(t, out["token"])
			} else {
				assert.Nil(t, out["token"])
			}
		})
	}
}

func TestAuthToken_Expires(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var skew atomic.Int64
	_, c := start(t, mockbank.Config{
		TokenTTL: time.Minute,
		Now:      func() time.Time { return now.Add(time.Duration(skew.Load())) },
	})
	tok := c.token()

	skew.Store(int64(2 * time.Minute))
	status, _ := c.do(http.MethodPost, "/auth/validate", tok, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAccounts(t *testing.T) {
	_, c := start(t, mockbank.Config{Accounts: 3})

	status, out := c.do(http.MethodGet, "/accounts", "", nil)
	require.Equal(t, http.StatusOK, status)
	accounts, ok := out["accounts"].([]any)
	require.True(t, ok)
	assert.Len(t, accounts, 3)

	status, out = c.do(http.MethodGet, "/accounts/validate/ACC1002", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, out["isValid"])

	status, out = c.do(http.MethodGet, "/accounts/validate/ACC1003", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, false, out["isValid"])

	status, out = c.do(http.MethodGet, "/accounts/balance/ACC1000", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "1000", out["balance"])
	assert.Equal(t, "USD", out["currency"])

	status, out = c.do(http.MethodGet, "/accounts/balance/NOPE", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, mockbank.CodeAccountNotFound, out["error"])
}

func TestTransfer_MovesFunds(t *testing.T) {
	srv, c := start(t, mockbank.Config{})

	status, out := c.do(http.MethodPost, "/transfer", "", transfer("ACC1000", "ACC1001", 100.25))
	require.Equal(t, http.StatusOK, status, out)
	assert.NotEmpty(t, out["transactionId"])
	assert.Equal(t, "SUCCESS", out["status"])
	assert.Equal(t, "BASIC", out["permissionLevel"])

	from, _ := srv.Bank().Account("ACC1000")
	to, _ := srv.Bank().Account("ACC1001")
	assert.True(t, decimal.RequireFromString("899.75").Equal(from.Balance))
	assert.True(t, decimal.RequireFromString("1100.25").Equal(to.Balance))

	status, out = c.do(http.MethodPost, "/transfer", c.token(), transfer("ACC1001", "ACC1000", "0.25"))
	require.Equal(t, http.StatusOK, status, out)
	assert.Equal(t, "ENHANCED", out["permissionLevel"])
}

func TestTransfer_Rejections(t *testing.T) {
	_, c := start(t, mockbank.Config{})
	cases := []struct {
		name   string
		body   map[string]any
		status int
		code   string
	}{
		{"insufficient", transfer("ACC1000", "ACC1001", 5000), http.StatusBadRequest, mockbank.CodeInsufficientFunds},
		{"unknown source", transfer("ACC9999", "ACC1001", 1), http.StatusNotFound, mockbank.CodeAccountNotFound},
		{"same account", transfer("ACC1000", "ACC1000", 1), http.StatusBadRequest, mockbank.CodeInvalidAccount},
		{"negative", transfer("ACC1000", "ACC1001", -1), http.StatusBadRequest, mockbank.CodeInvalidAmount},
		{"precision", transfer("ACC1000", "ACC1001", 1.005), http.StatusBadRequest, mockbank.CodeInvalidAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, out := c.do(http.MethodPost, "/transfer", "", tc.body)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, out["error"])
		})
	}

	status, _ := c.do(http.MethodPost, "/transfer", "bad-token", transfer("ACC1000", "ACC1001", 1))
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestHistory(t *testing.T) {
	_, c := start(t, mockbank.Config{})
	for _, pair := range [][2]string{{"ACC1000", "ACC1001"}, {"ACC1002", "ACC1003"}, {"ACC1001", "ACC1000"}} {
		status, _ := c.do(http.MethodPost, "/transfer", "", transfer(pair[0], pair[1], 1))
		require.Equal(t, http.StatusOK, status)
	}

	status, _ := c.do(http.MethodGet, "/transactions/history", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	tok := c.token()
	status, out := c.do(http.MethodGet, "/transactions/history?limit=10", tok, nil)
	require.Equal(t, http.StatusOK, status)
	txns := out["transactions"].([]any)
	require.Len(t, txns, 3)
	assert.Equal(t, "ACC1001", txns[0].(map[string]any)["fromAccount"], "newest first")
	assert.Equal(t, float64(3), out["totalReturned"])

	_, out = c.do(http.MethodGet, "/transactions/history?limit=1&accountNumber=ACC1002", tok, nil)
	txns = out["transactions"].([]any)
	require.Len(t, txns, 1)
	assert.Equal(t, "ACC1002", txns[0].(map[string]any)["fromAccount"])

	status, _ = c.do(http.MethodGet, "/transactions/history?limit=zero", tok, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestFaultInjection(t *testing.T) {
	srv, c := start(t, mockbank.Config{})

	srv.FailNext(2, http.StatusServiceUnavailable)
	status, out := c.do(http.MethodGet, "/accounts", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, mockbank.CodeInjectedFault, out["error"])
	status, _ = c.do(http.MethodGet, "/accounts/balance/ACC1000", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	status, _ = c.do(http.MethodGet, "/accounts", "", nil)
	assert.Equal(t, http.StatusOK, status)

	assert.Equal(t, 2, srv.Hits("/accounts"))
	assert.Equal(t, 1, srv.Hits("/accounts/balance/{id}"))

	srv.DropNext(1)
	fresh := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	_, err := fresh.Get(c.base + "/accounts")
	assert.Error(t, err)
	assert.Equal(t, 3, srv.Hits("/accounts"))

	srv.FailNext(5, http.StatusInternalServerError)
	srv.ResetFaults()
	status, _ = c.do(http.MethodGet, "/accounts", "", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestMetricsEndpoint(t *testing.T) {
	_, c := start(t, mockbank.Config{})
	c.do(http.MethodGet, "/accounts", "", nil)

	resp, err := http.Get(c.base + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `mockbank_requests_total{code="200",method="GET",route="/accounts"} 1`)
}
