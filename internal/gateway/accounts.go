package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"banktransfer/internal/domain"
	"banktransfer/internal/logging"
	"banktransfer/internal/transport"
)

const (
	routeAccounts        = "/accounts"
	routeValidateAccount = "/accounts/validate/{id}"
	routeAccountBalance  = "/accounts/balance/{id}"
	codeAccountNotFound  = "ACCOUNT_NOT_FOUND"
)

// Accounts is the account gateway.
type Accounts struct {
	api Sender
	log *zap.Logger
}

var _ domain.AccountGateway = (*Accounts)(nil)

// NewAccounts returns an account gateway sending through api.
func NewAccounts(api Sender, log *zap.Logger) *Accounts {
	return &Accounts{api: api, log: logging.OrNop(log).Named("accounts")}
}

type validateResponse struct {
	IsValid   *bool  `json:"isValid"`
	Valid     *bool  `json:"valid"`
	AccountID string `json:"accountId"`
	Status    string `json:"status"`
}

// Validate reports whether id is known to the service. Any 4xx answer means
// the account is not usable and yields false.
func (a *Accounts) Validate(ctx context.Context, id domain.AccountID) (bool, error) {
	var out validateResponse
	_, err := a.api.Send(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/accounts/validate/" + url.PathEscape(id.String()),
		Route:  routeValidateAccount,
	}, &out)
	if err != nil {
		if domain.KindOf(err) == domain.KindClientError {
			a.log.Debug("account rejected", zap.String("account", id.String()), zap.Error(err))
			return false, nil
		}
		return false, err
	}

	switch {
	case out.IsValid != nil:
		return *out.IsValid, nil
	case out.Valid != nil:
		return *out.Valid, nil
	}
	return false, domain.NewError(domain.KindProtocolError, "validate %s: response has no isValid field", id)
}

type balanceResponse struct {
	AccountID string              `json:"accountId"`
	Balance   decimal.NullDecimal `json:"balance"`
	Currency  string              `json:"currency"`
	Status    string              `json:"status"`
}

// Balance returns the current balance of id.
func (a *Accounts) Balance(ctx context.Context, id domain.AccountID) (domain.AccountSnapshot, error) {
	var out balanceResponse
	_, err := a.api.Send(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/accounts/balance/" + url.PathEscape(id.String()),
		Route:  routeAccountBalance,
	}, &out)
	if err != nil {
		if domain.KindOf(err) == domain.KindClientError &&
			(domain.StatusOf(err) == http.StatusNotFound || serverCode(err) == codeAccountNotFound) {
			return domain.AccountSnapshot{}, &domain.Error{
				Kind:    domain.KindAccountNotFound,
				Status:  domain.StatusOf(err),
				Message: fmt.Sprintf("account %s not found", id),
				Err:     err,
			}
		}
		return domain.AccountSnapshot{}, err
	}
	if !out.Balance.Valid {
		return domain.AccountSnapshot{}, domain.NewError(domain.KindProtocolError, "balance %s: response has no balance field", id)
	}

	snap := domain.AccountSnapshot{
		AccountID: domain.AccountID(out.AccountID),
		Balance:   out.Balance.Decimal,
		Currency:  out.Currency,
		Status:    out.Status,
	}
	if snap.AccountID == "" {
		snap.AccountID = id
	}
	return snap, nil
}

type accountEntry struct {
	AccountID string              `json:"accountId"`
	ID        string              `json:"id"`
	Status    string              `json:"status"`
	Balance   decimal.NullDecimal `json:"balance"`
}

// List returns the accounts known to the service. The service answers either
// {"accounts": [...]} or a bare list; entries are objects or plain ids.
func (a *Accounts) List(ctx context.Context) ([]domain.AccountSummary, error) {
	resp, err := a.api.Send(ctx, transport.Request{Method: http.MethodGet, Path: routeAccounts}, nil)
	if err != nil {
		return nil, err
	}

	raw, err := unwrapList(resp.Body, "accounts")
	if err != nil {
		return nil, domain.WrapError(domain.KindProtocolError, err, "list accounts")
	}

	out := make([]domain.AccountSummary, 0, len(raw))
	for i, item := range raw {
		s, err := parseAccountEntry(item)
		if err != nil {
			return nil, domain.WrapError(domain.KindProtocolError, err, "list accounts: entry %d", i)
		}
		out = append(out, s)
	}
	return out, nil
}

func parseAccountEntry(raw json.RawMessage) (domain.AccountSummary, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return domain.AccountSummary{}, err
		}
		return domain.AccountSummary{AccountID: domain.AccountID(id)}, nil
	}

	var e accountEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return domain.AccountSummary{}, err
	}
	id := transport.FirstNonEmpty(e.AccountID, e.ID)
	if id == "" {
		return domain.AccountSummary{}, fmt.Errorf("missing account id")
	}
	s := domain.AccountSummary{AccountID: domain.AccountID(id), Status: e.Status}
	if e.Balance.Valid {
		b := e.Balance.Decimal
		s.Balance = &b
	}
	return s, nil
}

// unwrapList accepts either a JSON array or an object holding the array
// under key.
func unwrapList(body []byte, key string) ([]json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("empty response body")
	}
	var list []json.RawMessage
	if body[0] == '[' {
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		return list, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	inner, ok := obj[key]
	if !ok {
		return nil, fmt.Errorf("response has no %q field", key)
	}
	if string(bytes.TrimSpace(inner)) == "null" {
		return nil, nil
	}
	if err := json.Unmarshal(inner, &list); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return list, nil
}

