package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"banktransfer/internal/domain"
	"banktransfer/internal/logging"
	"banktransfer/internal/transport"
)

const (
	routeTransfer = "/transfer"
	routeHistory  = "/transactions/history"

	codeInsufficientFunds = "INSUFFICIENT_FUNDS"
	codeInvalidAccount    = "INVALID_ACCOUNT"
)

// Transfers is the transfer gateway.
type Transfers struct {
	api Sender
	log *zap.Logger
}

var _ domain.TransferGateway = (*Transfers)(nil)

// NewTransfers returns a transfer gateway sending through api.
func NewTransfers(api Sender, log *zap.Logger) *Transfers {
	return &Transfers{api: api, log: logging.OrNop(log).Named("transfers")}
}

type transferBody struct {
	FromAccount string      `json:"fromAccount"`
	ToAccount   string      `json:"toAccount"`
	Amount      json.Number `json:"amount"`
}

// receiptPayload is the receipt shape shared by /transfer and the history
// entries.
type receiptPayload struct {
	TransactionID   string              `json:"transactionId"`
	ID              string              `json:"id"`
	Status          string              `json:"status"`
	Type            string              `json:"type"`
	FromAccount     string              `json:"fromAccount"`
	ToAccount       string              `json:"toAccount"`
	Amount          decimal.NullDecimal `json:"amount"`
	Timestamp       string              `json:"timestamp"`
	Message         string              `json:"message"`
	PermissionLevel string              `json:"permissionLevel"`
	NewFromBalance  decimal.NullDecimal `json:"newFromAccountBalance"`
	NewToBalance    decimal.NullDecimal `json:"newToAccountBalance"`
}

func (p receiptPayload) receipt() domain.TransferReceipt {
	r := domain.TransferReceipt{
		TransactionID:   domain.TransactionID(transport.FirstNonEmpty(p.TransactionID, p.ID)),
		Status:          domain.ParseTransferStatus(p.Status),
		From:            domain.AccountID(p.FromAccount),
		To:              domain.AccountID(p.ToAccount),
		Amount:          p.Amount.Decimal,
		Timestamp:       parseTimestamp(p.Timestamp),
		Type:            p.Type,
		Message:         p.Message,
		PermissionLevel: p.PermissionLevel,
	}
	if p.NewFromBalance.Valid {
		b := p.NewFromBalance.Decimal
		r.NewFromBalance = &b
	}
	if p.NewToBalance.Valid {
		b := p.NewToBalance.Decimal
		r.NewToBalance = &b
	}
	return r
}

// Transfer submits req. The bearer header is attached only when cred is
// non-nil.
func (t *Transfers) Transfer(ctx context.Context, req domain.TransferRequest, cred *domain.Credential) (domain.TransferReceipt, error) {
	var out receiptPayload
	_, err := t.api.Send(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   routeTransfer,
		Body: transferBody{
			FromAccount: req.From().String(),
			ToAccount:   req.To().String(),
			Amount:      json.Number(req.Amount().StringFixed(2)),
		},
		Header: bearer(cred),
	}, &out)
	if err != nil {
		return domain.TransferReceipt{}, classifyTransferError(req, err)
	}

	if strings.TrimSpace(out.TransactionID) == "" {
		return domain.TransferReceipt{}, domain.NewError(domain.KindProtocolError, "transfer %s: response has no transactionId", req)
	}
	receipt := out.receipt()
	receipt.TransactionID = domain.TransactionID(out.TransactionID)
	if receipt.Status != domain.TransferSucceeded {
		msg := transport.FirstNonEmpty(out.Message, fmt.Sprintf("transfer %s reported status %q", receipt.TransactionID, out.Status))
		return domain.TransferReceipt{}, &domain.Error{Kind: domain.KindClientError, Status: http.StatusOK, Message: msg}
	}
	if receipt.From == "" {
		receipt.From = req.From()
	}
	if receipt.To == "" {
		receipt.To = req.To()
	}
	if !out.Amount.Valid {
		receipt.Amount = req.Amount()
	}

	t.log.Debug("transfer accepted",
		zap.String("transaction_id", receipt.TransactionID.String()),
		zap.Bool("authenticated", cred != nil),
	)
	return receipt, nil
}

// classifyTransferError re-maps server rejections of a transfer into the
// business kinds callers act on.
func classifyTransferError(req domain.TransferRequest, err error) error {
	if domain.KindOf(err) != domain.KindClientError {
		return err
	}
	code := serverCode(err)
	msg := serverMessage(err)
	status := domain.StatusOf(err)
	switch {
	case code == codeInsufficientFunds || strings.Contains(strings.ToLower(msg), "insufficient"):
		return &domain.Error{
			Kind:    domain.KindInsufficientFunds,
			Status:  status,
			Message: fmt.Sprintf("insufficient funds in %s for %s", req.From(), req.Amount().StringFixed(2)),
			Err:     err,
		}
	case code == codeInvalidAccount || code == codeAccountNotFound || status == http.StatusNotFound:
		return &domain.Error{
			Kind:    domain.KindInvalidAccount,
			Status:  status,
			Message: "transfer rejected: " + msg,
			Err:     err,
		}
	}
	return err
}

// History returns receipts newest first. It fails with AuthRequired, without
// calling the service, when cred is nil.
func (t *Transfers) History(ctx context.Context, cred *domain.Credential, query domain.HistoryQuery) ([]domain.TransferReceipt, error) {
	if cred == nil {
		return nil, domain.NewError(domain.KindAuthRequired, "transaction history requires an authenticated session")
	}

	q := url.Values{}
	if query.Limit > 0 {
		q.Set("limit", strconv.Itoa(query.Limit))
	}
	if query.Account != "" {
		q.Set("accountNumber", query.Account.String())
	}

	resp, err := t.api.Send(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   routeHistory,
		Query:  q,
		Header: bearer(cred),
	}, nil)
	if err != nil {
		if s := domain.StatusOf(err); domain.KindOf(err) == domain.KindClientError &&
			(s == http.StatusUnauthorized || s == http.StatusForbidden) {
			return nil, &domain.Error{Kind: domain.KindAuthRequired, Status: s, Message: "credential rejected", Err: err}
		}
		return nil, err
	}

	raw, err := unwrapList(resp.Body, "transactions")
	if err != nil {
		return nil, domain.WrapError(domain.KindProtocolError, err, "transaction history")
	}
	out := make([]domain.TransferReceipt, 0, len(raw))
	for i, item := range raw {
		var p receiptPayload
		if err := json.Unmarshal(item, &p); err != nil {
			return nil, domain.WrapError(domain.KindProtocolError, err, "transaction history: entry %d", i)
		}
		out = append(out, p.receipt())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })

	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}
