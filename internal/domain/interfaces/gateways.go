package interfaces

import (
	"context"

	domaintypes "banktransfer/internal/domain/types"
)

// AccountGateway looks up accounts on the remote service.
type AccountGateway interface {
	// Validate reports whether id is a known account. Unknown accounts are
	// false, not an error.
	Validate(ctx context.Context, id domaintypes.AccountID) (bool, error)
	Balance(ctx context.Context, id domaintypes.AccountID) (domaintypes.AccountSnapshot, error)
	List(ctx context.Context) ([]domaintypes.AccountSummary, error)
}

// TransferGateway submits transfers and reads transaction history.
type TransferGateway interface {
	// Transfer submits req. cred may be nil for an unauthenticated transfer.
	Transfer(
		ctx context.Context,
		req domaintypes.TransferRequest,
		cred *domaintypes.Credential,
	) (domaintypes.TransferReceipt, error)
	// History returns receipts most-recent-first. cred is required.
	History(
		ctx context.Context,
		cred *domaintypes.Credential,
		query domaintypes.HistoryQuery,
	) ([]domaintypes.TransferReceipt, error)
}
