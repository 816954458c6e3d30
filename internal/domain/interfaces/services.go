package interfaces

import (
	"context"
	"time"

	domaintypes "banktransfer/internal/domain/types"
)

// TokenManager owns the bearer credential used for authenticated calls.
type TokenManager interface {
	// Authenticate always fetches a fresh credential and replaces the held one.
	Authenticate(ctx context.Context) (domaintypes.Credential, error)
	// Current returns the held credential, or nil. It never calls the network.
	Current() *domaintypes.Credential
	// IsExpired reports whether cred is unusable at now.
	IsExpired(cred domaintypes.Credential, now time.Time) bool
}

// TransferService runs the transfer workflow.
type TransferService interface {
	Execute(
		ctx context.Context,
		req domaintypes.TransferRequest,
		opts domaintypes.Options,
	) domaintypes.Outcome
}
