package domain

import (
	interfaces "banktransfer/internal/domain/interfaces"
	types "banktransfer/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	AccountID       = types.AccountID
	TransactionID   = types.TransactionID
	TransferRequest = types.TransferRequest
	TransferStatus  = types.TransferStatus
	TransferReceipt = types.TransferReceipt
	Credential      = types.Credential
	AccountSnapshot = types.AccountSnapshot
	AccountSummary  = types.AccountSummary
	BalancePair     = types.BalancePair
	ErrorKind       = types.ErrorKind
	Error           = types.Error
	Step            = types.Step
	Options         = types.Options
	HistoryQuery    = types.HistoryQuery
	Failure         = types.Failure
	Warning         = types.Warning
	Outcome         = types.Outcome
)

// Interface aliases.
type (
	TokenManager    = interfaces.TokenManager
	TransferService = interfaces.TransferService
	AccountGateway  = interfaces.AccountGateway
	TransferGateway = interfaces.TransferGateway
)

const (
	TransferSucceeded = types.TransferSucceeded
	TransferFailed    = types.TransferFailed

	KindAuthFailed        = types.KindAuthFailed
	KindInvalidAccount    = types.KindInvalidAccount
	KindAccountNotFound   = types.KindAccountNotFound
	KindInsufficientFunds = types.KindInsufficientFunds
	KindAuthRequired      = types.KindAuthRequired
	KindUnavailable       = types.KindUnavailable
	KindProtocolError     = types.KindProtocolError
	KindClientError       = types.KindClientError

	StepAuthenticate = types.StepAuthenticate
	StepValidate     = types.StepValidate
	StepCheckBalance = types.StepCheckBalance
	StepTransfer     = types.StepTransfer
	StepHistory      = types.StepHistory

	DefaultHistoryLimit = types.DefaultHistoryLimit
)

var (
	ErrAuthFailed        = types.ErrAuthFailed
	ErrInvalidAccount    = types.ErrInvalidAccount
	ErrAccountNotFound   = types.ErrAccountNotFound
	ErrInsufficientFunds = types.ErrInsufficientFunds
	ErrAuthRequired      = types.ErrAuthRequired
	ErrUnavailable       = types.ErrUnavailable
	ErrProtocol          = types.ErrProtocol
	ErrClient            = types.ErrClient

	NewTransferRequest  = types.NewTransferRequest
	ParseAmount         = types.ParseAmount
	ParseTransferStatus = types.ParseTransferStatus
	NewError            = types.NewError
	WrapError           = types.WrapError
	KindOf              = types.KindOf
	StatusOf            = types.StatusOf
)
