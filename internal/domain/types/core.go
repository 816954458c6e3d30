package types

// AccountID identifies an account on the remote banking service.
type AccountID string

// String returns the string form of the account identifier.
func (id AccountID) String() string { return string(id) }

// TransactionID is the opaque, server-assigned identifier of a transfer.
type TransactionID string

// String returns the string form of the transaction identifier.
func (id TransactionID) String() string { return string(id) }
