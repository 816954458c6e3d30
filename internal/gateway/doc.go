// Package gateway implements the account and transfer gateways on top of the
// retrying transport.
//
// Gateways translate the banking API's JSON into domain values and re-map
// server error payloads into domain error kinds. They never retry; transient
// faults have already been retried by the transport when they surface here.
//
//   - Accounts: account validation, balance lookup and the account listing.
//   - Transfers: transfer submission and transaction history.
package gateway
