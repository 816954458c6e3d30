// Package mockbank is an in-memory stand-in for the remote banking API, used
// for local runs and end-to-end tests.
//
// It serves the token, account, transfer and history endpoints with the same
// JSON shapes as the real service, issues HS256 JWTs, and can inject faults
// (error statuses or dropped connections) into the next requests.
package mockbank
