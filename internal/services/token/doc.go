// Package token holds the bearer credential used for authenticated calls.
//
// Authenticate always asks the service for a fresh token and swaps it in
// atomically, so concurrent readers of Current see either the old or the new
// credential. Whether to refresh is the caller's decision; this package only
// reports whether a credential has expired.
package token
