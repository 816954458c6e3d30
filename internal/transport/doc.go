// Package transport is the HTTP layer between banktransfer and the remote
// banking API.
//
// A Client sends JSON requests relative to a base URL and turns every outcome
// into either a decoded response or a classified *domain.Error:
//
//   - connection failures, per-attempt timeouts, 5xx and 429 responses are
//     transient and retried with capped exponential backoff (no jitter);
//   - other 4xx responses are returned after a single attempt as ClientError,
//     carrying the status and the server's error payload as an *APIError;
//   - transient faults that outlive MaxRetries become Unavailable;
//   - a body that cannot be decoded into the caller's target is a
//     ProtocolError.
//
// # Implementation
//
// Retries are driven by cenkalti/backoff; an optional sony/gobreaker circuit
// breaker guards each attempt and an optional x/time/rate limiter paces them.
// All attempts of one logical request share an X-Request-ID. The client keeps
// no state between requests other than the pooled *http.Client.
package transport
