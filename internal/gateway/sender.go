package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"banktransfer/internal/domain"
	"banktransfer/internal/transport"
)

// Sender performs one logical API call. *transport.Client satisfies it.
type Sender interface {
	Send(ctx context.Context, req transport.Request, out any) (*transport.Response, error)
}

var _ Sender = (*transport.Client)(nil)

// apiError returns the server error payload carried by err, if any.
func apiError(err error) (*transport.APIError, bool) {
	var e *transport.APIError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// serverCode returns the upper-cased server error code carried by err.
func serverCode(err error) string {
	if e, ok := apiError(err); ok {
		return strings.ToUpper(strings.TrimSpace(e.Code))
	}
	return ""
}

// serverMessage returns the server-provided message, falling back to err.
func serverMessage(err error) string {
	if e, ok := apiError(err); ok {
		if msg := e.Error(); msg != "" {
			return msg
		}
	}
	return err.Error()
}

func bearer(cred *domain.Credential) http.Header {
	if cred == nil {
		return nil
	}
	return http.Header{"Authorization": []string{cred.AuthorizationHeader()}}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// parseTimestamp accepts the layouts the banking API has been seen to emit.
// Unknown layouts yield the zero time.
func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
