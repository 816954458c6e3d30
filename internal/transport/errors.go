package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// maxMessageLen bounds how much of a non-JSON error body is kept.
const maxMessageLen = 512

// APIError is the error payload of a non-2xx response.
type APIError struct {
	Status  int
	Code    string // server error code, e.g. INSUFFICIENT_FUNDS
	Message string
}

func (e *APIError) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return e.Code + ": " + e.Message
	case e.Message != "":
		return e.Message
	case e.Code != "":
		return e.Code
	}
	return http.StatusText(e.Status)
}

// errorPayload covers the error shapes the banking API and common proxies
// return.
type errorPayload struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

// parseAPIError extracts code and message from an error body. Non-JSON
// bodies become the (truncated) message.
func parseAPIError(status int, body []byte) *APIError {
	e := &APIError{Status: status}
	var p errorPayload
	if err := json.Unmarshal(body, &p); err == nil {
		e.Code = FirstNonEmpty(p.Code, p.Error)
		e.Message = FirstNonEmpty(p.Message, p.Detail)
		if e.Message == "" && p.Code != "" && p.Error != "" {
			e.Message = p.Error
		}
		return e
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxMessageLen {
		msg = msg[:maxMessageLen] + "...(truncated)"
	}
	e.Message = msg
	return e
}

// FirstNonEmpty returns the first non-empty value. Servers spell some
// payload fields more than one way.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// isTransientStatus reports whether a response status is worth retrying.
func isTransientStatus(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests
}

func describe(method, path string) string { return fmt.Sprintf("%s %s", method, path) }
