package types

import "time"

// Credential is a bearer token with its validity window.
//
// A Credential is replaced wholesale on re-authentication and never patched
// in place.
type Credential struct {
	Token     string    `json:"-"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the credential is unusable at now.
func (c Credential) Expired(now time.Time) bool { return !now.Before(c.ExpiresAt) }

// AuthorizationHeader returns the value for the HTTP Authorization header.
func (c Credential) AuthorizationHeader() string { return "Bearer " + c.Token }
