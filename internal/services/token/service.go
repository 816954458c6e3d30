package token

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"banktransfer/internal/domain"
	"banktransfer/internal/logging"
	"banktransfer/internal/transport"
)

const (
	// DefaultClaim is the token scope requested when none is configured.
	DefaultClaim = "transfer"
	// DefaultTTL applies when neither the response nor the token says when
	// it expires.
	DefaultTTL = 30 * time.Minute

	routeAuthToken = "/authToken"
	routeValidate  = "/auth/validate"
)

// Sender performs one logical API call. *transport.Client satisfies it.
type Sender interface {
	Send(ctx context.Context, req transport.Request, out any) (*transport.Response, error)
}

// Config configures the token request.
type Config struct {
	Username string
	Password string
	Claim    string
	TTL      time.Duration

	Now    func() time.Time // defaults to time.Now
	Logger *zap.Logger
}

// Service is the token manager.
type Service struct {
	api  Sender
	cfg  Config
	now  func() time.Time
	log  *zap.Logger
	cred atomic.Pointer[domain.Credential]
}

var _ domain.TokenManager = (*Service)(nil)

// New returns a token manager with no credential held.
func New(api Sender, cfg Config) *Service {
	if cfg.Claim == "" {
		cfg.Claim = DefaultClaim
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		api: api,
		cfg: cfg,
		now: now,
		log: logging.OrNop(cfg.Logger).Named("token"),
	}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"access_token"`
	ExpiresAt   string `json:"expiresAt"`
	ExpiresIn   *int64 `json:"expiresIn"`
}

// Authenticate requests a new token and replaces the held credential. Every
// failure is reported as AuthFailed.
func (s *Service) Authenticate(ctx context.Context) (domain.Credential, error) {
	req := transport.Request{
		Method: http.MethodPost,
		Path:   routeAuthToken,
		Query:  url.Values{"claim": []string{s.cfg.Claim}},
	}
	if s.cfg.Username != "" {
		req.Body = credentials{Username: s.cfg.Username, Password: s.cfg.Password}
	}

	var out tokenResponse
	if _, err := s.api.Send(ctx, req, &out); err != nil {
		return domain.Credential{}, &domain.Error{
			Kind:    domain.KindAuthFailed,
			Status:  domain.StatusOf(err),
			Message: "token request failed",
			Err:     err,
		}
	}

	tok := strings.TrimSpace(transport.FirstNonEmpty(out.Token, out.AccessToken))
	if tok == "" {
		return domain.Credential{}, &domain.Error{
			Kind:    domain.KindAuthFailed,
			Message: "token response has no token",
			Err:     domain.ErrProtocol,
		}
	}

	issued := s.now()
	cred := domain.Credential{
		Token:     tok,
		IssuedAt:  issued,
		ExpiresAt: s.expiry(out, tok, issued),
	}
	s.cred.Store(&cred)

	s.log.Info("authenticated",
		zap.String("claim", s.cfg.Claim),
		zap.Time("expires_at", cred.ExpiresAt),
	)
	return cred, nil
}

// expiry resolves the expiry time from, in order: the response's expiresAt,
// its expiresIn, the token's own exp claim, and the configured TTL.
func (s *Service) expiry(out tokenResponse, tok string, issued time.Time) time.Time {
	if out.ExpiresAt != "" {
		if t, err := time.Parse(time.RFC3339, out.ExpiresAt); err == nil {
			return t
		}
		s.log.Debug("ignoring unparseable expiresAt", zap.String("value", out.ExpiresAt))
	}
	if out.ExpiresIn != nil && *out.ExpiresIn > 0 {
		return issued.Add(time.Duration(*out.ExpiresIn) * time.Second)
	}
	if t, ok := jwtExpiry(tok); ok {
		return t
	}
	return issued.Add(s.cfg.TTL)
}

// jwtExpiry reads the exp claim without verifying the signature; the client
// holds no key and only needs to know when to stop using the token.
func jwtExpiry(tok string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Current returns the held credential, or nil.
func (s *Service) Current() *domain.Credential {
	c := s.cred.Load()
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// Valid returns the held credential if it has not expired, or nil.
func (s *Service) Valid() *domain.Credential {
	c := s.Current()
	if c == nil || s.IsExpired(*c, s.now()) {
		return nil
	}
	return c
}

// IsExpired reports whether cred is unusable at now.
func (s *Service) IsExpired(cred domain.Credential, now time.Time) bool {
	return cred.Expired(now)
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time { return s.now() }

// Clear drops the held credential.
func (s *Service) Clear() { s.cred.Store(nil) }

type validateResponse struct {
	Valid bool `json:"valid"`
}

// Verify asks the service whether the held credential is still accepted.
// A 401 or 403 answer is reported as false.
func (s *Service) Verify(ctx context.Context) (bool, error) {
	cred := s.Current()
	if cred == nil {
		return false, domain.NewError(domain.KindAuthRequired, "no credential held")
	}

	var out validateResponse
	_, err := s.api.Send(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   routeValidate,
		Header: http.Header{"Authorization": []string{cred.AuthorizationHeader()}},
	}, &out)
	if err != nil {
		if st := domain.StatusOf(err); domain.KindOf(err) == domain.KindClientError &&
			(st == http.StatusUnauthorized || st == http.StatusForbidden) {
			return false, nil
		}
		return false, err
	}
	return out.Valid, nil
}

