package app

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"banktransfer/internal/gateway"
	"banktransfer/internal/logging"
	"banktransfer/internal/metrics"
	tokensvc "banktransfer/internal/services/token"
	transfersvc "banktransfer/internal/services/transfer"
	"banktransfer/internal/transport"
)

// Deps are optional collaborators supplied by the caller. Zero fields are
// built from Config.
type Deps struct {
	Logger         *zap.Logger
	HTTP           *http.Client
	Registry       *prometheus.Registry
	TracerProvider trace.TracerProvider
}

// Wire bundles the services, gateways and clients for the CLI.
type Wire struct {
	Config    Config
	Logger    *zap.Logger
	Registry  *prometheus.Registry
	Metrics   *metrics.Collectors
	Transport *transport.Client
	Tokens    *tokensvc.Service
	Accounts  *gateway.Accounts
	Transfers *gateway.Transfers
	Workflow  *transfersvc.Service

	ownLogger bool
}

// NewWire validates cfg and constructs the dependency graph.
func NewWire(cfg Config, deps Deps) (*Wire, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := deps.Logger
	ownLogger := false
	if log == nil {
		l, err := logging.New(cfg.LogLevel, cfg.LogFile)
		if err != nil {
			return nil, err
		}
		log, ownLogger = l, true
	}

	reg := deps.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m, err := metrics.New(reg)
	if err != nil {
		return nil, err
	}

	// Transport shared by every gateway.
	tc, err := transport.New(transport.Config{
		BaseURL:          cfg.BaseURL,
		Timeout:          cfg.Timeout.D(),
		MaxRetries:       cfg.MaxRetries,
		BackoffBase:      cfg.BackoffBase.D(),
		BackoffCap:       cfg.BackoffCap.D(),
		RateLimit:        cfg.RateLimit,
		BreakerThreshold: cfg.BreakerThreshold,
		BreakerCooldown:  cfg.BreakerCooldown.D(),
		HTTP:             deps.HTTP,
		Logger:           log,
		Metrics:          m,
	})
	if err != nil {
		return nil, err
	}

	tokens := tokensvc.New(tc, tokensvc.Config{
		Username: cfg.Username,
		Password: cfg.Password,
		Claim:    cfg.TokenClaim,
		TTL:      cfg.TokenTTL.D(),
		Logger:   log,
	})
	accounts := gateway.NewAccounts(tc, log)
	transfers := gateway.NewTransfers(tc, log)
	workflow := transfersvc.New(tokens, accounts, transfers, transfersvc.Config{
		Logger:         log,
		TracerProvider: deps.TracerProvider,
		Metrics:        m,
	})

	return &Wire{
		Config:    cfg,
		Logger:    log,
		Registry:  reg,
		Metrics:   m,
		Transport: tc,
		Tokens:    tokens,
		Accounts:  accounts,
		Transfers: transfers,
		Workflow:  workflow,
		ownLogger: ownLogger,
	}, nil
}

// Close flushes the logger if NewWire built it.
func (w *Wire) Close() {
	if w.ownLogger {
		_ = w.Logger.Sync()
	}
}
