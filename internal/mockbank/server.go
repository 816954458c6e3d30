package mockbank

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"banktransfer/internal/logging"
)

// Defaults used by New for zero Config fields.
const (
	DefaultAccounts = 10
	DefaultTokenTTL = 30 * time.Minute
	defaultLimit    = 10
)

// DefaultOpeningBalance is the seeded balance of every account.
var DefaultOpeningBalance = decimal.RequireFromString("1000.00")

// Config configures a Server. Zero values take defaults.
type Config struct {
	Accounts       int
	OpeningBalance decimal.Decimal
	Secret         []byte
	TokenTTL       time.Duration
	Now            func() time.Time
	Logger         *zap.Logger
}

// Server serves the banking API over an in-memory Bank.
type Server struct {
	bank    *Bank
	issuer  *issuer
	faults  faults
	log     *zap.Logger
	reg     *prometheus.Registry
	reqs    *prometheus.CounterVec
	handler http.Handler

	mu   sync.Mutex
	hits map[string]int
}

// New returns a server with freshly seeded accounts.
func New(cfg Config) *Server {
	if cfg.Accounts <= 0 {
		cfg.Accounts = DefaultAccounts
	}
	if cfg.OpeningBalance.IsZero() {
		cfg.OpeningBalance = DefaultOpeningBalance
	}
	if len(cfg.Secret) == 0 {
		cfg.Secret = []byte("mockbank-development-secret")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Server{
		bank:   NewBank(cfg.Accounts, cfg.OpeningBalance, cfg.Now),
		issuer: &issuer{secret: cfg.Secret, ttl: cfg.TokenTTL, now: cfg.Now},
		log:    logging.OrNop(cfg.Logger).Named("mockbank"),
		reg:    prometheus.NewRegistry(),
		hits:   make(map[string]int),
		reqs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mockbank",
			Name:      "requests_total",
			Help:      "Requests served by route and status code.",
		}, []string{"method", "route", "code"}),
	}
	s.reg.MustRegister(s.reqs)

	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := r.NewRoute().Subrouter()
	api.Use(s.countHits, s.faults.middleware, s.observe)
	api.HandleFunc("/authToken", s.handleAuthToken).Methods(http.MethodPost)
	api.HandleFunc("/auth/validate", s.handleValidateToken).Methods(http.MethodPost)
	api.HandleFunc("/accounts", s.handleListAccounts).Methods(http.MethodGet)
	api.HandleFunc("/accounts/validate/{id}", s.handleValidateAccount).Methods(http.MethodGet)
	api.HandleFunc("/accounts/balance/{id}", s.handleBalance).Methods(http.MethodGet)
	api.HandleFunc("/transfer", s.handleTransfer).Methods(http.MethodPost)
	api.HandleFunc("/transactions/history", s.handleHistory).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no such endpoint")
	})
	s.handler = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Bank exposes the ledger for inspection and seeding.
func (s *Server) Bank() *Bank { return s.bank }

// Registry returns the server's metrics registry.
func (s *Server) Registry() *prometheus.Registry { return s.reg }

// FailNext makes the next n API requests answer status with an error payload.
func (s *Server) FailNext(n, status int) { s.faults.push(n, fault{kind: faultStatus, status: status}) }

// DropNext makes the next n API requests close the connection unanswered.
func (s *Server) DropNext(n int) { s.faults.push(n, fault{kind: faultDrop}) }

// ResetFaults discards queued faults.
func (s *Server) ResetFaults() { s.faults.reset() }

// Hits returns how many requests reached route, e.g. "/transfer" or
// "/accounts/balance/{id}", including faulted ones.
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// observe records served requests by route template and status.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := routeOf(r)
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.reqs.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		s.log.Debug("served",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", r.Header.Get("X-Request-ID")),
		)
	})
}

// countHits runs ahead of fault injection so faulted requests count too.
func (s *Server) countHits(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := routeOf(r)
		s.mu.Lock()
		s.hits[route]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func routeOf(r *http.Request) string {
	if cur := mux.CurrentRoute(r); cur != nil {
		if tpl, err := cur.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}

type authRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	claim := r.URL.Query().Get("claim")
	if claim == "" {
		claim = "transfer"
	}
	if claim != "transfer" && claim != "enquiry" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "claim must be transfer or enquiry")
		return
	}

	// A bodiless request stands for the default user.
	in := authRequest{Username: "alice", Password: "any"}
	if r.ContentLength != 0 {
		in = authRequest{}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid JSON body")
			return
		}
	}
	if strings.TrimSpace(in.Username) == "" || in.Password == "" {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "username and password are required")
		return
	}

	tok, expires, err := s.issuer.issue(in.Username, claim)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":     tok,
		"claim":     claim,
		"expiresAt": expires.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleValidateToken(w http.ResponseWriter, r *http.Request) {
	c, err := s.issuer.bearer(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"valid": false, "error": CodeUnauthorized, "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true, "username": c.Subject, "claim": c.Claim})
}

func (s *Server) handleListAccounts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"accounts": s.bank.Accounts()})
}

func (s *Server) handleValidateAccount(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	a, ok := s.bank.Account(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"isValid":   false,
			"accountId": id,
			"error":     CodeAccountNotFound,
			"message":   "account " + id + " not found",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"isValid": a.Status == statusActive, "accountId": a.ID, "status": a.Status})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	a, ok := s.bank.Account(id)
	if !ok {
		writeError(w, http.StatusNotFound, CodeAccountNotFound, "account "+id+" not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type transferRequest struct {
	FromAccount string          `json:"fromAccount"`
	ToAccount   string          `json:"toAccount"`
	Amount      decimal.Decimal `json:"amount"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var owner string
	c, err := s.issuer.bearer(r)
	switch {
	case err == nil:
		owner = c.Subject
	case !errors.Is(err, errNoBearer):
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, err.Error())
		return
	}

	var in transferRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid JSON body")
		return
	}

	tx, err := s.bank.Transfer(strings.TrimSpace(in.FromAccount), strings.TrimSpace(in.ToAccount), in.Amount, owner)
	if err != nil {
		var rej *Rejection
		if !errors.As(err, &rej) {
			writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
			return
		}
		status := http.StatusBadRequest
		if rej.Code == CodeAccountNotFound {
			status = http.StatusNotFound
		}
		writeError(w, status, rej.Code, rej.Message)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if _, err := s.issuer.bearer(r); err != nil {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, err.Error())
		return
	}

	limit := defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	txns := s.bank.History(r.URL.Query().Get("accountNumber"), limit)
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txns, "totalReturned": len(txns)})
}
