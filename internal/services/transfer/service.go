package transfer

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"banktransfer/internal/domain"
	"banktransfer/internal/logging"
	"banktransfer/internal/metrics"
)

const tracerName = "banktransfer/internal/services/transfer"

// Workflow results recorded on the workflow counter.
const (
	resultSuccess = "success"
	resultFailure = "failure"
)

// Config carries the optional collaborators of a Service.
type Config struct {
	Logger         *zap.Logger
	TracerProvider trace.TracerProvider // defaults to the global provider
	Metrics        *metrics.Collectors
	Now            func() time.Time
}

// Service is the transfer orchestrator. One Service may run many workflows
// concurrently; the token manager's credential is the only state they share.
type Service struct {
	tokens    domain.TokenManager
	accounts  domain.AccountGateway
	transfers domain.TransferGateway

	log     *zap.Logger
	tracer  trace.Tracer
	metrics *metrics.Collectors
	now     func() time.Time
}

var _ domain.TransferService = (*Service)(nil)

// New returns an orchestrator over the given token manager and gateways.
func New(
	tokens domain.TokenManager,
	accounts domain.AccountGateway,
	transfers domain.TransferGateway,
	cfg Config,
) *Service {
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		tokens:    tokens,
		accounts:  accounts,
		transfers: transfers,
		log:       logging.OrNop(cfg.Logger).Named("workflow"),
		tracer:    tp.Tracer(tracerName),
		metrics:   cfg.Metrics,
		now:       now,
	}
}

// Execute runs one workflow for req. It never returns an error; the outcome
// carries either a receipt or a failure.
func (s *Service) Execute(ctx context.Context, req domain.TransferRequest, opts domain.Options) domain.Outcome {
	ctx, span := s.tracer.Start(ctx, "transfer.workflow", trace.WithAttributes(
		attribute.String("transfer.from", req.From().String()),
		attribute.String("transfer.to", req.To().String()),
		attribute.String("transfer.amount", req.Amount().StringFixed(2)),
	))
	defer span.End()

	log := s.log.With(zap.Stringer("request", req))
	log.Info("starting transfer workflow",
		zap.Bool("authenticate", opts.Authenticate),
		zap.Bool("validate", opts.Validate),
		zap.Bool("check_balance", opts.CheckBalance),
		zap.Bool("history", opts.History),
	)

	var out domain.Outcome
	fail := func(step domain.Step, err error) domain.Outcome {
		out.Failure = newFailure(ctx, step, err)
		span.SetStatus(codes.Error, out.Failure.Error())
		s.metrics.ObserveWorkflow(resultFailure, step.String())
		log.Warn("transfer workflow failed",
			zap.Stringer("step", step),
			zap.Stringer("kind", out.Failure.Kind),
			zap.Error(err),
		)
		return out
	}

	if opts.Authenticate {
		if err := s.run(ctx, domain.StepAuthenticate, func(ctx context.Context) error {
			return s.authenticate(ctx, opts.ForceRefresh)
		}); err != nil {
			return fail(domain.StepAuthenticate, err)
		}
	}

	if opts.Validate {
		if err := s.run(ctx, domain.StepValidate, func(ctx context.Context) error {
			return s.validate(ctx, req)
		}); err != nil {
			return fail(domain.StepValidate, err)
		}
	}

	if opts.CheckBalance {
		if err := s.run(ctx, domain.StepCheckBalance, func(ctx context.Context) error {
			pair, err := s.balances(ctx, req)
			if pair != nil {
				out.Balances = pair
			}
			return err
		}); err != nil {
			return fail(domain.StepCheckBalance, err)
		}
	}

	if err := s.run(ctx, domain.StepTransfer, func(ctx context.Context) error {
		receipt, err := s.transfers.Transfer(ctx, req, s.credential())
		if err != nil {
			return err
		}
		out.Receipt = &receipt
		return nil
	}); err != nil {
		return fail(domain.StepTransfer, err)
	}
	span.SetAttributes(attribute.String("transfer.transaction_id", out.Receipt.TransactionID.String()))
	log.Info("transfer completed",
		zap.Stringer("transaction_id", out.Receipt.TransactionID),
		zap.String("status", string(out.Receipt.Status)),
	)

	if opts.History {
		query := domain.HistoryQuery{Limit: opts.HistoryLimit, Account: opts.HistoryAccount}
		if query.Limit <= 0 {
			query.Limit = domain.DefaultHistoryLimit
		}
		if err := s.run(ctx, domain.StepHistory, func(ctx context.Context) error {
			history, err := s.transfers.History(ctx, s.credential(), query)
			if err != nil {
				return err
			}
			out.History = history
			return nil
		}); err != nil {
			w := domain.Warning{Step: domain.StepHistory, Kind: kindOf(ctx, err), Message: err.Error()}
			out.Warnings = append(out.Warnings, w)
			log.Warn("history lookup failed after transfer", zap.Stringer("kind", w.Kind), zap.Error(err))
		}
	}

	s.metrics.ObserveWorkflow(resultSuccess, "")
	return out
}

// History authenticates when no usable credential is held, then returns the
// transaction history.
func (s *Service) History(ctx context.Context, query domain.HistoryQuery, forceRefresh bool) ([]domain.TransferReceipt, error) {
	if query.Limit <= 0 {
		query.Limit = domain.DefaultHistoryLimit
	}
	if err := s.run(ctx, domain.StepAuthenticate, func(ctx context.Context) error {
		return s.authenticate(ctx, forceRefresh)
	}); err != nil {
		return nil, err
	}

	var history []domain.TransferReceipt
	err := s.run(ctx, domain.StepHistory, func(ctx context.Context) error {
		var err error
		history, err = s.transfers.History(ctx, s.credential(), query)
		return err
	})
	return history, err
}

// run executes one step inside its own span. A cancelled context stops the
// workflow before the step starts.
func (s *Service) run(ctx context.Context, step domain.Step, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return domain.WrapError(domain.KindUnavailable, err, "workflow cancelled before %s", step)
	}

	ctx, span := s.tracer.Start(ctx, "transfer."+step.String())
	defer span.End()

	start := s.now()
	s.log.Debug("step started", zap.Stringer("step", step))
	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("error.kind", kindOf(ctx, err).String()))
		return err
	}
	s.log.Debug("step finished", zap.Stringer("step", step), zap.Duration("took", s.now().Sub(start)))
	return nil
}

// authenticate fetches a token unless a non-expired one is held.
func (s *Service) authenticate(ctx context.Context, force bool) error {
	if s.tokens == nil {
		return domain.NewError(domain.KindAuthFailed, "no token manager configured")
	}
	if !force {
		if held := s.tokens.Current(); held != nil && !s.tokens.IsExpired(*held, s.now()) {
			s.log.Debug("reusing held credential", zap.Time("expires_at", held.ExpiresAt))
			return nil
		}
	}
	if _, err := s.tokens.Authenticate(ctx); err != nil {
		if domain.KindOf(err) != domain.KindAuthFailed {
			return domain.WrapError(domain.KindAuthFailed, err, "authenticate")
		}
		return err
	}
	return nil
}

// validate checks the source account, then the destination. The first
// invalid account ends the step.
func (s *Service) validate(ctx context.Context, req domain.TransferRequest) error {
	sides := []struct {
		name string
		id   domain.AccountID
	}{
		{"source", req.From()},
		{"destination", req.To()},
	}
	for _, side := range sides {
		ok, err := s.accounts.Validate(ctx, side.id)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NewError(domain.KindInvalidAccount, "%s account %s is not valid", side.name, side.id)
		}
	}
	return nil
}

// balances fetches both balances concurrently and checks the source covers
// the amount. The pair is returned whenever both lookups succeeded.
func (s *Service) balances(ctx context.Context, req domain.TransferRequest) (*domain.BalancePair, error) {
	var pair domain.BalancePair
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		snap, err := s.accounts.Balance(gctx, req.From())
		if err != nil {
			return err
		}
		pair.From = snap
		return nil
	})
	g.Go(func() error {
		snap, err := s.accounts.Balance(gctx, req.To())
		if err != nil {
			return err
		}
		pair.To = snap
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if pair.From.Balance.LessThan(req.Amount()) {
		return &pair, domain.NewError(domain.KindInsufficientFunds,
			"account %s holds %s, needs %s",
			req.From(), pair.From.Balance.StringFixed(2), req.Amount().StringFixed(2))
	}
	return &pair, nil
}

// credential returns the held credential when it is still usable.
func (s *Service) credential() *domain.Credential {
	if s.tokens == nil {
		return nil
	}
	c := s.tokens.Current()
	if c == nil || s.tokens.IsExpired(*c, s.now()) {
		return nil
	}
	return c
}

func newFailure(ctx context.Context, step domain.Step, err error) *domain.Failure {
	return &domain.Failure{
		Kind:    kindOf(ctx, err),
		Message: message(err),
		Step:    step,
		Err:     err,
	}
}

// kindOf classifies err, falling back to Unavailable for cancellation and
// ClientError for anything unclassified.
func kindOf(ctx context.Context, err error) domain.ErrorKind {
	if k := domain.KindOf(err); k != "" {
		return k
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.KindUnavailable
	}
	return domain.KindClientError
}

// message renders err without its kind and status prefix.
func message(err error) string {
	var e *domain.Error
	if errors.As(err, &e) {
		switch {
		case e.Message != "" && e.Err != nil:
			return e.Message + ": " + e.Err.Error()
		case e.Message != "":
			return e.Message
		}
	}
	return err.Error()
}
