package transport

import (
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// newBreaker builds the circuit breaker guarding one base URL. Only
// transient failures count against it; permanent errors (4xx, cancellation)
// mean the server answered and are treated as successes.
func newBreaker(name string, cfg Config, log *zap.Logger) *gobreaker.CircuitBreaker {
	threshold := cfg.BreakerThreshold
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var permanent *backoff.PermanentError
			return errors.As(err, &permanent)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// newBackOff returns a deterministic exponential policy: base, 2*base,
// 4*base and so on, each delay capped at maxDelay. The retry count is
// enforced by the caller.
func newBackOff(base, maxDelay time.Duration) *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     base,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         maxDelay,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return b
}
