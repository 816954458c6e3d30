// Package metrics defines the Prometheus collectors recorded by the transport
// and the transfer workflow.
package metrics

import (
	"errors"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "banktransfer"

// Attempt outcomes recorded on the attempts counter.
const (
	OutcomeOK          = "ok"
	OutcomeClientError = "client_error"
	OutcomeServerError = "server_error"
	OutcomeNetwork     = "network_error"
	OutcomeTimeout     = "timeout"
	OutcomeRejected    = "breaker_open"
)

// Collectors groups the collectors for one client instance.
type Collectors struct {
	Attempts  *prometheus.CounterVec
	Retries   *prometheus.CounterVec
	Duration  *prometheus.HistogramVec
	Workflows *prometheus.CounterVec
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered, which is what most tests want.
func New(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		Attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "transport",
				Name:      "attempts_total",
				Help:      "HTTP attempts made against the banking API.",
			},
			[]string{"method", "path", "outcome"},
		),
		Retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "transport",
				Name:      "retries_total",
				Help:      "Retries scheduled after transient faults.",
			},
			[]string{"method", "path"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "transport",
				Name:      "request_duration_seconds",
				Help:      "Duration of logical requests including retries.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
			},
			[]string{"method", "path"},
		),
		Workflows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "workflow",
				Name:      "runs_total",
				Help:      "Transfer workflow runs by result and failed step.",
			},
			[]string{"result", "step"},
		),
	}
	if reg == nil {
		return c, nil
	}
	var err error
	if c.Attempts, err = register(reg, c.Attempts); err != nil {
		return nil, err
	}
	if c.Retries, err = register(reg, c.Retries); err != nil {
		return nil, err
	}
	if c.Duration, err = register(reg, c.Duration); err != nil {
		return nil, err
	}
	if c.Workflows, err = register(reg, c.Workflows); err != nil {
		return nil, err
	}
	return c, nil
}

// register adds col to reg, reusing an identical collector that is already
// registered so several clients can share one registry.
func register[T prometheus.Collector](reg prometheus.Registerer, col T) (T, error) {
	if err := reg.Register(col); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return col, err
	}
	return col, nil
}

// ObserveAttempt counts one attempt.
func (c *Collectors) ObserveAttempt(method, path, outcome string) {
	if c == nil {
		return
	}
	c.Attempts.WithLabelValues(method, path, outcome).Inc()
}

// ObserveRetry counts one scheduled retry.
func (c *Collectors) ObserveRetry(method, path string) {
	if c == nil {
		return
	}
	c.Retries.WithLabelValues(method, path).Inc()
}

// ObserveRequest records the total duration of a logical request.
func (c *Collectors) ObserveRequest(method, path string, d time.Duration) {
	if c == nil {
		return
	}
	c.Duration.WithLabelValues(method, path).Observe(d.Seconds())
}

// ObserveWorkflow counts a finished workflow. step is empty on success.
func (c *Collectors) ObserveWorkflow(result, step string) {
	if c == nil {
		return
	}
	c.Workflows.WithLabelValues(result, step).Inc()
}

// Sample is one counter value from a gathered registry.
type Sample struct {
	Name   string
	Labels map[string]string
	Value  float64
}

// Counters gathers all counter samples from g, sorted by name.
func Counters(g prometheus.Gatherer) ([]Sample, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, err
	}
	var out []Sample
	for _, mf := range families {
		if mf.GetType() != dto.MetricType_COUNTER {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			out = append(out, Sample{Name: mf.GetName(), Labels: labels, Value: m.GetCounter().GetValue()})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
