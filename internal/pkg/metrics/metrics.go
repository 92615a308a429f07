package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cookout-auth/internal/domain/oauth"
)

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	reg      *prometheus.Registry
	flows    *prometheus.CounterVec
	states   *prometheus.CounterVec
	upstream *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		flows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_flows_total",
			Help: "Finished login flows by provider and outcome.",
		}, []string{"provider", "outcome"}),
		states: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_state_tokens_total",
			Help: "State token events: issued, consumed, rejected, error.",
		}, []string{"event"}),
		upstream: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "auth_upstream_request_duration_seconds",
			Help:    "Latency of calls to identity providers and the identity platform.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"upstream", "code", "method"}),
	}
	m.reg.MustRegister(
		m.flows, m.states, m.upstream,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// FlowFinished counts a flow; err nil is a success. A nil m is a no-op.
func (m *Metrics) FlowFinished(provider string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = string(oauth.KindOf(err))
	}
	m.flows.WithLabelValues(provider, outcome).Inc()
}

// InstrumentClient returns a copy of c whose requests are timed under name.
func (m *Metrics) InstrumentClient(name string, c *http.Client) *http.Client {
	out := *c
	next := c.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	obs := m.upstream.MustCurryWith(prometheus.Labels{"upstream": name})
	out.Transport = promhttp.InstrumentRoundTripperDuration(obs, next)
	return &out
}

// StateStore counts state token events around s.
func (m *Metrics) StateStore(s oauth.StateStore) oauth.StateStore {
	return &stateStore{next: s, events: m.states}
}

type stateStore struct {
	next   oauth.StateStore
	events *prometheus.CounterVec
}

func (s *stateStore) Issue(ctx context.Context) (string, error) {
	tok, err := s.next.Issue(ctx)
	if err != nil {
		s.events.WithLabelValues("error").Inc()
		return "", err
	}
	s.events.WithLabelValues("issued").Inc()
	return tok, nil
}

func (s *stateStore) ValidateAndConsume(ctx context.Context, token string) (bool, error) {
	ok, err := s.next.ValidateAndConsume(ctx, token)
	switch {
	case err != nil:
		s.events.WithLabelValues("error").Inc()
	case ok:
		s.events.WithLabelValues("consumed").Inc()
	default:
		s.events.WithLabelValues("rejected").Inc()
	}
	return ok, err
}
