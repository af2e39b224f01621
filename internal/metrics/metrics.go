package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters exported on /metrics. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	IngestTotal      *prometheus.CounterVec
	PersistTotal     *prometheus.CounterVec
	ForwardTotal     *prometheus.CounterVec
	APIRequestsTotal *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the counters on reg. Pass prometheus.NewRegistry() in tests to
// keep them isolated from the default registry.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		IngestTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailgate_ingest_total",
				Help: "Inbound messages handled, by parse result",
			},
			[]string{"result"},
		),
		PersistTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailgate_persist_total",
				Help: "Inbox insert attempts, by outcome",
			},
			[]string{"outcome"},
		),
		ForwardTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailgate_forward_total",
				Help: "Fallback forward attempts, by result",
			},
			[]string{"result"},
		),
		APIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailgate_api_requests_total",
				Help: "Mailbox API requests, by operation and envelope ok flag",
			},
			[]string{"op", "ok"},
		),
		gatherer: reg,
	}
}

func (m *Metrics) Ingest(result string) {
	if m == nil {
		return
	}
	m.IngestTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) Persist(outcome string) {
	if m == nil {
		return
	}
	m.PersistTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Forward(result string) {
	if m == nil {
		return
	}
	m.ForwardTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) APIRequest(op string, ok bool) {
	if m == nil {
		return
	}
	m.APIRequestsTotal.WithLabelValues(op, strconv.FormatBool(ok)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
