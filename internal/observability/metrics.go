package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "edgecoap"

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"service", "method", "route", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "route", "status"},
	)
	clientExchanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "exchanges_total",
			Help:      "Completed client exchanges by outcome.",
		},
		[]string{"peer", "outcome"},
	)
	clientTransmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "transmissions_total",
			Help:      "Datagrams sent by the client, retransmissions included.",
		},
		[]string{"peer"},
	)
	clientDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "exchange_duration_seconds",
			Help:      "Time from first transmission to outcome.",
			Buckets:   []float64{.005, .01, .05, .1, .5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"peer", "outcome"},
	)
	serverRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "Requests handled by the CoAP server.",
		},
		[]string{"method", "code"},
	)
	serverDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "request_duration_seconds",
			Help:      "CoAP request handling duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "code"},
	)
)

// Exchange outcomes.
const (
	OutcomeAcked  = "acked"
	OutcomeGaveUp = "gave_up"
	OutcomeError  = "error"
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			clientExchanges, clientTransmissions, clientDuration,
			serverRequests, serverDuration,
		)
	})
}

func RecordHTTPRequest(service, method, route string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(service, method, route, statusLabel).Inc()
	httpDuration.WithLabelValues(service, method, route, statusLabel).Observe(duration.Seconds())
}

func RecordTransmission(peer string) {
	RegisterMetrics()
	clientTransmissions.WithLabelValues(peer).Inc()
}

func RecordExchange(peer, outcome string, duration time.Duration) {
	RegisterMetrics()
	clientExchanges.WithLabelValues(peer, outcome).Inc()
	clientDuration.WithLabelValues(peer, outcome).Observe(duration.Seconds())
}

func RecordServerRequest(method, code string, duration time.Duration) {
	RegisterMetrics()
	serverRequests.WithLabelValues(method, code).Inc()
	serverDuration.WithLabelValues(method, code).Observe(duration.Seconds())
}
