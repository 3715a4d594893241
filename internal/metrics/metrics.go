// Package metrics exposes the gateway's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gateway",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	httpInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gateway",
		Subsystem: "http",
		Name:      "in_flight_requests",
		Help:      "Requests currently being served.",
	})

	providerFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "provider",
		Name:      "fetches_total",
		Help:      "Provider fetch attempts by provider and outcome (hit, miss, error).",
	}, []string{"provider", "outcome"})

	recordLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "resolver",
		Name:      "lookups_total",
		Help:      "Resolved lookups by service and answering source.",
	}, []string{"service", "source"})

	creditsCharged = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Subsystem: "credits",
		Name:      "charged_total",
		Help:      "Credits charged per service.",
	}, []string{"service"})
)

// ObserveHTTP records one finished HTTP request.
func ObserveHTTP(route, method string, status int, seconds float64) {
	httpRequests.WithLabelValues(route, method, httpStatusLabel(status)).Inc()
	httpDuration.WithLabelValues(route).Observe(seconds)
}

// IncInFlight marks a request as started and returns a done func.
func IncInFlight() func() {
	httpInFlight.Inc()
	return httpInFlight.Dec
}

// ProviderFetch records one provider fetch attempt.
func ProviderFetch(provider, outcome string) {
	providerFetches.WithLabelValues(provider, outcome).Inc()
}

// RecordLookup records one resolved lookup and its answering source.
func RecordLookup(service, source string) {
	recordLookups.WithLabelValues(service, source).Inc()
}

// CreditsCharged records credits committed for a service call.
func CreditsCharged(service string, amount int64) {
	creditsCharged.WithLabelValues(service).Add(float64(amount))
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

func httpStatusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
