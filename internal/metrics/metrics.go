// Package metrics exposes Prometheus counters for sign-in and handoff outcomes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sumire/portal/internal/domain"
)

// Collector records portal metrics.
type Collector struct {
	signIns  *prometheus.CounterVec
	handoffs *prometheus.CounterVec
	upstream *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_signin_total",
			Help: "Sign-in attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
		handoffs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_handoff_total",
			Help: "Post sign-in resolutions by decision.",
		}, []string{"decision"}),
		upstream: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_linkedin_exchange_total",
			Help: "LinkedIn exchange requests by response status.",
		}, []string{"status"}),
	}

	reg.MustRegister(c.signIns, c.handoffs, c.upstream)
	return c
}

// RecordSignIn records one sign-in attempt. An empty code is a success.
func (c *Collector) RecordSignIn(provider domain.AuthProvider, code domain.ErrorCode) {
	outcome := string(code)
	if code == domain.ErrCodeNone {
		outcome = "success"
	}
	c.signIns.WithLabelValues(string(provider), outcome).Inc()
}

// RecordHandoff records one resolver decision.
func (c *Collector) RecordHandoff(decision string) {
	c.handoffs.WithLabelValues(decision).Inc()
}

// RecordExchange records the status returned by the LinkedIn exchange endpoint.
func (c *Collector) RecordExchange(status string) {
	c.upstream.WithLabelValues(status).Inc()
}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
