// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	RitualCompletions *prometheus.CounterVec
	FriendRequests    *prometheus.CounterVec
	FeedSubscribers   prometheus.Gauge
	RequestDuration   *prometheus.HistogramVec
	RequestsInFlight  prometheus.Gauge
}

// New registers every collector on a fresh registry, plus the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		RitualCompletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roots",
			Name:      "ritual_completions_total",
			Help:      "Ritual completion attempts by outcome.",
		}, []string{"outcome"}),
		FriendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roots",
			Name:      "friend_requests_total",
			Help:      "Friend request transitions by action.",
		}, []string{"action"}),
		FeedSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "roots",
			Name:      "feed_subscribers",
			Help:      "Open change feed streams.",
		}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "roots",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern, method and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "roots",
			Name:      "http_requests_in_flight",
			Help:      "Requests currently being served.",
		}),
	}

	reg.MustRegister(
		m.RitualCompletions,
		m.FriendRequests,
		m.FeedSubscribers,
		m.RequestDuration,
		m.RequestsInFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveCompletion counts one completion outcome. Safe on a nil receiver.
func (m *Metrics) ObserveCompletion(outcome string) {
	if m == nil {
		return
	}
	m.RitualCompletions.WithLabelValues(outcome).Inc()
}

// ObserveFriendRequest counts one friend request transition. Safe on a nil receiver.
func (m *Metrics) ObserveFriendRequest(action string) {
	if m == nil {
		return
	}
	m.FriendRequests.WithLabelValues(action).Inc()
}

// SubscriberOpened and SubscriberClosed track live feed streams.
func (m *Metrics) SubscriberOpened() {
	if m != nil {
		m.FeedSubscribers.Inc()
	}
}

func (m *Metrics) SubscriberClosed() {
	if m != nil {
		m.FeedSubscribers.Dec()
	}
}

// ObserveRequest records one finished request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.RequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
