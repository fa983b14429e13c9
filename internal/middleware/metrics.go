package middleware

import (
	"net/http"
	"time"

	"github.com/HammerMeetNail/roots/internal/metrics"
)

// Instrument records request latency by route pattern. It must wrap the
// ServeMux directly so the matched pattern is visible on the request.
type Instrument struct {
	metrics *metrics.Metrics
}

func NewInstrument(m *metrics.Metrics) *Instrument {
	return &Instrument{metrics: m}
}

func (i *Instrument) Apply(next http.Handler) http.Handler {
	if i.metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		i.metrics.RequestsInFlight.Inc()
		defer i.metrics.RequestsInFlight.Dec()

		start := time.Now()
		recorder := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(recorder, r)

		i.metrics.ObserveRequest(r.Method, r.Pattern, recorder.statusCode, time.Since(start))
	})
}
