package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/broady/tether"
)

// Metrics holds Prometheus collectors for outbound calls.
type Metrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Outbound requests by endpoint and outcome.",
		}, []string{"endpoint", "method", "code"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Time from sending a request to receiving response headers.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint", "method"}),
	}
	if reg != nil {
		reg.MustRegister(m.Requests, m.Duration)
	}
	return m
}

// Interceptor records one observation per call. The code label is the HTTP
// status, or the error code when no response arrived.
func (m *Metrics) Interceptor() tether.Interceptor {
	return func(info *tether.CallInfo, req *http.Request, next tether.HandlerFunc) (*http.Response, error) {
		start := time.Now()
		resp, err := next(req)
		endpoint := info.EndpointID()
		m.Duration.WithLabelValues(endpoint, req.Method).Observe(time.Since(start).Seconds())

		code := ""
		if err != nil {
			code = string(tether.CodeOf(err))
		} else {
			code = strconv.Itoa(resp.StatusCode)
		}
		m.Requests.WithLabelValues(endpoint, req.Method, code).Inc()
		return resp, err
	}
}
