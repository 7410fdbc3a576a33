// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics groups the service collectors around one registry.
type Metrics struct {
	Registry *prometheus.Registry

	requests *prometheus.HistogramVec
	loans    *prometheus.CounterVec
}

// Loan events counted by LoanEvent.
const (
	LoanBorrowed = "borrowed"
	LoanReturned = "returned"
	LoanRejected = "rejected"
	LoanDeleted  = "deleted"
)

// New registers the collectors on a fresh registry together with the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "library",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		loans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "library",
			Name:      "loan_events_total",
			Help:      "Loan lifecycle events.",
		}, []string{"event"}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.loans,
	)
	return m
}

// LoanEvent counts one loan event. Safe on a nil receiver.
func (m *Metrics) LoanEvent(event string) {
	if m == nil {
		return
	}
	m.loans.WithLabelValues(event).Inc()
}

// RegisterOverdueGauge exports the number of overdue loans, computed by count
// on every scrape.
func (m *Metrics) RegisterOverdueGauge(count func() float64) {
	m.Registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "library",
		Name:      "loans_overdue",
		Help:      "Loans past their due date and not returned.",
	}, count))
}

// Middleware observes request latency, labelled by the matched route.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.requests.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).
				Observe(time.Since(start).Seconds())
			return err
		}
	}
}
