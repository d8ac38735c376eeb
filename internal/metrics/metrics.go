// Package metrics holds the Prometheus collectors exported by the gateway.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every collector the gateway reports. A nil *Metrics is
// valid and records nothing, so components can be built without it in tests.
type Metrics struct {
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec

	busPublished *prometheus.CounterVec
	busDelivered *prometheus.CounterVec
	busDiscarded *prometheus.CounterVec
	busListeners *prometheus.GaugeVec

	uploadBytes   prometheus.Counter
	uploadsFailed *prometheus.CounterVec

	mailQueueDepth prometheus.Gauge
	mailSent       *prometheus.CounterVec

	upstreamCalls *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ajounice_http_requests_total",
			Help: "Total HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ajounice_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ajounice_graphql_operations_total",
			Help: "GraphQL root fields executed by name and outcome",
		}, []string{"operation", "status"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ajounice_graphql_operation_duration_seconds",
			Help:    "GraphQL root field latency",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"operation"}),
		busPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ajounice_bus_published_total",
			Help: "Events published on the notification bus",
		}, []string{"topic"}),
		busDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ajounice_bus_delivered_total",
			Help: "Events handed to live listeners",
		}, []string{"topic"}),
		busDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ajounice_bus_discarded_total",
			Help: "Queued events discarded because their listener went away",
		}, []string{"topic"}),
		busListeners: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ajounice_bus_listeners",
			Help: "Live listeners per topic",
		}, []string{"topic"}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ajounice_upload_bytes_total",
			Help: "Bytes written to object storage",
		}),
		uploadsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ajounice_upload_failures_total",
			Help: "Failed uploads by reason",
		}, []string{"reason"}),
		mailQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ajounice_mail_queue_depth",
			Help: "Messages waiting in the mail dispatcher queue",
		}),
		mailSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ajounice_mail_sent_total",
			Help: "Mail delivery attempts by outcome",
		}, []string{"status"}),
		upstreamCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ajounice_upstream_calls_total",
			Help: "Calls to the schedule/notice service by endpoint and outcome",
		}, []string{"endpoint", "status"}),
	}

	reg.MustRegister(
		m.httpRequests, m.httpDuration,
		m.operations, m.operationDuration,
		m.busPublished, m.busDelivered, m.busDiscarded, m.busListeners,
		m.uploadBytes, m.uploadsFailed,
		m.mailQueueDepth, m.mailSent,
		m.upstreamCalls,
	)
	return m
}

// Middleware records request counts and latency per matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if m == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) ObserveOperation(name string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.operations.WithLabelValues(name, status).Inc()
	m.operationDuration.WithLabelValues(name).Observe(elapsed.Seconds())
}

func (m *Metrics) Published(topic string) {
	if m != nil {
		m.busPublished.WithLabelValues(topic).Inc()
	}
}

func (m *Metrics) Delivered(topic string) {
	if m != nil {
		m.busDelivered.WithLabelValues(topic).Inc()
	}
}

func (m *Metrics) Discarded(topic string, n int) {
	if m != nil {
		m.busDiscarded.WithLabelValues(topic).Add(float64(n))
	}
}

func (m *Metrics) Listeners(topic string, n int) {
	if m != nil {
		m.busListeners.WithLabelValues(topic).Set(float64(n))
	}
}

func (m *Metrics) Uploaded(bytes int64) {
	if m != nil {
		m.uploadBytes.Add(float64(bytes))
	}
}

func (m *Metrics) UploadFailed(reason string) {
	if m != nil {
		m.uploadsFailed.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) MailQueued(depth int) {
	if m != nil {
		m.mailQueueDepth.Set(float64(depth))
	}
}

func (m *Metrics) MailSent(err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.mailSent.WithLabelValues(status).Inc()
}

func (m *Metrics) UpstreamCall(endpoint string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.upstreamCalls.WithLabelValues(endpoint, status).Inc()
}
