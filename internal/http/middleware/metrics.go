// Package middleware – Prometheus instrumentation for HTTP traffic.
//
// Labels are kept low-cardinality: method, registered route (the unrouted
// file-serving path collapses to "/{file}"), and status code. Response size
// buckets are tuned for file payloads rather than JSON bodies.
package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_response_size_bytes",
			Help: "Size of HTTP responses in bytes.",
			Buckets: []float64{
				1 << 10, 10 << 10, 100 << 10, // 1KiB..100KiB
				1 << 20, 5 << 20, 20 << 20, 50 << 20, // 1..50MiB file payloads
			},
		},
		[]string{"method", "path"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpRespSize)
}

// Metrics returns a Gin middleware that instruments requests with Prometheus.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()

		c.Next()

		httpInflight.Dec()

		path := c.FullPath()
		if path == "" {
			// Every file-serving request is unrouted; collapse them all
			// into one label value to bound cardinality.
			if c.Request.Method == "GET" && strings.HasPrefix(c.Request.URL.Path, "/") {
				path = "/{file}"
			} else {
				path = "unmatched"
			}
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		httpReqs.WithLabelValues(method, path, status).Inc()
		httpLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		if sz := c.Writer.Size(); sz >= 0 {
			httpRespSize.WithLabelValues(method, path).Observe(float64(sz))
		}
	}
}
