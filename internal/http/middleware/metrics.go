// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file exposes Prometheus instrumentation for HTTP traffic. Labels are
// bounded: method, the registered route (never the raw URL of a matched
// route) and the numeric status.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "marketplace"

var (
	httpReqs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "route", "status"})

	httpLat = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	httpInflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "http_requests_inflight",
		Help:      "Current number of in-flight HTTP requests.",
	})

	// Upload responses are small JSON but upload requests are not, so the
	// request side is tracked too.
	httpReqSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "http_request_size_bytes",
		Help:      "Size of HTTP request bodies in bytes.",
		Buckets:   prometheus.ExponentialBuckets(256, 4, 9), // 256B..16MiB
	}, []string{"method", "route"})

	httpRespSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "http_response_size_bytes",
		Help:      "Size of HTTP responses in bytes.",
		Buckets:   prometheus.ExponentialBuckets(200, 2.5, 10), // 200B..~760KiB
	}, []string{"method", "route"})
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpReqSize, httpRespSize)
}

// Metrics records the HTTP collectors above for every request. Unmatched
// requests are labelled "unmatched" so scanners cannot explode cardinality.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		httpReqs.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpLat.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		if n := c.Request.ContentLength; n > 0 {
			httpReqSize.WithLabelValues(method, route).Observe(float64(n))
		}
		if size := c.Writer.Size(); size >= 0 {
			httpRespSize.WithLabelValues(method, route).Observe(float64(size))
		}
	}
}
