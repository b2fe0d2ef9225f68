// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// staticRoutes are exact-match paths that need no normalization.
var staticRoutes = map[string]bool{
	"/":          true,
	"/claims":    true,
	"/discovery": true,
	"/health":    true,
	"/ready":     true,
	"/metrics":   true,
}

// normalizePath converts paths with dynamic segments to route patterns to
// prevent cardinality explosion in metrics. It maps paths like
// /claims/123 to /claims/{id}.
func normalizePath(path string) string {
	if staticRoutes[path] {
		return path
	}

	// /claims/{id}, /claims/{id}/annotations, /claims/{id}/originality
	if strings.HasPrefix(path, "/claims/") {
		parts := strings.Split(path, "/")
		if len(parts) == 4 && (parts[3] == "annotations" || parts[3] == "originality") {
			return "/claims/{id}/" + parts[3]
		}
		if len(parts) == 3 && parts[2] != "" {
			return "/claims/{id}"
		}
	}

	// /annotations/{id}/vote
	if strings.HasPrefix(path, "/annotations/") {
		parts := strings.Split(path, "/")
		if len(parts) == 4 && parts[3] == "vote" {
			return "/annotations/{id}/vote"
		}
		if len(parts) == 3 && parts[2] != "" {
			return "/annotations/{id}"
		}
	}

	// /users/{id}/standing, /users/{id}/profile
	if strings.HasPrefix(path, "/users/") {
		parts := strings.Split(path, "/")
		if len(parts) == 4 && (parts[3] == "standing" || parts[3] == "profile") {
			return "/users/{id}/" + parts[3]
		}
		if len(parts) == 3 && parts[2] != "" {
			return "/users/{id}"
		}
	}

	// Unknown patterns pass through unchanged so new routes keep reporting.
	return path
}

// metricsResponseWriter wraps http.ResponseWriter to capture status code and response size.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

// WriteHeader captures the status code before writing it.
func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size and writes the data.
func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

// newMetricsResponseWriter creates a new metricsResponseWriter with default 200 status.
func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// HTTPMetrics is a middleware that records HTTP request metrics.
// It captures duration, request/response sizes, and request counts.
// Health check endpoints (/health, /ready) are excluded from metrics to avoid cardinality issues.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/ready" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()

			mrw := newMetricsResponseWriter(w)

			requestSize := int64(0)
			if contentLength := r.Header.Get("Content-Length"); contentLength != "" {
				if size, err := strconv.ParseInt(contentLength, 10, 64); err == nil {
					requestSize = size
				}
			}

			next.ServeHTTP(mrw, r)

			duration := time.Since(start).Seconds()

			normalizedPath := normalizePath(r.URL.Path)

			metrics.ObserveHTTPRequest(
				r.Method,
				normalizedPath,
				strconv.Itoa(mrw.statusCode),
				duration,
				requestSize,
				mrw.size,
			)
		})
	}
}
