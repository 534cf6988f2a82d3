package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/stagedrops/pkg/metrics"
)

// errorClass labels a failed response for the HTTP error counter.
type errorClass struct {
	kind     string
	severity string
}

// classify maps a status code to its error class. ok is false for successes.
func classify(status int) (errorClass, bool) {
	switch {
	case status < http.StatusBadRequest:
		return errorClass{}, false
	case status == http.StatusTooManyRequests:
		return errorClass{kind: "backpressure", severity: "medium"}, true
	case status == http.StatusNotFound:
		return errorClass{kind: "not_found", severity: "low"}, true
	case status == http.StatusServiceUnavailable:
		return errorClass{kind: "unavailable", severity: "high"}, true
	case status >= http.StatusInternalServerError:
		return errorClass{kind: "server_error", severity: "high"}, true
	default:
		return errorClass{kind: "client_error", severity: "medium"}, true
	}
}

// MetricsMiddleware records request count, latency and error class for endpoint.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		status := strconv.Itoa(rec.status)
		metrics.RecordHTTPRequest(endpoint, r.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, status, float64(time.Since(start).Milliseconds()))
		if class, failed := classify(rec.status); failed {
			metrics.RecordHTTPError(endpoint, r.Method, class.kind, class.severity)
		}
	}
}

// statusRecorder remembers the first status written.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wroteHeader = true
	return s.ResponseWriter.Write(b)
}
