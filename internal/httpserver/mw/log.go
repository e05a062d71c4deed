package mw

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/tabkeeper/internal/logger"
	"github.com/MrSnakeDoc/tabkeeper/internal/metrics"
)

// statusWriter captures status code and bytes written.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	// Ensure status is set if handler wrote body without calling WriteHeader.
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func (w *statusWriter) code() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// Log returns a middleware that logs one line per HTTP request and, when m
// is not nil, records request count and latency by route pattern.
func Log(loggerClient logger.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w}

			next.ServeHTTP(ww, r)

			elapsed := time.Since(start)
			route := routePattern(r)
			if m != nil {
				m.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(ww.code())).Inc()
				m.RequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
			}

			loggerClient.Info("http_request",
				logger.String("method", r.Method),
				logger.String("path", r.URL.Path),
				logger.String("route", route),
				logger.Int("status", ww.code()),
				logger.Int("bytes", ww.bytes),
				logger.Duration("duration", elapsed),
				logger.String("remote_ip", r.RemoteAddr),
				logger.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// routePattern keeps metric labels bounded: /api/tabs/{id}, not /api/tabs/42.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
