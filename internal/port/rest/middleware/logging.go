package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/hobby-app/marketplace/internal/platform/metrics"
	"go.uber.org/zap"
)

// RequestLogger logs every request with its route, status and latency, and
// feeds the latency/error metrics when a metrics manager is configured.
func RequestLogger(logger *zap.Logger, mm *metrics.MetricsManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			elapsed := time.Since(start)
			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = r.URL.Path
			}

			if mm != nil {
				mm.APILatency.WithLabelValues(route).Observe(elapsed.Seconds())
				if ww.Status() >= http.StatusInternalServerError {
					mm.APIErrorsTotal.WithLabelValues(route, "server").Inc()
				} else if ww.Status() >= http.StatusBadRequest {
					mm.APIErrorsTotal.WithLabelValues(route, "client").Inc()
				}
			}

			logger.Info("HTTP request",
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", elapsed),
			)
		})
	}
}
