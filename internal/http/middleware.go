package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/our-story/internal/observability"
	"github.com/kjstillabower/our-story/internal/traffic"
)

// CorrelationIDMiddleware stores the request's correlation ID and a logger carrying it in the context.
func CorrelationIDMiddleware(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			corrID := r.Header.Get("X-Correlation-ID")
			if corrID == "" {
				corrID = uuid.New().String()
			}
			w.Header().Set("X-Correlation-ID", corrID)

			ctx := context.WithValue(r.Context(), "correlation_id", corrID)
			ctx = context.WithValue(ctx, "logger", logger.With(zap.String("correlation_id", corrID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// MetricsMiddleware records request count, latency and in-flight gauge by route template.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		observability.HTTPRequestsInFlight.Inc()
		globalInFlightTracker.Increment()
		defer func() {
			observability.HTTPRequestsInFlight.Dec()
			globalInFlightTracker.Decrement()
		}()

		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := getRoute(r)
		observability.HTTPRequestsTotal.WithLabelValues(r.Method, route, statusCodeString(recorder.statusCode)).Inc()
		observability.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// getRoute returns the matched route template so path variables do not explode label cardinality.
func getRoute(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func statusCodeString(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}

// TimeoutMiddleware sets a deadline on the request context. When exceeded, downstream handlers
// receive context.DeadlineExceeded.
func TimeoutMiddleware(timeout time.Duration) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimitMiddleware returns 429 when the token bucket is exhausted. Disabled when limiter is nil.
func RateLimitMiddleware(limiter *rate.Limiter) mux.MiddlewareFunc {
	if limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
					logger.Debug("rate limit denied", zap.String("path", r.URL.Path))
				}
				traffic.RecordDenied()
				observability.RateLimitDeniedTotal.Inc()
				writeError(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
				return
			}
			traffic.RecordAction()
			next.ServeHTTP(w, r)
		})
	}
}
