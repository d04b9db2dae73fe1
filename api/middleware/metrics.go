package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sasabothq/sasabot-backend/pkg/metrics"
)

// Metrics records per-route handler durations. The route pattern is only
// known after chi has matched, so the observation happens post-serve.
func Metrics(botMetrics *metrics.BotMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)

			pattern := chi.RouteContext(r.Context()).RoutePattern()
			if pattern == "" {
				pattern = "unmatched"
			}
			botMetrics.ObserveHandlerDuration(pattern, time.Since(start))
		})
	}
}
