package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/auth-tokens/internal/metrics"
)

// unmatchedRoute — метка route для запросов, не попавших ни в один маршрут.
const unmatchedRoute = "unmatched"

// Metrics считает запросы и их длительность по шаблону маршрута chi
// (а не по сырому пути, чтобы /users/1 и /users/2 не плодили серии).
// При m == nil мидлвар ничего не делает.
func Metrics(m *metrics.Metrics) Middleware {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := newStatusWriter(w)
			start := time.Now()
			next.ServeHTTP(sw, r)

			m.HTTPRequest(r.Method, routePattern(r), sw.code(), time.Since(start))
		})
	}
}

// routePattern читается после обработки: chi заполняет шаблон по ходу маршрутизации.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return unmatchedRoute
	}
	if p := rctx.RoutePattern(); p != "" {
		return p
	}
	return unmatchedRoute
}
