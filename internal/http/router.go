package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pribylovaa/auth-tokens/internal/access"
	"github.com/pribylovaa/auth-tokens/internal/http/handlers"
	"github.com/pribylovaa/auth-tokens/internal/http/middleware"
	"github.com/pribylovaa/auth-tokens/internal/metrics"
)

// Service — то, что роутер требует от сервисного слоя: сценарии для
// обработчиков и проверка токенов для AuthGate.
type Service interface {
	handlers.AuthService
	middleware.Authenticator
}

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger   *slog.Logger
	Timeout  time.Duration
	BasePath string // например, "/v1"; если пустой — роуты регистрируются на корне.

	// Grants — таблица роль -> capabilities; nil означает access.DefaultGrants().
	Grants *access.Grants
	// Metrics — коллекторы HTTP-метрик; nil отключает их.
	Metrics *metrics.Metrics
	// Gatherer обслуживает /metrics; nil — prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	// Ready проверяет готовность для /healthz; nil — всегда готов.
	Ready func(ctx context.Context) error
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
// Служебные /livez, /healthz, /metrics всегда на корне, вне BasePath.
func NewRouter(svc Service, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),             // безопасно ловим паники
		middleware.RequestID(),           // формируем/прокидываем X-Request-Id (до логирования!)
		middleware.Logging(opts.Logger),  // кладём request-scoped логгер в контекст и логируем
		middleware.Metrics(opts.Metrics), // счётчики по шаблону маршрута
	)
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout)) // общий дедлайн запроса
	}

	registerProbes(root, opts)

	h := handlers.New(svc)
	gate := middleware.NewAuthGate(svc, opts.Grants)

	if opts.BasePath != "" && opts.BasePath != "/" {
		sub := chi.NewRouter()
		registerRoutes(sub, h, gate)
		root.Mount(opts.BasePath, sub)
		return root
	}

	registerRoutes(root, h, gate)
	return root
}

// registerRoutes — единая точка регистрации всех REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers, gate *middleware.AuthGate) {
	// auth
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
	r.Post("/auth/logout", h.Logout)
	r.Post("/auth/refresh-tokens", h.RefreshTokens)
	r.Post("/auth/forgot-password", h.ForgotPassword)
	r.Post("/auth/reset-password", h.ResetPassword)
	r.Post("/auth/verify-email", h.VerifyEmail)
	r.With(gate.Require()).Post("/auth/logout-all", h.LogoutAll)
	r.With(gate.Require()).Post("/auth/send-verification-email", h.SendVerificationEmail)

	// users
	r.With(gate.Require(access.CapGetUsers)).Get("/users/{"+middleware.OwnerParam+"}", h.GetUser)
}

func registerProbes(r chi.Router, opts Options) {
	r.Get("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if opts.Ready == nil || opts.Ready(r.Context()) == nil {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}
		http.Error(w, "not ready", http.StatusServiceUnavailable)
	})

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}
