// metrics содержит prometheus-коллекторы сервиса.
// Все методы безопасны для nil-получателя: компоненты, которым метрики
// не переданы, просто ничего не пишут.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Значения метки result.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

// Metrics — набор коллекторов сервиса.
type Metrics struct {
	tokenVerifications *prometheus.CounterVec
	logins             *prometheus.CounterVec
	rotations          *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

// New создаёт коллекторы и регистрирует их в reg.
// Для процесса обычно передаётся prometheus.DefaultRegisterer, в тестах — prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		tokenVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_token_verifications_total",
			Help: "Token verifications by token type and outcome.",
		}, []string{"type", "result"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Login attempts by outcome.",
		}, []string{"result"}),
		rotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_token_rotations_total",
			Help: "Refresh token rotations by outcome.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route pattern and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method and route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		m.tokenVerifications,
		m.logins,
		m.rotations,
		m.httpRequests,
		m.httpDuration,
	)

	return m
}

// TokenVerified учитывает результат проверки токена.
func (m *Metrics) TokenVerified(tokenType, result string) {
	if m == nil {
		return
	}
	m.tokenVerifications.WithLabelValues(tokenType, result).Inc()
}

// Login учитывает попытку входа.
func (m *Metrics) Login(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

// Rotation учитывает попытку ротации refresh-токена.
func (m *Metrics) Rotation(result string) {
	if m == nil {
		return
	}
	m.rotations.WithLabelValues(result).Inc()
}

// HTTPRequest учитывает завершённый HTTP-запрос.
func (m *Metrics) HTTPRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
