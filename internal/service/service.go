// service содержит бизнес-логику подсистемы аутентификации:
// проверку паролей, выпуск/проверку подписанных токенов, ротацию
// refresh-токенов и сценарии входа, выхода, сброса пароля и подтверждения e-mail.
//
// Основные аспекты:
//   - Service не хранит состояние запроса; экземпляр безопасен для конкурентного
//     использования при условии, что переданные хранилища потокобезопасны.
//   - Ошибки кодека (ErrInvalidSignature/ErrTokenExpired/ErrTokenMalformed) различимы
//     на уровне VerifyToken; сценарии Auth-уровня сворачивают их в одну внешнюю ошибку
//     (ErrAuthenticationFailed/ErrResetFailed/ErrVerificationFailed), а исходная
//     причина пишется в лог с атрибутом reason.
package service

import (
	"errors"
	"time"

	"github.com/pribylovaa/auth-tokens/internal/config"
	"github.com/pribylovaa/auth-tokens/internal/metrics"
	"github.com/pribylovaa/auth-tokens/internal/notify"
	"github.com/pribylovaa/auth-tokens/internal/storage"
)

// Ошибки кодека токенов.
var (
	// ErrInvalidSignature — подпись не сходится (или алгоритм не HS256).
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrTokenExpired — текущее время не раньше exp из payload.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenMalformed — структуру токена не удалось разобрать.
	ErrTokenMalformed = errors.New("malformed token")
)

// Ошибки сервиса токенов.
var (
	// ErrTokenTypeMismatch — тип в payload не совпадает с ожидаемым.
	ErrTokenTypeMismatch = errors.New("token type mismatch")
	// ErrTokenNotFound — живой записи токена в хранилище нет (отозван/использован).
	ErrTokenNotFound = errors.New("token not found")
	// ErrTokenCollision — исчерпаны попытки сохранить уникальный токен.
	// Транспорт: HTTP 500.
	ErrTokenCollision = errors.New("token collision")
)

// Внешние ошибки сценариев.
var (
	// ErrAuthenticationFailed — неверные учётные данные или непригодный refresh-токен.
	// Транспорт: HTTP 401 «please authenticate».
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrNotFound — refresh-токен для выхода не найден. Транспорт: HTTP 404.
	ErrNotFound = errors.New("not found")
	// ErrUserNotFound — пользователь не найден. Транспорт: HTTP 404.
	ErrUserNotFound = errors.New("user not found")
	// ErrResetFailed — сброс пароля не удался. Транспорт: HTTP 401.
	ErrResetFailed = errors.New("password reset failed")
	// ErrVerificationFailed — подтверждение e-mail не удалось. Транспорт: HTTP 401.
	ErrVerificationFailed = errors.New("email verification failed")
	// ErrEmailTaken — e-mail уже занят. Транспорт: HTTP 409.
	ErrEmailTaken = errors.New("email already taken")
	// ErrPasswordTooLong — пароль длиннее MaxPasswordBytes. Транспорт: HTTP 400.
	ErrPasswordTooLong = errors.New("password too long")
)

// Service описывает бизнес-логику подсистемы аутентификации.
type Service struct {
	users   storage.UserStorage
	tokens  storage.TokenStorage
	cfg     config.AuthConfig
	sender  notify.Sender    // может быть nil: письма не отправляются
	metrics *metrics.Metrics // может быть nil
	now     func() time.Time
}

// New создаёт новый экземпляр Service.
func New(users storage.UserStorage, tokens storage.TokenStorage, cfg config.AuthConfig) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		cfg:    cfg,
		now:    time.Now,
	}
}

// SetSender устанавливает отправителя уведомлений (опционально).
func (s *Service) SetSender(sender notify.Sender) {
	s.sender = sender
}

// SetMetrics устанавливает коллекторы метрик (опционально).
func (s *Service) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// SetClock подменяет источник времени (для тестов).
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) secret() []byte {
	return []byte(s.cfg.JWTSecret)
}
