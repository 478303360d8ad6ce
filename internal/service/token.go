package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pribylovaa/auth-tokens/internal/metrics"
	"github.com/pribylovaa/auth-tokens/internal/models"
	"github.com/pribylovaa/auth-tokens/internal/pkg/log"
	"github.com/pribylovaa/auth-tokens/internal/storage"
	"github.com/pribylovaa/auth-tokens/pkg/redact"
)

// GenerateAuthTokens выпускает пару токенов пользователю.
// Access-токен только подписывается; refresh-токен подписывается и сохраняется.
func (s *Service) GenerateAuthTokens(ctx context.Context, userID int64) (*models.AuthTokens, error) {
	const op = "service.token.GenerateAuthTokens"

	now := s.now().UTC()

	accessExp := truncSecond(now.Add(s.cfg.AccessTokenTTL))
	access, err := issueToken(s.secret(), userID, now, accessExp, models.TokenAccess)
	if err != nil {
		log.From(ctx).Error("access_token_sign_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	refresh, err := s.issuePersistent(ctx, userID, models.TokenRefresh, s.cfg.RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.AuthTokens{
		Access:  models.IssuedToken{Token: access, ExpiresAt: accessExp},
		Refresh: refresh,
	}, nil
}

// VerifyToken проверяет подпись, срок и тип токена, а для хранимых типов —
// наличие живой записи в хранилище по (hash, type, sub).
// Для access-токенов запись строится из payload (ID == 0), хранилище не трогается.
func (s *Service) VerifyToken(ctx context.Context, raw string, expected models.TokenType) (*models.Token, error) {
	const op = "service.token.VerifyToken"

	now := s.now().UTC()

	tok, err := s.verify(ctx, raw, expected, now)
	s.metrics.TokenVerified(string(expected), failureReason(err))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return tok, nil
}

func (s *Service) verify(ctx context.Context, raw string, expected models.TokenType, now time.Time) (*models.Token, error) {
	decoded, err := decodeToken(s.secret(), raw, now)
	if err != nil {
		return nil, err
	}

	if decoded.Type != expected {
		return nil, ErrTokenTypeMismatch
	}

	if !expected.Persistent() {
		return &models.Token{
			UserID:    decoded.UserID,
			Type:      decoded.Type,
			ExpiresAt: decoded.ExpiresAt,
			CreatedAt: decoded.IssuedAt,
		}, nil
	}

	rec, err := s.tokens.FindToken(ctx, storage.TokenFilter{
		TokenHash: hashToken(raw),
		Type:      expected,
		UserID:    decoded.UserID,
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrTokenNotFound
		}

		log.From(ctx).Error("token_lookup_failed",
			slog.String("op", "service.token.verify"),
			slog.String("type", string(expected)),
			slog.String("err", err.Error()),
		)
		return nil, err
	}

	// Запись могла истечь по часам сервера раньше, чем janitor её удалил.
	if !rec.IsLive(now) {
		return nil, ErrTokenNotFound
	}

	return rec, nil
}

// GenerateResetPasswordToken выпускает и сохраняет токен сброса пароля.
func (s *Service) GenerateResetPasswordToken(ctx context.Context, email string) (string, error) {
	const op = "service.token.GenerateResetPasswordToken"

	user, err := s.users.UserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.From(ctx).Warn("reset_user_not_found",
				slog.String("op", op),
				slog.String("email", redact.Email(email)),
			)
			return "", fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		return "", fmt.Errorf("%s: %w", op, err)
	}

	issued, err := s.issuePersistent(ctx, user.ID, models.TokenResetPassword, s.cfg.ResetTokenTTL)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return issued.Token, nil
}

// GenerateVerifyEmailToken выпускает и сохраняет токен подтверждения e-mail.
func (s *Service) GenerateVerifyEmailToken(ctx context.Context, userID int64) (string, error) {
	const op = "service.token.GenerateVerifyEmailToken"

	issued, err := s.issuePersistent(ctx, userID, models.TokenVerifyEmail, s.cfg.VerifyTokenTTL)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return issued.Token, nil
}

// issuePersistent подписывает токен и сохраняет его хэш.
// При коллизии хэша (ErrAlreadyExists) выпуск повторяется.
func (s *Service) issuePersistent(ctx context.Context, userID int64, typ models.TokenType, ttl time.Duration) (models.IssuedToken, error) {
	const (
		op          = "service.token.issuePersistent"
		maxAttempts = 5
	)

	lg := log.From(ctx)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		now := s.now().UTC()
		exp := truncSecond(now.Add(ttl))

		raw, err := issueToken(s.secret(), userID, now, exp, typ)
		if err != nil {
			lg.Error("token_sign_failed",
				slog.String("op", op),
				slog.String("type", string(typ)),
				slog.String("err", err.Error()),
			)
			return models.IssuedToken{}, fmt.Errorf("%s: %w", op, err)
		}

		_, err = s.tokens.SaveToken(ctx, &models.Token{
			TokenHash: hashToken(raw),
			UserID:    userID,
			Type:      typ,
			ExpiresAt: exp,
			CreatedAt: now,
		})
		if err != nil {
			if errors.Is(err, storage.ErrAlreadyExists) {
				// Редкая коллизия — пробуем выпустить заново.
				continue
			}

			lg.Error("token_save_failed",
				slog.String("op", op),
				slog.String("type", string(typ)),
				slog.String("err", err.Error()),
			)
			return models.IssuedToken{}, fmt.Errorf("%s: %w", op, err)
		}

		return models.IssuedToken{Token: raw, ExpiresAt: exp}, nil
	}

	lg.Error("token_collision_exceeded",
		slog.String("op", op),
		slog.String("type", string(typ)),
	)

	return models.IssuedToken{}, fmt.Errorf("%s: %w", op, ErrTokenCollision)
}

// hashToken — base64url(SHA-256) исходной строки токена.
func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// truncSecond — exp в payload хранится с точностью до секунды.
func truncSecond(t time.Time) time.Time {
	return t.Truncate(time.Second)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// failureReason — короткое имя причины отказа для логов и меток метрик.
func failureReason(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, ErrTokenTypeMismatch):
		return "type_mismatch"
	case errors.Is(err, ErrTokenNotFound):
		return "not_found"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	default:
		return "internal"
	}
}
