package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pribylovaa/auth-tokens/internal/metrics"
	"github.com/pribylovaa/auth-tokens/internal/models"
	"github.com/pribylovaa/auth-tokens/internal/pkg/log"
	"github.com/pribylovaa/auth-tokens/internal/storage"
	"github.com/pribylovaa/auth-tokens/pkg/redact"
)

// RegisterUser создаёт пользователя с ролью user и возвращает его без хэша пароля.
// Формат e-mail и сложность пароля проверяются на границе (handlers).
func (s *Service) RegisterUser(ctx context.Context, name, email, password string) (*models.User, error) {
	const op = "service.auth.RegisterUser"

	hash, err := hashPassword(password, s.cfg.PasswordCost)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user := &models.User{
		Name:         name,
		Email:        normalizeEmail(email),
		PasswordHash: hash,
		Role:         models.RoleUser,
	}

	if err := s.users.SaveUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}

		log.From(ctx).Error("register_save_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user.Sanitized(), nil
}

// Login проверяет пару email+пароль и возвращает пользователя без хэша пароля.
// Выпуск токенов — отдельный шаг (GenerateAuthTokens).
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, error) {
	const op = "service.auth.Login"

	lg := log.From(ctx)

	user, err := s.users.UserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.metrics.Login(metrics.ResultFailed)
			lg.Warn("login_failed",
				slog.String("op", op),
				slog.String("reason", "user_not_found"),
				slog.String("email", redact.Email(email)),
			)
			return nil, fmt.Errorf("%s: %w", op, ErrAuthenticationFailed)
		}

		lg.Error("login_lookup_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !checkPassword(user.PasswordHash, password) {
		s.metrics.Login(metrics.ResultFailed)
		lg.Warn("login_failed",
			slog.String("op", op),
			slog.String("reason", "password_mismatch"),
			slog.Int64("user_id", user.ID),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrAuthenticationFailed)
	}

	s.metrics.Login(metrics.ResultOK)

	return user.Sanitized(), nil
}

// Logout удаляет refresh-токен. Повторный выход тем же токеном — ErrNotFound.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	const op = "service.auth.Logout"

	rec, err := s.tokens.FindToken(ctx, storage.TokenFilter{
		TokenHash: hashToken(refreshToken),
		Type:      models.TokenRefresh,
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.tokens.DeleteToken(ctx, rec.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("logout",
		slog.String("op", op),
		slog.Int64("user_id", rec.UserID),
	)

	return nil
}

// LogoutAll удаляет все refresh-токены пользователя и возвращает их число.
func (s *Service) LogoutAll(ctx context.Context, userID int64) (int64, error) {
	const op = "service.auth.LogoutAll"

	n, err := s.tokens.DeleteTokens(ctx, storage.TokenFilter{UserID: userID, Type: models.TokenRefresh})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("logout_all",
		slog.String("op", op),
		slog.Int64("user_id", userID),
		slog.Int64("revoked", n),
	)

	return n, nil
}

// RefreshAuth ротирует refresh-токен: проверка → владелец → удаление
// использованной записи → новая пара. Любой сбой — ErrAuthenticationFailed;
// из конкурентных вызовов с одним токеном удаление удаётся ровно одному.
func (s *Service) RefreshAuth(ctx context.Context, refreshToken string) (*models.AuthTokens, error) {
	const op = "service.auth.RefreshAuth"

	pair, err := s.refresh(ctx, refreshToken)
	if err != nil {
		s.metrics.Rotation(metrics.ResultFailed)
		logCollapsed(ctx, op, "refresh_failed", err)
		return nil, fmt.Errorf("%s: %w", op, ErrAuthenticationFailed)
	}

	s.metrics.Rotation(metrics.ResultOK)

	return pair, nil
}

func (s *Service) refresh(ctx context.Context, refreshToken string) (*models.AuthTokens, error) {
	rec, err := s.VerifyToken(ctx, refreshToken, models.TokenRefresh)
	if err != nil {
		return nil, err
	}

	user, err := s.userByID(ctx, rec.UserID)
	if err != nil {
		return nil, err
	}

	if err := s.tokens.DeleteToken(ctx, rec.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	return s.GenerateAuthTokens(ctx, user.ID)
}

// RequestPasswordReset выпускает токен сброса и отправляет его пользователю.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	const op = "service.auth.RequestPasswordReset"

	token, err := s.GenerateResetPasswordToken(ctx, email)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if s.sender != nil {
		if err := s.sender.SendResetPassword(ctx, normalizeEmail(email), token); err != nil {
			log.From(ctx).Error("reset_notify_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
			return "", fmt.Errorf("%s: %w", op, err)
		}
	}

	return token, nil
}

// ResetPassword меняет пароль по токену сброса и удаляет ВСЕ токены сброса
// пользователя. Токен одноразовый: из конкурентных вызовов с ним проходит ровно один.
// Слишком длинный пароль — ErrPasswordTooLong (токен не расходуется),
// любой другой сбой — ErrResetFailed.
func (s *Service) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	const op = "service.auth.ResetPassword"

	if err := s.resetPassword(ctx, resetToken, newPassword); err != nil {
		if errors.Is(err, ErrPasswordTooLong) {
			return fmt.Errorf("%s: %w", op, ErrPasswordTooLong)
		}

		logCollapsed(ctx, op, "reset_password_failed", err)
		return fmt.Errorf("%s: %w", op, ErrResetFailed)
	}

	return nil
}

func (s *Service) resetPassword(ctx context.Context, resetToken, newPassword string) error {
	rec, err := s.VerifyToken(ctx, resetToken, models.TokenResetPassword)
	if err != nil {
		return err
	}

	user, err := s.userByID(ctx, rec.UserID)
	if err != nil {
		return err
	}

	hash, err := hashPassword(newPassword, s.cfg.PasswordCost)
	if err != nil {
		return err
	}

	// Удаление записи — захват токена; проигравший конкурент получает ErrNotFound.
	if err := s.tokens.DeleteToken(ctx, rec.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrTokenNotFound
		}
		return err
	}

	if err := s.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return err
	}

	_, err = s.tokens.DeleteTokens(ctx, storage.TokenFilter{UserID: user.ID, Type: models.TokenResetPassword})
	return err
}

// RequestEmailVerification выпускает токен подтверждения и отправляет его пользователю.
func (s *Service) RequestEmailVerification(ctx context.Context, userID int64) (string, error) {
	const op = "service.auth.RequestEmailVerification"

	user, err := s.userByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	token, err := s.GenerateVerifyEmailToken(ctx, user.ID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if s.sender != nil {
		if err := s.sender.SendVerifyEmail(ctx, user.Email, token); err != nil {
			log.From(ctx).Error("verify_notify_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
			return "", fmt.Errorf("%s: %w", op, err)
		}
	}

	return token, nil
}

// VerifyEmail отмечает e-mail подтверждённым и удаляет все токены
// подтверждения пользователя. Любой сбой — ErrVerificationFailed.
func (s *Service) VerifyEmail(ctx context.Context, verifyToken string) error {
	const op = "service.auth.VerifyEmail"

	if err := s.verifyEmail(ctx, verifyToken); err != nil {
		logCollapsed(ctx, op, "verify_email_failed", err)
		return fmt.Errorf("%s: %w", op, ErrVerificationFailed)
	}

	return nil
}

func (s *Service) verifyEmail(ctx context.Context, verifyToken string) error {
	rec, err := s.VerifyToken(ctx, verifyToken, models.TokenVerifyEmail)
	if err != nil {
		return err
	}

	user, err := s.userByID(ctx, rec.UserID)
	if err != nil {
		return err
	}

	if err := s.users.SetEmailVerified(ctx, user.ID); err != nil {
		return err
	}

	_, err = s.tokens.DeleteTokens(ctx, storage.TokenFilter{UserID: user.ID, Type: models.TokenVerifyEmail})
	return err
}

// UserByID возвращает пользователя без хэша пароля.
func (s *Service) UserByID(ctx context.Context, id int64) (*models.User, error) {
	const op = "service.auth.UserByID"

	user, err := s.userByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user.Sanitized(), nil
}

func (s *Service) userByID(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.users.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return user, nil
}

// logCollapsed пишет исходную причину ошибки, которая наружу уходит обобщённой.
// Ожидаемые отказы (токен/пользователь) — Warn, прочее — Error.
func logCollapsed(ctx context.Context, op, event string, cause error) {
	reason := failureReason(cause)

	lg := log.From(ctx)
	if reason == "internal" {
		lg.Error(event,
			slog.String("op", op),
			slog.String("reason", reason),
			slog.String("err", cause.Error()),
		)
		return
	}

	lg.Warn(event,
		slog.String("op", op),
		slog.String("reason", reason),
	)
}
