// notify — исходящие уведомления пользователям (письма сброса пароля и
// подтверждения e-mail). Транспорт писем в сервис не входит: LogSender
// только собирает ссылку и пишет событие в лог.
package notify

//go:generate mockgen -destination=../../mocks/sender_mock.go -package=mocks github.com/pribylovaa/auth-tokens/internal/notify Sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/pribylovaa/auth-tokens/internal/pkg/log"
	"github.com/pribylovaa/auth-tokens/pkg/redact"
)

// ErrEmptyRecipient — адрес получателя не задан.
var ErrEmptyRecipient = errors.New("empty recipient")

// Sender доставляет пользователю одноразовые токены.
type Sender interface {
	// SendResetPassword отправляет ссылку сброса пароля.
	SendResetPassword(ctx context.Context, to, token string) error
	// SendVerifyEmail отправляет ссылку подтверждения e-mail.
	SendVerifyEmail(ctx context.Context, to, token string) error
}

// LogSender — Sender, который пишет ссылку в лог вместо отправки письма.
type LogSender struct {
	baseURL string
}

// NewLogSender: publicURL — внешний адрес API, basePath — префикс маршрутов (например, /v1).
func NewLogSender(publicURL, basePath string) *LogSender {
	return &LogSender{
		baseURL: strings.TrimRight(publicURL, "/") + "/" + strings.Trim(basePath, "/"),
	}
}

// SendResetPassword пишет в лог ссылку сброса пароля.
func (s *LogSender) SendResetPassword(ctx context.Context, to, token string) error {
	const op = "notify.SendResetPassword"

	return s.send(ctx, op, "reset_password_email_sent", to, s.ResetPasswordURL(token))
}

// SendVerifyEmail пишет в лог ссылку подтверждения e-mail.
func (s *LogSender) SendVerifyEmail(ctx context.Context, to, token string) error {
	const op = "notify.SendVerifyEmail"

	return s.send(ctx, op, "verify_email_sent", to, s.VerifyEmailURL(token))
}

// ResetPasswordURL собирает ссылку для формы сброса пароля.
func (s *LogSender) ResetPasswordURL(token string) string {
	return s.baseURL + "/auth/reset-password?token=" + url.QueryEscape(token)
}

// VerifyEmailURL собирает ссылку подтверждения e-mail.
func (s *LogSender) VerifyEmailURL(token string) string {
	return s.baseURL + "/auth/verify-email?token=" + url.QueryEscape(token)
}

func (s *LogSender) send(ctx context.Context, op, event, to, link string) error {
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("%s: %w", op, ErrEmptyRecipient)
	}

	// На info — только отпечаток токена; полная ссылка — на debug.
	lg := log.From(ctx)
	lg.Info(event,
		slog.String("op", op),
		slog.String("to", redact.Email(to)),
		slog.String("token_fp", redact.Fingerprint(tokenOf(link))),
	)
	lg.Debug(event+"_link",
		slog.String("op", op),
		slog.String("link", link),
	)

	return nil
}

func tokenOf(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}

	return u.Query().Get("token")
}

var _ Sender = (*LogSender)(nil)
