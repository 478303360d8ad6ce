// errors стандартизирует ответы об ошибках HTTP-слоя.
// На вход принимает доменную ошибку (service/middleware), на выход даёт:
//   - корректный HTTP-статус;
//   - краткое безопасное message без утечки деталей.
//
// Причины отказа аутентификации (подпись, срок, отзыв, тип) наружу не
// различаются: все они — 401 "please authenticate".
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/pribylovaa/auth-tokens/internal/service"
)

// Нестандартный код часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

// Ошибки HTTP-слоя.
var (
	// ErrUnauthenticated — нет/битый bearer-токен или пользователь не найден.
	ErrUnauthenticated = stderrors.New("unauthenticated")
	// ErrForbidden — личность подтверждена, но прав недостаточно.
	ErrForbidden = stderrors.New("forbidden")
	// ErrInvalidArgument — тело/параметры запроса не прошли валидацию.
	ErrInvalidArgument = stderrors.New("invalid argument")
)

// APIError — единый формат для фронта.
// Code — короткий стабильный код для машиночитаемой обработки на FE.
// Message — безопасное человекочитаемое описание.
// RequestID — прокидывается из X-Request-Id, если есть (для трассировки).
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ToHTTP конвертирует доменную ошибку в HTTP-статус и унифицированный ответ.
//
// Поведение:
//   - err == nil - это программная ошибка вызова: возвращаем 500/internal,
//     чтобы не послать "200 OK" с телом ошибки и не маскировать баг.
//   - неизвестная ошибка - 500/internal (без утечки деталей).
func ToHTTP(err error) (int, ErrorResponse) {
	status, code, msg := classify(err)

	return status, ErrorResponse{
		Error: APIError{
			Code:    code,
			Message: msg,
		},
	}
}

// WriteError — хелпер для HTTP-хендлеров.
// Пишет корректный статус/тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// classify — таблица доменная ошибка -> HTTP/FE-код/сообщение:
//   - InvalidArgument, PasswordTooLong -> 400
//   - Unauthenticated, AuthenticationFailed, ResetFailed, VerificationFailed -> 401
//   - Forbidden -> 403
//   - NotFound, UserNotFound -> 404
//   - EmailTaken -> 409
//   - context.Canceled -> 499
//   - context.DeadlineExceeded -> 504
//   - прочее -> 500/internal
func classify(err error) (int, string, string) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, "internal", "internal error"
	case stderrors.Is(err, ErrInvalidArgument),
		stderrors.Is(err, service.ErrPasswordTooLong):
		return http.StatusBadRequest, "invalid_argument", "invalid argument"
	case stderrors.Is(err, ErrUnauthenticated),
		stderrors.Is(err, service.ErrAuthenticationFailed),
		stderrors.Is(err, service.ErrResetFailed),
		stderrors.Is(err, service.ErrVerificationFailed):
		return http.StatusUnauthorized, "unauthenticated", "please authenticate"
	case stderrors.Is(err, ErrForbidden):
		return http.StatusForbidden, "forbidden", "forbidden"
	case stderrors.Is(err, service.ErrNotFound),
		stderrors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, "not_found", "not found"
	case stderrors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict, "already_exists", "email already taken"
	case stderrors.Is(err, context.Canceled):
		return StatusClientClosedRequest, "canceled", "canceled"
	case stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "deadline_exceeded", "deadline exceeded"
	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}
