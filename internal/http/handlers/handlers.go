package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apierrors "github.com/pribylovaa/auth-tokens/internal/errors"
	"github.com/pribylovaa/auth-tokens/internal/models"
)

// AuthService — сценарии, которые обслуживает HTTP-слой.
// *service.Service удовлетворяет интерфейсу.
type AuthService interface {
	RegisterUser(ctx context.Context, name, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*models.User, error)
	GenerateAuthTokens(ctx context.Context, userID int64) (*models.AuthTokens, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, userID int64) (int64, error)
	RefreshAuth(ctx context.Context, refreshToken string) (*models.AuthTokens, error)
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, resetToken, newPassword string) error
	RequestEmailVerification(ctx context.Context, userID int64) (string, error)
	VerifyEmail(ctx context.Context, verifyToken string) error
	UserByID(ctx context.Context, id int64) (*models.User, error)
}

// Handlers агрегирует зависимости REST-обработчиков.
type Handlers struct {
	Auth AuthService
}

func New(svc AuthService) *Handlers {
	return &Handlers{Auth: svc}
}

// maxBodyBytes — предел тела запроса; запросы подсистемы — несколько полей.
const maxBodyBytes = 1 << 16

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля и хвост после объекта.
func decodeStrict(w http.ResponseWriter, r *http.Request, value any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(value); err != nil {
		return fmt.Errorf("%w: %v", apierrors.ErrInvalidArgument, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("%w: trailing data", apierrors.ErrInvalidArgument)
	}

	return nil
}

// decodeValid декодирует тело и проверяет его Validate().
func decodeValid(w http.ResponseWriter, r *http.Request, value validator) error {
	if err := decodeStrict(w, r, value); err != nil {
		return err
	}
	return value.Validate()
}
