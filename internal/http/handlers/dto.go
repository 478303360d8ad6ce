package handlers

import (
	"time"

	"github.com/pribylovaa/auth-tokens/internal/models"
)

// Запросы.

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest используется и для logout, и для refresh-tokens.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Password string `json:"password"`
}

// Ответы.

type UserResponse struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Role            string    `json:"role"`
	IsEmailVerified bool      `json:"is_email_verified"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type TokenResponse struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type TokensResponse struct {
	Access  TokenResponse `json:"access"`
	Refresh TokenResponse `json:"refresh"`
}

// AuthResponse — ответ register/login.
type AuthResponse struct {
	User   UserResponse   `json:"user"`
	Tokens TokensResponse `json:"tokens"`
}

// userFromModel не копирует PasswordHash: в DTO такого поля нет.
func userFromModel(u *models.User) UserResponse {
	if u == nil {
		return UserResponse{}
	}

	return UserResponse{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		Role:            string(u.Role),
		IsEmailVerified: u.IsEmailVerified,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

func tokensFromModel(t *models.AuthTokens) TokensResponse {
	if t == nil {
		return TokensResponse{}
	}

	return TokensResponse{
		Access:  TokenResponse{Token: t.Access.Token, Expires: t.Access.ExpiresAt},
		Refresh: TokenResponse{Token: t.Refresh.Token, Expires: t.Refresh.ExpiresAt},
	}
}
