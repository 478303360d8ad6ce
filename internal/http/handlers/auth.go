package handlers

import (
	"net/http"

	apierrors "github.com/pribylovaa/auth-tokens/internal/errors"
	"github.com/pribylovaa/auth-tokens/internal/http/middleware"
)

// Register — POST /auth/register: создаёт пользователя и сразу выдаёт пару токенов.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in RegisterRequest
	if err := decodeValid(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	user, err := h.Auth.RegisterUser(r.Context(), in.Name, in.Email, in.Password)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	tokens, err := h.Auth.GenerateAuthTokens(r.Context(), user.ID)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{User: userFromModel(user), Tokens: tokensFromModel(tokens)})
}

// Login — POST /auth/login.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in LoginRequest
	if err := decodeValid(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	user, err := h.Auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	tokens, err := h.Auth.GenerateAuthTokens(r.Context(), user.ID)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{User: userFromModel(user), Tokens: tokensFromModel(tokens)})
}

// Logout — POST /auth/logout.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	var in RefreshRequest
	if err := decodeValid(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if err := h.Auth.Logout(r.Context(), in.RefreshToken); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll — POST /auth/logout-all (за AuthGate): отзывает все refresh-токены пользователя.
func (h *Handlers) LogoutAll(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, apierrors.ErrUnauthenticated)
		return
	}

	if _, err := h.Auth.LogoutAll(r.Context(), user.ID); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RefreshTokens — POST /auth/refresh-tokens.
func (h *Handlers) RefreshTokens(w http.ResponseWriter, r *http.Request) {
	var in RefreshRequest
	if err := decodeValid(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	tokens, err := h.Auth.RefreshAuth(r.Context(), in.RefreshToken)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokensFromModel(tokens))
}

// ForgotPassword — POST /auth/forgot-password. Токен уходит письмом, в ответе его нет.
func (h *Handlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in ForgotPasswordRequest
	if err := decodeValid(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if _, err := h.Auth.RequestPasswordReset(r.Context(), in.Email); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ResetPassword — POST /auth/reset-password?token=...
func (h *Handlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if err := validateToken("token", token); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	var in ResetPasswordRequest
	if err := decodeValid(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if err := h.Auth.ResetPassword(r.Context(), token, in.Password); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SendVerificationEmail — POST /auth/send-verification-email (за AuthGate).
func (h *Handlers) SendVerificationEmail(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, apierrors.ErrUnauthenticated)
		return
	}

	if _, err := h.Auth.RequestEmailVerification(r.Context(), user.ID); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// VerifyEmail — POST /auth/verify-email?token=...
func (h *Handlers) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if err := validateToken("token", token); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if err := h.Auth.VerifyEmail(r.Context(), token); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
