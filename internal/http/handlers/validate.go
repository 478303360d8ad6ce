package handlers

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"

	apierrors "github.com/pribylovaa/auth-tokens/internal/errors"
	"github.com/pribylovaa/auth-tokens/internal/service"
)

// minPasswordLen — минимальная длина пароля.
const minPasswordLen = 8

type validator interface {
	Validate() error
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apierrors.ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func validateEmail(email string) error {
	if email == "" {
		return invalid("email is required")
	}

	addr, err := mail.ParseAddress(email)
	// Отсекаем формы вида "Name <a@b>": ожидается голый адрес.
	if err != nil || addr.Address != email {
		return invalid("email is invalid")
	}

	return nil
}

// validatePassword: не короче minPasswordLen символов, не длиннее
// service.MaxPasswordBytes байт, хотя бы одна буква и одна цифра.
func validatePassword(pw string) error {
	if len([]rune(pw)) < minPasswordLen {
		return invalid("password must be at least %d characters", minPasswordLen)
	}
	if len(pw) > service.MaxPasswordBytes {
		return invalid("password must be at most %d bytes", service.MaxPasswordBytes)
	}

	var letter, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter || !digit {
		return invalid("password must contain at least 1 letter and 1 number")
	}

	return nil
}

func validateToken(name, token string) error {
	if strings.TrimSpace(token) == "" {
		return invalid("%s is required", name)
	}
	return nil
}

func (r *RegisterRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return invalid("name is required")
	}
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	return validatePassword(r.Password)
}

func (r *LoginRequest) Validate() error {
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	if r.Password == "" {
		return invalid("password is required")
	}
	return nil
}

func (r *RefreshRequest) Validate() error {
	return validateToken("refreshToken", r.RefreshToken)
}

func (r *ForgotPasswordRequest) Validate() error {
	return validateEmail(r.Email)
}

func (r *ResetPasswordRequest) Validate() error {
	return validatePassword(r.Password)
}
