package service

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes — предел bcrypt: длиннее 72 байт пароль не хэшируется.
const MaxPasswordBytes = 72

// hashPassword хэширует пароль с помощью bcrypt; соль новая при каждом вызове.
func hashPassword(password string, cost int) (string, error) {
	const op = "service.password.hashPassword"

	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}

	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", fmt.Errorf("%s: %w", op, ErrPasswordTooLong)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(bytes), nil
}

// checkPassword сравнивает пароль с хэшем.
// Любая ошибка (включая битый хэш) — просто false.
func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
