package models

import "time"

// Role — роль пользователя, определяет набор прав (см. пакет access).
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid сообщает, известна ли роль системе.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// User - модель пользователя в системе.
// Записи принадлежат хранилищу пользователей; подсистема аутентификации
// меняет только PasswordHash (сброс пароля) и IsEmailVerified (подтверждение e-mail).
type User struct {
	ID              int64
	Name            string
	Email           string
	PasswordHash    string
	Role            Role
	IsEmailVerified bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Sanitized возвращает копию пользователя без хэша пароля.
func (u *User) Sanitized() *User {
	if u == nil {
		return nil
	}

	cp := *u
	cp.PasswordHash = ""
	return &cp
}
