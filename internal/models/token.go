package models

import "time"

// TokenType — назначение токена; зашивается в подписанный payload.
type TokenType string

const (
	TokenAccess        TokenType = "access"
	TokenRefresh       TokenType = "refresh"
	TokenResetPassword TokenType = "reset_password"
	TokenVerifyEmail   TokenType = "verify_email"
)

// Valid сообщает, известен ли тип токена.
func (t TokenType) Valid() bool {
	switch t {
	case TokenAccess, TokenRefresh, TokenResetPassword, TokenVerifyEmail:
		return true
	default:
		return false
	}
}

// Persistent сообщает, хранится ли токен этого типа в хранилище.
// Access-токены stateless: проверяются только подписью и сроком.
func (t TokenType) Persistent() bool {
	return t.Valid() && t != TokenAccess
}

// Token - запись о выданном токене (refresh/reset_password/verify_email).
//
// TokenHash — base64url(SHA-256) от исходной строки токена; сам токен
// на сервере не хранится. Для access-токенов запись строится на лету
// из payload и имеет ID == 0.
type Token struct {
	ID        int64
	TokenHash string
	UserID    int64
	Type      TokenType
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// IsLive - запись не отозвана и не истекла по часам сервера
// (независимо от срока, зашитого в подпись).
func (t *Token) IsLive(now time.Time) bool {
	return t != nil && !t.Revoked && now.Before(t.ExpiresAt)
}

// IssuedToken — выданный клиенту токен и момент его истечения.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// AuthTokens — пара токенов, выдаваемая при входе/обновлении.
//   - Access — короткоживущий токен для авторизации запросов, не хранится;
//   - Refresh — одноразовый токен для выпуска новой пары, хранится в хранилище.
type AuthTokens struct {
	Access  IssuedToken
	Refresh IssuedToken
}
