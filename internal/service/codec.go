package service

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pribylovaa/auth-tokens/internal/models"
)

// tokenClaims — payload подписанного токена: sub, iat, exp, type и jti.
// jti делает строку токена уникальной даже при выпуске в одну секунду.
type tokenClaims struct {
	Type models.TokenType `json:"type"`
	jwt.RegisteredClaims
}

// decodedToken — проверенное содержимое токена.
type decodedToken struct {
	UserID    int64
	Type      models.TokenType
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// issueToken подписывает токен HS256.
func issueToken(secret []byte, userID int64, issuedAt, expiresAt time.Time, typ models.TokenType) (string, error) {
	const op = "service.codec.issueToken"

	claims := tokenClaims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// decodeToken проверяет подпись и срок относительно now.
// Ошибки: ErrInvalidSignature, ErrTokenExpired, ErrTokenMalformed.
func decodeToken(secret []byte, raw string, now time.Time) (*decodedToken, error) {
	const op = "service.codec.decodeToken"

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	var claims tokenClaims
	_, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidSignature)
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
		default:
			return nil, fmt.Errorf("%s: %w", op, ErrTokenMalformed)
		}
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrTokenMalformed)
	}

	if !claims.Type.Valid() {
		return nil, fmt.Errorf("%s: %w", op, ErrTokenMalformed)
	}

	out := &decodedToken{
		UserID:    userID,
		Type:      claims.Type,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}

	return out, nil
}
