package storage

//go:generate mockgen -destination=../../mocks/storage_mock.go -package=mocks github.com/pribylovaa/auth-tokens/internal/storage UserStorage,TokenStorage

import (
	"context"
	"errors"
	"time"

	"github.com/pribylovaa/auth-tokens/internal/models"
)

var (
	// ErrNotFound — запись не найдена (пользователь/токен).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (email/хэш токена).
	ErrAlreadyExists = errors.New("already exists")
	// ErrEmptyFilter — удаление без единого условия запрещено.
	ErrEmptyFilter = errors.New("empty filter")
)

// TokenFilter — условия отбора записей токенов.
// Нулевое значение поля означает «без ограничения по полю».
type TokenFilter struct {
	// TokenHash — base64url(SHA-256) исходной строки токена.
	TokenHash string
	Type      models.TokenType
	UserID    int64
}

// Empty сообщает, что ни одно условие не задано.
func (f TokenFilter) Empty() bool {
	return f.TokenHash == "" && f.Type == "" && f.UserID == 0
}

// UserStorage выполняет операции над пользователями.
type UserStorage interface {
	// SaveUser создает нового пользователя и заполняет user.ID.
	SaveUser(ctx context.Context, user *models.User) error
	// UserByEmail находит пользователя по email.
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id int64) (*models.User, error)
	// UpdatePasswordHash заменяет хэш пароля пользователя.
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
	// SetEmailVerified отмечает e-mail пользователя подтверждённым.
	SetEmailVerified(ctx context.Context, id int64) error
}

// TokenStorage выполняет операции над записями токенов.
type TokenStorage interface {
	// SaveToken сохраняет запись и возвращает её идентификатор.
	SaveToken(ctx context.Context, token *models.Token) (int64, error)
	// FindToken возвращает первую неотозванную запись, удовлетворяющую фильтру.
	FindToken(ctx context.Context, filter TokenFilter) (*models.Token, error)
	// DeleteToken удаляет запись по идентификатору; ErrNotFound, если записи уже нет.
	DeleteToken(ctx context.Context, id int64) error
	// DeleteTokens удаляет все записи по фильтру и возвращает их количество.
	DeleteTokens(ctx context.Context, filter TokenFilter) (int64, error)
	// DeleteExpiredTokens удаляет все просроченные записи.
	DeleteExpiredTokens(ctx context.Context, now time.Time) error
	Close()
}
