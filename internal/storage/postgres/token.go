package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pribylovaa/auth-tokens/internal/models"
	"github.com/pribylovaa/auth-tokens/internal/storage"
)

// SaveToken сохраняет запись токена и возвращает её ID.
func (s *Storage) SaveToken(ctx context.Context, token *models.Token) (int64, error) {
	const op = "storage.postgres.SaveToken"

	query := `
		INSERT INTO tokens(token_hash, user_id, type, expires_at, revoked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	createdAt := token.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var id int64
	err := s.db.QueryRow(ctx, query,
		token.TokenHash,
		token.UserID,
		token.Type,
		token.ExpiresAt,
		token.Revoked,
		createdAt,
	).Scan(&id)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.UniqueViolation:
				return 0, fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
			case pgerrcode.ForeignKeyViolation:
				return 0, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
			}
		}

		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

// FindToken возвращает первую неотозванную запись, удовлетворяющую фильтру.
func (s *Storage) FindToken(ctx context.Context, filter storage.TokenFilter) (*models.Token, error) {
	const op = "storage.postgres.FindToken"

	where, args := buildWhere(filter)
	if where == "" {
		where = " WHERE revoked = FALSE"
	} else {
		where += " AND revoked = FALSE"
	}

	query := `
		SELECT id, token_hash, user_id, type, expires_at, revoked, created_at
		FROM tokens` + where + `
		ORDER BY id
		LIMIT 1
	`

	var token models.Token
	err := s.db.QueryRow(ctx, query, args...).Scan(
		&token.ID,
		&token.TokenHash,
		&token.UserID,
		&token.Type,
		&token.ExpiresAt,
		&token.Revoked,
		&token.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &token, nil
}

// DeleteToken удаляет запись по ID. Если записи уже нет, возвращает ErrNotFound:
// так проигравший в гонке за одноразовый токен узнаёт о проигрыше.
func (s *Storage) DeleteToken(ctx context.Context, id int64) error {
	const op = "storage.postgres.DeleteToken"

	cmdTag, err := s.db.Exec(ctx, `DELETE FROM tokens WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// DeleteTokens удаляет все записи по фильтру и возвращает их число.
func (s *Storage) DeleteTokens(ctx context.Context, filter storage.TokenFilter) (int64, error) {
	const op = "storage.postgres.DeleteTokens"

	if filter.Empty() {
		return 0, fmt.Errorf("%s: %w", op, storage.ErrEmptyFilter)
	}

	where, args := buildWhere(filter)

	cmdTag, err := s.db.Exec(ctx, `DELETE FROM tokens`+where, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return cmdTag.RowsAffected(), nil
}

// DeleteExpiredTokens удаляет все просроченные токены.
func (s *Storage) DeleteExpiredTokens(ctx context.Context, now time.Time) error {
	const op = "storage.postgres.DeleteExpiredTokens"

	query := `
		DELETE FROM tokens
		WHERE expires_at <= $1
	`

	_, err := s.db.Exec(ctx, query, now)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// buildWhere собирает WHERE из непустых полей фильтра.
func buildWhere(f storage.TokenFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)

	add := func(col string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if f.TokenHash != "" {
		add("token_hash", f.TokenHash)
	}
	if f.Type != "" {
		add("type", f.Type)
	}
	if f.UserID != 0 {
		add("user_id", f.UserID)
	}

	if len(conds) == 0 {
		return "", nil
	}

	return " WHERE " + strings.Join(conds, " AND "), args
}
