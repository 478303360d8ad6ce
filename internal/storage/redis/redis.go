// redis — альтернативное хранилище записей токенов на Redis.
//
// Раскладка ключей (prefix по умолчанию "auth:tok:"):
//
//	<prefix>seq           — счётчик идентификаторов (INCR);
//	<prefix>t:<id>        — Hash записи: h, uid, typ, exp, rev, crt; TTL до exp;
//	<prefix>h:<hash>      — id записи по хэшу токена (уникальность через SETNX); TTL до exp;
//	<prefix>u:<uid>       — Set идентификаторов записей пользователя.
//
// Истечение записей обеспечивает сам Redis; DeleteExpiredTokens только
// вычищает из пользовательских множеств ссылки на исчезнувшие записи.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pribylovaa/auth-tokens/internal/models"
	"github.com/pribylovaa/auth-tokens/internal/storage"
)

// DefaultPrefix — префикс ключей, если не задан явно.
const DefaultPrefix = "auth:tok:"

// minTTL — Redis не принимает нулевой/отрицательный TTL для SET.
const minTTL = time.Millisecond

// TokenStore — реализация storage.TokenStorage поверх Redis.
type TokenStore struct {
	rdb    redis.UniversalClient
	prefix string
	now    func() time.Time
}

// New создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Если prefix пустой — используется DefaultPrefix.
func New(ctx context.Context, redisURL, prefix string) (*TokenStore, error) {
	const op = "storage.redis.New"

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return NewWithClient(rdb, prefix), nil
}

// NewWithClient оборачивает готовый клиент.
func NewWithClient(rdb redis.UniversalClient, prefix string) *TokenStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	return &TokenStore{rdb: rdb, prefix: prefix, now: time.Now}
}

func (s *TokenStore) seqKey() string             { return s.prefix + "seq" }
func (s *TokenStore) recordKey(id int64) string  { return s.prefix + "t:" + strconv.FormatInt(id, 10) }
func (s *TokenStore) hashKey(hash string) string { return s.prefix + "h:" + hash }
func (s *TokenStore) userKey(uid int64) string   { return s.prefix + "u:" + strconv.FormatInt(uid, 10) }

// SaveToken сохраняет запись и возвращает её ID.
func (s *TokenStore) SaveToken(ctx context.Context, token *models.Token) (int64, error) {
	const op = "storage.redis.SaveToken"

	id, err := s.rdb.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	ttl := token.ExpiresAt.Sub(s.now())
	if ttl < minTTL {
		ttl = minTTL
	}

	ok, err := s.rdb.SetNX(ctx, s.hashKey(token.TokenHash), id, ttl).Result()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return 0, fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
	}

	createdAt := token.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now().UTC()
	}

	kv := map[string]string{
		"h":   token.TokenHash,
		"uid": strconv.FormatInt(token.UserID, 10),
		"typ": string(token.Type),
		"exp": strconv.FormatInt(token.ExpiresAt.UnixNano(), 10),
		"rev": boolTo01(token.Revoked),
		"crt": strconv.FormatInt(createdAt.UnixNano(), 10),
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, s.recordKey(id), kv)
	pipe.PExpire(ctx, s.recordKey(id), ttl)
	pipe.SAdd(ctx, s.userKey(token.UserID), id)

	if _, err := pipe.Exec(ctx); err != nil {
		_ = s.rdb.Del(ctx, s.hashKey(token.TokenHash)).Err()
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

// FindToken возвращает запись с наименьшим ID, удовлетворяющую фильтру.
func (s *TokenStore) FindToken(ctx context.Context, filter storage.TokenFilter) (*models.Token, error) {
	const op = "storage.redis.FindToken"

	found, err := s.match(ctx, s.rdb, filter, 1, true)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return found[0], nil
}

// DeleteToken удаляет запись по ID. Удаление выполняется в MULTI, и только
// один из конкурирующих вызовов увидит DEL == 1; остальные получают ErrNotFound.
func (s *TokenStore) DeleteToken(ctx context.Context, id int64) error {
	const op = "storage.redis.DeleteToken"

	tok, err := s.load(ctx, s.rdb, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	deleted, err := s.deleteRecord(ctx, tok)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !deleted {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// DeleteTokens удаляет все записи по фильтру и возвращает их число.
// Удаление выполняется одной транзакцией WATCH/MULTI: либо удаляются все
// найденные записи, либо (при конкурентном изменении) попытка повторяется.
func (s *TokenStore) DeleteTokens(ctx context.Context, filter storage.TokenFilter) (int64, error) {
	const (
		op         = "storage.redis.DeleteTokens"
		maxRetries = 5
	)

	if filter.Empty() {
		return 0, fmt.Errorf("%s: %w", op, storage.ErrEmptyFilter)
	}

	var watch []string
	switch {
	case filter.UserID != 0:
		watch = append(watch, s.userKey(filter.UserID))
	case filter.TokenHash != "":
		watch = append(watch, s.hashKey(filter.TokenHash))
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		var n int64

		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			found, err := s.match(ctx, tx, filter, 0, false)
			if err != nil {
				return err
			}
			if len(found) == 0 {
				return nil
			}

			keys := make([]string, 0, len(found))
			for _, tok := range found {
				keys = append(keys, s.recordKey(tok.ID))
			}
			if err := tx.Watch(ctx, keys...).Err(); err != nil {
				return err
			}

			dels := make([]*redis.IntCmd, 0, len(found))
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for _, tok := range found {
					dels = append(dels, pipe.Del(ctx, s.recordKey(tok.ID)))
					pipe.Del(ctx, s.hashKey(tok.TokenHash))
					pipe.SRem(ctx, s.userKey(tok.UserID), tok.ID)
				}
				return nil
			})
			if err != nil {
				return err
			}

			for _, d := range dels {
				n += d.Val()
			}
			return nil
		}, watch...)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}

		return n, nil
	}

	return 0, fmt.Errorf("%s: %w", op, redis.TxFailedErr)
}

// DeleteExpiredTokens убирает из пользовательских множеств ID исчезнувших записей.
func (s *TokenStore) DeleteExpiredTokens(ctx context.Context, _ time.Time) error {
	const op = "storage.redis.DeleteExpiredTokens"

	iter := s.rdb.Scan(ctx, 0, s.prefix+"u:*", 100).Iterator()
	for iter.Next(ctx) {
		userKey := iter.Val()

		members, err := s.rdb.SMembers(ctx, userKey).Result()
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		for _, m := range members {
			id, err := strconv.ParseInt(m, 10, 64)
			if err != nil {
				continue
			}

			exists, err := s.rdb.Exists(ctx, s.recordKey(id)).Result()
			if err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			if exists == 0 {
				if err := s.rdb.SRem(ctx, userKey, m).Err(); err != nil {
					return fmt.Errorf("%s: %w", op, err)
				}
			}
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Ping проверяет доступность Redis.
func (s *TokenStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close закрывает клиент Redis.
func (s *TokenStore) Close() {
	_ = s.rdb.Close()
}

// match собирает записи по фильтру в порядке возрастания ID.
// limit <= 0 — без ограничения; liveOnly пропускает отозванные записи.
func (s *TokenStore) match(ctx context.Context, c redis.Cmdable, f storage.TokenFilter, limit int, liveOnly bool) ([]*models.Token, error) {
	ids, err := s.candidates(ctx, c, f)
	if err != nil {
		return nil, err
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []*models.Token
	for _, id := range ids {
		tok, err := s.load(ctx, c, id)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		if !matches(tok, f) || (liveOnly && tok.Revoked) {
			continue
		}

		out = append(out, tok)
		if limit > 0 && len(out) >= limit {
			break
		}
	}

	return out, nil
}

// candidates сужает перебор по самому селективному индексу.
func (s *TokenStore) candidates(ctx context.Context, c redis.Cmdable, f storage.TokenFilter) ([]int64, error) {
	switch {
	case f.TokenHash != "":
		id, err := c.Get(ctx, s.hashKey(f.TokenHash)).Int64()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return []int64{id}, nil

	case f.UserID != 0:
		members, err := c.SMembers(ctx, s.userKey(f.UserID)).Result()
		if err != nil {
			return nil, err
		}
		return parseIDs(members), nil

	default:
		var ids []int64
		iter := c.Scan(ctx, 0, s.prefix+"t:*", 100).Iterator()
		for iter.Next(ctx) {
			raw := iter.Val()[len(s.prefix)+len("t:"):]
			if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
				ids = append(ids, id)
			}
		}
		return ids, iter.Err()
	}
}

// load читает запись по ID.
func (s *TokenStore) load(ctx context.Context, c redis.Cmdable, id int64) (*models.Token, error) {
	m, err := c.HGetAll(ctx, s.recordKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, storage.ErrNotFound
	}

	uid, err := strconv.ParseInt(m["uid"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt record %d: %w", id, err)
	}
	exp, err := strconv.ParseInt(m["exp"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt record %d: %w", id, err)
	}
	crt, _ := strconv.ParseInt(m["crt"], 10, 64)

	return &models.Token{
		ID:        id,
		TokenHash: m["h"],
		UserID:    uid,
		Type:      models.TokenType(m["typ"]),
		ExpiresAt: time.Unix(0, exp).UTC(),
		Revoked:   m["rev"] == "1",
		CreatedAt: time.Unix(0, crt).UTC(),
	}, nil
}

// deleteRecord атомарно удаляет запись и её индексы; true — удалил именно этот вызов.
func (s *TokenStore) deleteRecord(ctx context.Context, tok *models.Token) (bool, error) {
	pipe := s.rdb.TxPipeline()
	del := pipe.Del(ctx, s.recordKey(tok.ID))
	pipe.Del(ctx, s.hashKey(tok.TokenHash))
	pipe.SRem(ctx, s.userKey(tok.UserID), tok.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	return del.Val() == 1, nil
}

func matches(tok *models.Token, f storage.TokenFilter) bool {
	if f.TokenHash != "" && tok.TokenHash != f.TokenHash {
		return false
	}
	if f.Type != "" && tok.Type != f.Type {
		return false
	}
	if f.UserID != 0 && tok.UserID != f.UserID {
		return false
	}

	return true
}

func parseIDs(raw []string) []int64 {
	ids := make([]int64, 0, len(raw))
	for _, r := range raw {
		if id, err := strconv.ParseInt(r, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}

	return ids
}

func boolTo01(b bool) string {
	if b {
		return "1"
	}

	return "0"
}

// Проверка на соответствие интерфейсу TokenStorage.
var _ storage.TokenStorage = (*TokenStore)(nil)
