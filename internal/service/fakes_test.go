package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/auth-tokens/internal/config"
	"github.com/pribylovaa/auth-tokens/internal/models"
	"github.com/pribylovaa/auth-tokens/internal/storage"
	"github.com/pribylovaa/auth-tokens/mocks"
)

// memTokens — потокобезопасное in-memory хранилище токенов для сценарных тестов.
type memTokens struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]models.Token
}

func newMemTokens() *memTokens {
	return &memTokens{byID: make(map[int64]models.Token)}
}

func (m *memTokens) SaveToken(_ context.Context, t *models.Token) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.byID {
		if existing.TokenHash == t.TokenHash {
			return 0, storage.ErrAlreadyExists
		}
	}

	m.nextID++
	rec := *t
	rec.ID = m.nextID
	m.byID[rec.ID] = rec
	return rec.ID, nil
}

func (m *memTokens) FindToken(_ context.Context, f storage.TokenFilter) (*models.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range m.sorted() {
		if rec.Revoked || !m.match(rec, f) {
			continue
		}
		out := rec
		return &out, nil
	}

	return nil, storage.ErrNotFound
}

func (m *memTokens) DeleteToken(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memTokens) DeleteTokens(_ context.Context, f storage.TokenFilter) (int64, error) {
	if f.Empty() {
		return 0, storage.ErrEmptyFilter
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, rec := range m.byID {
		if m.match(rec, f) {
			delete(m.byID, id)
			n++
		}
	}
	return n, nil
}

func (m *memTokens) DeleteExpiredTokens(_ context.Context, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, rec := range m.byID {
		if !now.Before(rec.ExpiresAt) {
			delete(m.byID, id)
		}
	}
	return nil
}

func (m *memTokens) Close() {}

func (m *memTokens) count(userID int64, typ models.TokenType) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, rec := range m.byID {
		if rec.UserID == userID && rec.Type == typ {
			n++
		}
	}
	return n
}

func (m *memTokens) sorted() []models.Token {
	out := make([]models.Token, 0, len(m.byID))
	for _, rec := range m.byID {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memTokens) match(rec models.Token, f storage.TokenFilter) bool {
	return (f.TokenHash == "" || rec.TokenHash == f.TokenHash) &&
		(f.Type == "" || rec.Type == f.Type) &&
		(f.UserID == 0 || rec.UserID == f.UserID)
}

// fakeClock — управляемое время для проверок сроков.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testAuthCfg() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:       "unit-test-secret",
		AccessTokenTTL:  30 * time.Minute,
		RefreshTokenTTL: 30 * 24 * time.Hour,
		ResetTokenTTL:   10 * time.Minute,
		VerifyTokenTTL:  10 * time.Minute,
		PasswordCost:    4,
	}
}

type fixture struct {
	svc    *Service
	users  *mocks.MockUserStorage
	tokens *memTokens
	clock  *fakeClock
}

// newFixture — сервис с gomock-хранилищем пользователей и in-memory хранилищем токенов.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserStorage(ctrl)
	tokens := newMemTokens()
	clock := newFakeClock()

	svc := New(users, tokens, testAuthCfg())
	svc.SetClock(clock.Now)

	return &fixture{svc: svc, users: users, tokens: tokens, clock: clock}
}

// newMockedService — сервис, где оба хранилища — gomock.
func newMockedService(t *testing.T) (*Service, *mocks.MockUserStorage, *mocks.MockTokenStorage) {
	t.Helper()

	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserStorage(ctrl)
	tokens := mocks.NewMockTokenStorage(ctrl)

	return New(users, tokens, testAuthCfg()), users, tokens
}

func mustHashPW(t *testing.T, pw string) string {
	t.Helper()
	h, err := hashPassword(pw, 4)
	require.NoError(t, err)
	return h
}

var _ storage.TokenStorage = (*memTokens)(nil)
