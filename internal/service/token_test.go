package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/auth-tokens/internal/metrics"
	"github.com/pribylovaa/auth-tokens/internal/models"
	"github.com/pribylovaa/auth-tokens/internal/storage"
)

func TestGenerateAuthTokens_AndVerify_OK(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.svc.GenerateAuthTokens(ctx, 7)
	require.NoError(t, err)
	require.NotEmpty(t, pair.Access.Token)
	require.NotEmpty(t, pair.Refresh.Token)
	require.Equal(t, f.clock.Now().Add(30*time.Minute), pair.Access.ExpiresAt)
	require.Equal(t, f.clock.Now().Add(30*24*time.Hour), pair.Refresh.ExpiresAt)

	// access-токен не сохраняется, refresh — сохраняется.
	require.Equal(t, 0, f.tokens.count(7, models.TokenAccess))
	require.Equal(t, 1, f.tokens.count(7, models.TokenRefresh))

	acc, err := f.svc.VerifyToken(ctx, pair.Access.Token, models.TokenAccess)
	require.NoError(t, err)
	require.Equal(t, int64(7), acc.UserID)
	require.Zero(t, acc.ID)

	ref, err := f.svc.VerifyToken(ctx, pair.Refresh.Token, models.TokenRefresh)
	require.NoError(t, err)
	require.Equal(t, int64(7), ref.UserID)
	require.NotZero(t, ref.ID)
	require.Equal(t, hashToken(pair.Refresh.Token), ref.TokenHash)
}

func TestVerifyToken_RoundTripAllPersistentTypes(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	f.users.EXPECT().UserByEmail(gomock.Any(), "a@example.com").
		Return(&models.User{ID: 3, Email: "a@example.com"}, nil)

	reset, err := f.svc.GenerateResetPasswordToken(ctx, " A@Example.com ")
	require.NoError(t, err)
	verify, err := f.svc.GenerateVerifyEmailToken(ctx, 3)
	require.NoError(t, err)

	rec, err := f.svc.VerifyToken(ctx, reset, models.TokenResetPassword)
	require.NoError(t, err)
	require.Equal(t, int64(3), rec.UserID)

	rec, err = f.svc.VerifyToken(ctx, verify, models.TokenVerifyEmail)
	require.NoError(t, err)
	require.Equal(t, int64(3), rec.UserID)
}

func TestVerifyToken_AccessSkipsStore(t *testing.T) {
	t.Parallel()

	svc, _, tokens := newMockedService(t)
	ctx := context.Background()

	now := time.Now()
	raw, err := issueToken(svc.secret(), 5, now, now.Add(time.Minute), models.TokenAccess)
	require.NoError(t, err)

	// ни одного вызова хранилища не ожидается.
	tokens.EXPECT().FindToken(gomock.Any(), gomock.Any()).Times(0)

	rec, err := svc.VerifyToken(ctx, raw, models.TokenAccess)
	require.NoError(t, err)
	require.Equal(t, int64(5), rec.UserID)
	require.Equal(t, models.TokenAccess, rec.Type)
}

func TestVerifyToken_TypeMismatch(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.svc.GenerateAuthTokens(ctx, 1)
	require.NoError(t, err)

	_, err = f.svc.VerifyToken(ctx, pair.Access.Token, models.TokenRefresh)
	require.ErrorIs(t, err, ErrTokenTypeMismatch)

	_, err = f.svc.VerifyToken(ctx, pair.Refresh.Token, models.TokenAccess)
	require.ErrorIs(t, err, ErrTokenTypeMismatch)

	_, err = f.svc.VerifyToken(ctx, pair.Refresh.Token, models.TokenResetPassword)
	require.ErrorIs(t, err, ErrTokenTypeMismatch)
}

func TestVerifyToken_ExpiredRegardlessOfStore(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	verify, err := f.svc.GenerateVerifyEmailToken(ctx, 1)
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)

	_, err = f.svc.VerifyToken(ctx, verify, models.TokenVerifyEmail)
	require.ErrorIs(t, err, ErrTokenExpired)
	require.Equal(t, 1, f.tokens.count(1, models.TokenVerifyEmail), "record still present")
}

func TestVerifyToken_DeletedRecordFailsBeforeExpiry(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.svc.GenerateAuthTokens(ctx, 9)
	require.NoError(t, err)

	n, err := f.tokens.DeleteTokens(ctx, storage.TokenFilter{UserID: 9})
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = f.svc.VerifyToken(ctx, pair.Refresh.Token, models.TokenRefresh)
	require.ErrorIs(t, err, ErrTokenNotFound)
}

func TestVerifyToken_StoreRecordNotLive(t *testing.T) {
	t.Parallel()

	svc, _, tokens := newMockedService(t)
	ctx := context.Background()

	now := time.Now()
	raw, err := issueToken(svc.secret(), 5, now, now.Add(time.Hour), models.TokenRefresh)
	require.NoError(t, err)

	tokens.EXPECT().FindToken(gomock.Any(), storage.TokenFilter{
		TokenHash: hashToken(raw), Type: models.TokenRefresh, UserID: 5,
	}).Return(&models.Token{ID: 1, UserID: 5, Type: models.TokenRefresh, ExpiresAt: now.Add(-time.Second)}, nil)

	_, err = svc.VerifyToken(ctx, raw, models.TokenRefresh)
	require.ErrorIs(t, err, ErrTokenNotFound)
}

func TestVerifyToken_StoreErrorPropagated(t *testing.T) {
	t.Parallel()

	svc, _, tokens := newMockedService(t)

	now := time.Now()
	raw, err := issueToken(svc.secret(), 5, now, now.Add(time.Hour), models.TokenRefresh)
	require.NoError(t, err)

	boom := errors.New("db down")
	tokens.EXPECT().FindToken(gomock.Any(), gomock.Any()).Return(nil, boom)

	_, err = svc.VerifyToken(context.Background(), raw, models.TokenRefresh)
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, ErrTokenNotFound)
}

func TestVerifyToken_CodecErrorsDistinguishable(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	pair, err := f.svc.GenerateAuthTokens(ctx, 1)
	require.NoError(t, err)

	_, err = f.svc.VerifyToken(ctx, "garbage", models.TokenAccess)
	require.ErrorIs(t, err, ErrTokenMalformed)

	cfg := testAuthCfg()
	cfg.JWTSecret = "other"
	other := New(f.users, f.tokens, cfg)
	other.SetClock(f.clock.Now)
	_, err = other.VerifyToken(ctx, pair.Access.Token, models.TokenAccess)
	require.ErrorIs(t, err, ErrInvalidSignature)

	f.clock.Advance(31 * time.Minute)
	_, err = f.svc.VerifyToken(ctx, pair.Access.Token, models.TokenAccess)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestGenerateResetPasswordToken_UserNotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	f.users.EXPECT().UserByEmail(gomock.Any(), "ghost@example.com").Return(nil, storage.ErrNotFound)

	_, err := f.svc.GenerateResetPasswordToken(context.Background(), "ghost@example.com")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestIssuePersistent_RetriesOnCollision(t *testing.T) {
	t.Parallel()

	svc, _, tokens := newMockedService(t)

	gomock.InOrder(
		tokens.EXPECT().SaveToken(gomock.Any(), gomock.Any()).Return(int64(0), storage.ErrAlreadyExists),
		tokens.EXPECT().SaveToken(gomock.Any(), gomock.Any()).Return(int64(11), nil),
	)

	tok, err := svc.GenerateVerifyEmailToken(context.Background(), 1)
	require.NoError(t, err)
	require.NotEmpty(t, tok)
}

func TestIssuePersistent_CollisionExceeded(t *testing.T) {
	t.Parallel()

	svc, _, tokens := newMockedService(t)

	tokens.EXPECT().SaveToken(gomock.Any(), gomock.Any()).
		Return(int64(0), storage.ErrAlreadyExists).Times(5)

	_, err := svc.GenerateAuthTokens(context.Background(), 1)
	require.ErrorIs(t, err, ErrTokenCollision)
}

func TestIssuePersistent_SaveErrorPropagated(t *testing.T) {
	t.Parallel()

	svc, _, tokens := newMockedService(t)

	boom := errors.New("db down")
	tokens.EXPECT().SaveToken(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, tok *models.Token) (int64, error) {
			require.Equal(t, models.TokenResetPassword, tok.Type)
			require.Len(t, tok.TokenHash, 43, "base64url sha256 without padding")
			return 0, boom
		})

	_, err := svc.issuePersistent(context.Background(), 1, models.TokenResetPassword, time.Minute)
	require.ErrorIs(t, err, boom)
}

func TestVerifyToken_Metrics(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	reg := prometheus.NewRegistry()
	f.svc.SetMetrics(metrics.New(reg))

	ctx := context.Background()
	pair, err := f.svc.GenerateAuthTokens(ctx, 1)
	require.NoError(t, err)

	_, _ = f.svc.VerifyToken(ctx, pair.Access.Token, models.TokenAccess)
	_, _ = f.svc.VerifyToken(ctx, "garbage", models.TokenAccess)

	_, _ = f.svc.VerifyToken(ctx, "garbage", models.TokenAccess)

	// две серии: access/ok и access/malformed.
	n, err := testutil.GatherAndCount(reg, "auth_token_verifications_total")
	require.NoError(t, err)
	require.Equal(t, 2, n)
}
