package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenType_Persistent(t *testing.T) {
	t.Parallel()

	require.False(t, TokenAccess.Persistent())
	require.True(t, TokenRefresh.Persistent())
	require.True(t, TokenResetPassword.Persistent())
	require.True(t, TokenVerifyEmail.Persistent())
	require.False(t, TokenType("bogus").Persistent())
}

func TestToken_IsLive(t *testing.T) {
	t.Parallel()

	now := time.Now()

	require.True(t, (&Token{ExpiresAt: now.Add(time.Minute)}).IsLive(now))
	require.False(t, (&Token{ExpiresAt: now}).IsLive(now), "expiry instant is not live")
	require.False(t, (&Token{ExpiresAt: now.Add(-time.Second)}).IsLive(now))
	require.False(t, (&Token{ExpiresAt: now.Add(time.Minute), Revoked: true}).IsLive(now))

	var nilTok *Token
	require.False(t, nilTok.IsLive(now))
}

func TestUser_Sanitized(t *testing.T) {
	t.Parallel()

	u := &User{ID: 1, Email: "a@b.c", PasswordHash: "hash", Role: RoleAdmin}
	s := u.Sanitized()

	require.Empty(t, s.PasswordHash)
	require.Equal(t, "hash", u.PasswordHash, "original must stay intact")
	require.Equal(t, u.ID, s.ID)
	require.Equal(t, u.Role, s.Role)

	var nilUser *User
	require.Nil(t, nilUser.Sanitized())
}

func TestRole_Valid(t *testing.T) {
	t.Parallel()

	require.True(t, RoleUser.Valid())
	require.True(t, RoleAdmin.Valid())
	require.False(t, Role("root").Valid())
}
