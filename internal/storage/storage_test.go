package storage

import (
	"testing"

	"github.com/pribylovaa/auth-tokens/internal/models"
	"github.com/stretchr/testify/require"
)

func TestTokenFilter_Empty(t *testing.T) {
	t.Parallel()

	require.True(t, TokenFilter{}.Empty())
	require.False(t, TokenFilter{TokenHash: "h"}.Empty())
	require.False(t, TokenFilter{Type: models.TokenRefresh}.Empty())
	require.False(t, TokenFilter{UserID: 1}.Empty())
}
