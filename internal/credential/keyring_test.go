package credential

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyring_RoundTrip(t *testing.T) {
	k := NewMemory()

	_, err := k.Get("token")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, k.Set("token", "secret"))
	got, err := k.Get("token")
	require.NoError(t, err)
	assert.Equal(t, "secret", got)

	require.NoError(t, k.Set("token", "rotated"))
	got, err = k.Get("token")
	require.NoError(t, err)
	assert.Equal(t, "rotated", got)

	require.NoError(t, k.Delete("token"))
	_, err = k.Get("token")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestKeyring_DeleteMissing(t *testing.T) {
	assert.NoError(t, NewMemory().Delete("absent"))
}
