package crypto

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestSealerRoundTrip(t *testing.T) {
	key, err := ParseHexKey(testKeyHex)
	require.NoError(t, err)
	s, err := NewSealer(key)
	require.NoError(t, err)

	plaintext := []byte(`{"session_id":"abc"}`)
	sealed, err := s.Seal(plaintext)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(sealed, plaintext))

	again, err := s.Seal(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonces must differ")

	opened, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestSealerRejectsTampering(t *testing.T) {
	key, err := ParseHexKey(testKeyHex)
	require.NoError(t, err)
	s, err := NewSealer(key)
	require.NoError(t, err)

	sealed, err := s.Seal([]byte("payload"))
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff

	_, err = s.Open(sealed)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)

	_, err = s.Open([]byte{1, 2})
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestParseHexKey(t *testing.T) {
	_, err := ParseHexKey("not-hex")
	assert.Error(t, err)

	_, err = ParseHexKey(strings.Repeat("ab", 10))
	assert.ErrorIs(t, err, ErrInvalidKeySize)

	key, err := ParseHexKey(" " + strings.Repeat("ab", 16) + "\n")
	require.NoError(t, err)
	assert.Len(t, key, 16)
}
