package wallet

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/ruteri/quorum-wallet/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveSecret(t *testing.T) {
	secret, err := DeriveSecret(strings.Fields(testMnemonic))
	require.NoError(t, err)
	assert.Equal(t,
		"5eb00bbddcf069084889a8ab9155568165f5c453ccb85e70811aaed6f6da5fc19a5ac40b389cd370d086206dec8aa6c43daea6690f20ad3d8d48b2d2ce9e38e4",
		hex.EncodeToString(secret))

	// Case and surrounding whitespace are not significant.
	words := strings.Fields(strings.ToUpper(testMnemonic))
	words[0] = "  " + words[0] + " "
	again, err := DeriveSecret(words)
	require.NoError(t, err)
	assert.Equal(t, secret, again)
}

func TestDeriveSecretInvalid(t *testing.T) {
	tests := []struct {
		name  string
		words []string
	}{
		{"bad checksum", strings.Fields(strings.Repeat("abandon ", 12))},
		{"unknown word", strings.Fields("abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon zzzz")},
		{"too short", []string{"abandon", "about"}},
		{"empty", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DeriveSecret(tt.words)
			assert.ErrorIs(t, err, interfaces.ErrInvalidMnemonic)
		})
	}
}

func TestNewMnemonic(t *testing.T) {
	words, err := NewMnemonic()
	require.NoError(t, err)
	assert.Len(t, words, 24)

	_, err = DeriveSecret(words)
	assert.NoError(t, err)
}

func TestDeriveAddress(t *testing.T) {
	secret, err := DeriveSecret(strings.Fields(testMnemonic))
	require.NoError(t, err)

	address, err := DeriveAddress(secret)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(address, "0x"))
	assert.Len(t, address, 42)

	again, err := DeriveAddress(secret)
	require.NoError(t, err)
	assert.Equal(t, address, again)

	other, err := DeriveAddress([]byte("different secret"))
	require.NoError(t, err)
	assert.NotEqual(t, address, other)
}
