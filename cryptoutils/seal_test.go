package cryptoutils

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

var testParams = ScryptParams{N: 1 << 10, R: 8, P: 1}

func TestSealOpen(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{name: "short", data: []byte("x")},
		{name: "share sized", data: bytes.Repeat([]byte{0xab}, 68)},
		{name: "empty", data: []byte{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sealed, err := Seal([]byte("1234"), tc.data, testParams)
			require.NoError(t, err)

			opened, err := Open([]byte("1234"), sealed)
			require.NoError(t, err)
			require.True(t, bytes.Equal(tc.data, opened))
		})
	}
}

func TestOpenWrongPassphrase(t *testing.T) {
	sealed, err := Seal([]byte("1234"), []byte("share"), testParams)
	require.NoError(t, err)

	_, err = Open([]byte("4321"), sealed)
	require.ErrorIs(t, err, ErrWrongPassphrase)
}

func TestSealUsesFreshSalt(t *testing.T) {
	a, err := Seal([]byte("pw"), []byte("share"), testParams)
	require.NoError(t, err)
	b, err := Seal([]byte("pw"), []byte("share"), testParams)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestFactorKey(t *testing.T) {
	device := bytes.Repeat([]byte{1}, 32)

	k1, err := FactorKey(device, "pin", []byte("1234"))
	require.NoError(t, err)
	require.Len(t, k1, 32)

	k2, err := FactorKey(device, "pin", []byte("1234"))
	require.NoError(t, err)
	require.Equal(t, k1, k2)

	otherDevice, err := FactorKey(bytes.Repeat([]byte{2}, 32), "pin", []byte("1234"))
	require.NoError(t, err)
	require.NotEqual(t, k1, otherDevice)

	otherFactor, err := FactorKey(device, "totp", []byte("1234"))
	require.NoError(t, err)
	require.NotEqual(t, k1, otherFactor)
}

func TestWipe(t *testing.T) {
	b := []byte{1, 2, 3}
	Wipe(b)
	require.Equal(t, []byte{0, 0, 0}, b)
}
