package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ruteri/quorum-wallet/interfaces"
	"github.com/stretchr/testify/require"
)

func TestParseInputs(t *testing.T) {
	inputs, err := parseInputs([]string{"button", "pin"}, []string{"pin.pin=1234", "totp.code=123456", "pin.note=a=b"})
	require.NoError(t, err)
	require.Equal(t, map[interfaces.ModuleID]map[string]string{
		"button": {},
		"pin":    {"pin": "1234", "note": "a=b"},
		"totp":   {"code": "123456"},
	}, inputs)

	for _, bad := range []string{"pin=1234", "pin.1234", ".pin=1", "pin.=1"} {
		_, err := parseInputs(nil, []string{bad})
		require.Error(t, err, bad)
	}
	_, err = parseInputs([]string{""}, nil)
	require.Error(t, err)
}

func TestReadMnemonic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "phrase")
	require.NoError(t, os.WriteFile(path, []byte("  abandon abandon\nabout \n"), 0o600))
	words, err := readMnemonic(path)
	require.NoError(t, err)
	require.Equal(t, []string{"abandon", "abandon", "about"}, words)

	t.Setenv("WALLET_MNEMONIC", "")
	_, err = readMnemonic("")
	require.Error(t, err)

	t.Setenv("WALLET_MNEMONIC", "zoo zoo wrong")
	words, err = readMnemonic("")
	require.NoError(t, err)
	require.Len(t, words, 3)

	_, err = readMnemonic(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}
