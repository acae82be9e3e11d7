package wallet

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/quorum-wallet/interfaces"
	"github.com/tyler-smith/go-bip39"
)

// DeriveSecret validates a BIP-39 mnemonic and returns its 64-byte seed
// (empty passphrase). The same words always produce the same secret.
func DeriveSecret(words []string) ([]byte, error) {
	fields := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			fields = append(fields, w)
		}
	}
	mnemonic := strings.Join(fields, " ")

	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("%w: %d words", interfaces.ErrInvalidMnemonic, len(fields))
	}
	return bip39.NewSeed(mnemonic, ""), nil
}

// NewMnemonic generates a fresh 24 word backup phrase.
func NewMnemonic() ([]string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return nil, err
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, err
	}
	return strings.Fields(mnemonic), nil
}

// DeriveAddress returns the account address of the secp256k1 key derived
// from secret as Keccak-256(secret).
func DeriveAddress(secret []byte) (string, error) {
	digest := crypto.Keccak256(secret)
	defer wipe(digest)

	key, err := crypto.ToECDSA(digest)
	if err != nil {
		return "", fmt.Errorf("failed to derive account key: %w", err)
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
