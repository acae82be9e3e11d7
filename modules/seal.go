package modules

import (
	"fmt"

	"github.com/ruteri/quorum-wallet/cryptoutils"
	"github.com/ruteri/quorum-wallet/interfaces"
)

// sealShare encrypts the encoded share under passphrase and wipes the passphrase.
func sealShare(passphrase []byte, share interfaces.Share, params cryptoutils.ScryptParams) ([]byte, error) {
	defer cryptoutils.Wipe(passphrase)

	raw, err := share.MarshalBinary()
	if err != nil {
		return nil, err
	}
	defer cryptoutils.Wipe(raw)

	sealed, err := cryptoutils.Seal(passphrase, raw, params)
	if err != nil {
		return nil, fmt.Errorf("failed to seal key part: %w", err)
	}
	return sealed, nil
}

// openShare decrypts a sealed key part and wipes the passphrase.
func openShare(passphrase []byte, payload []byte) (interfaces.Share, error) {
	defer cryptoutils.Wipe(passphrase)

	raw, err := cryptoutils.Open(passphrase, payload)
	if err != nil {
		return interfaces.Share{}, err
	}
	defer cryptoutils.Wipe(raw)

	var share interfaces.Share
	if err := share.UnmarshalBinary(raw); err != nil {
		return interfaces.Share{}, fmt.Errorf("failed to decode key part: %w", err)
	}
	return share, nil
}
