package modules

import (
	"bytes"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/ruteri/quorum-wallet/cryptoutils"
	"github.com/ruteri/quorum-wallet/interfaces"
)

var testScrypt = cryptoutils.ScryptParams{N: 1 << 10, R: 8, P: 1}

func testDevice() Device {
	return Device{WalletUUID: uuid.New(), Key: bytes.Repeat([]byte{0x42}, 32)}
}

func testOptions() Options {
	opts := Options{
		Log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Scrypt: testScrypt,
	}
	opts.applyDefaults()
	return opts
}

func testShare(index int) interfaces.Share {
	return interfaces.Share{
		Epoch:     uuid.New(),
		Index:     index,
		Threshold: 2,
		Data:      bytes.Repeat([]byte{byte(index)}, 33),
	}
}

func intPtr(n int) *int { return &n }

func configFor(id, typ string, maxRetry int) Config {
	cfg := Config{ID: id, Type: typ, MaxRetry: intPtr(maxRetry)}
	cfg.ApplyDefaults()
	return cfg
}
