package wallet

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/ruteri/quorum-wallet/interfaces"
	"github.com/ruteri/quorum-wallet/modules"
)

const (
	keyWalletUUID   = "device/uuid"
	keyDeviceKey    = "device/key"
	keyManifestHead = "manifest/head"
)

const deviceKeySize = 32

// StateStore keeps the device identity and the current manifest pointer in
// the local key-value store.
type StateStore struct {
	kv interfaces.KVStore
}

func NewStateStore(kv interfaces.KVStore) *StateStore {
	return &StateStore{kv: kv}
}

// Device returns the device identity, generating and persisting it on first use.
func (s *StateStore) Device() (modules.Device, error) {
	rawUUID, err := s.kv.Get(keyWalletUUID)
	if errors.Is(err, interfaces.ErrContentNotFound) {
		return s.createDevice()
	}
	if err != nil {
		return modules.Device{}, fmt.Errorf("failed to read wallet uuid: %w", err)
	}

	walletUUID, err := uuid.FromBytes(rawUUID)
	if err != nil {
		return modules.Device{}, fmt.Errorf("corrupt wallet uuid: %w", err)
	}

	key, err := s.kv.Get(keyDeviceKey)
	if err != nil {
		return modules.Device{}, fmt.Errorf("failed to read device key: %w", err)
	}
	if len(key) != deviceKeySize {
		return modules.Device{}, fmt.Errorf("corrupt device key: %d bytes", len(key))
	}

	return modules.Device{WalletUUID: walletUUID, Key: key}, nil
}

func (s *StateStore) createDevice() (modules.Device, error) {
	key := make([]byte, deviceKeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return modules.Device{}, fmt.Errorf("failed to generate device key: %w", err)
	}
	walletUUID := uuid.New()

	if err := s.kv.Put(keyDeviceKey, key); err != nil {
		return modules.Device{}, fmt.Errorf("failed to store device key: %w", err)
	}
	if err := s.kv.Put(keyWalletUUID, walletUUID[:]); err != nil {
		return modules.Device{}, fmt.Errorf("failed to store wallet uuid: %w", err)
	}
	return modules.Device{WalletUUID: walletUUID, Key: key}, nil
}

// Head returns the content id of the current manifest, or
// interfaces.ErrContentNotFound before the first provisioning.
func (s *StateStore) Head() (interfaces.ContentID, error) {
	raw, err := s.kv.Get(keyManifestHead)
	if err != nil {
		return interfaces.ContentID{}, err
	}
	return interfaces.NewContentIDFromBytes(raw)
}

// SetHead points the device at a new manifest.
func (s *StateStore) SetHead(id interfaces.ContentID) error {
	return s.kv.Put(keyManifestHead, id.Bytes())
}
