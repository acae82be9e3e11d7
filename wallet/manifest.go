package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/quorum-wallet/interfaces"
)

const manifestVersion = 1

// PartRef points at a sealed key part in the storage backend.
type PartRef struct {
	Module interfaces.ModuleID `json:"module"`
	Index  int                 `json:"index"`
	ID     string              `json:"id"`
}

// Manifest is the persisted record of one provisioning epoch.
type Manifest struct {
	Version    int       `json:"version"`
	WalletUUID uuid.UUID `json:"walletUUID"`
	Epoch      uuid.UUID `json:"epoch"`
	Threshold  int       `json:"threshold"`
	Parts      []PartRef `json:"parts"`
	Created    time.Time `json:"created"`
}

// Modules returns the provisioned module ids in manifest order.
func (m *Manifest) Modules() []interfaces.ModuleID {
	ids := make([]interfaces.ModuleID, len(m.Parts))
	for i, p := range m.Parts {
		ids[i] = p.Module
	}
	return ids
}

// Provisioned reports whether id holds a key part of this epoch.
func (m *Manifest) Provisioned(id interfaces.ModuleID) bool {
	for _, p := range m.Parts {
		if p.Module == id {
			return true
		}
	}
	return false
}

func (m *Manifest) validate(walletUUID uuid.UUID) error {
	if m.Version != manifestVersion {
		return fmt.Errorf("unsupported manifest version %d", m.Version)
	}
	if m.WalletUUID != walletUUID {
		return fmt.Errorf("manifest belongs to wallet %s", m.WalletUUID)
	}
	if m.Threshold < 1 || m.Threshold > len(m.Parts) {
		return fmt.Errorf("manifest threshold %d with %d parts", m.Threshold, len(m.Parts))
	}
	return nil
}

// storeParts writes every key part and returns references to them.
func storeParts(ctx context.Context, store interfaces.StorageBackend, parts []interfaces.KeyPart) ([]PartRef, error) {
	refs := make([]PartRef, 0, len(parts))
	for _, part := range parts {
		data, err := json.Marshal(part)
		if err != nil {
			return nil, err
		}
		id, err := store.Store(ctx, data, interfaces.KeyPartType)
		if err != nil {
			return nil, fmt.Errorf("failed to store key part for %s: %w", part.Module, err)
		}
		refs = append(refs, PartRef{Module: part.Module, Index: part.Index, ID: id.String()})
	}
	return refs, nil
}

func storeManifest(ctx context.Context, store interfaces.StorageBackend, m *Manifest) (interfaces.ContentID, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return interfaces.ContentID{}, err
	}
	id, err := store.Store(ctx, data, interfaces.ManifestType)
	if err != nil {
		return interfaces.ContentID{}, fmt.Errorf("failed to store manifest: %w", err)
	}
	return id, nil
}

func fetchManifest(ctx context.Context, store interfaces.StorageBackend, id interfaces.ContentID) (*Manifest, error) {
	data, err := store.Fetch(ctx, id, interfaces.ManifestType)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch manifest %s: %w", id, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", id, err)
	}
	return &m, nil
}

func fetchPart(ctx context.Context, store interfaces.StorageBackend, ref PartRef) (interfaces.KeyPart, error) {
	id, err := interfaces.NewContentIDFromHex(ref.ID)
	if err != nil {
		return interfaces.KeyPart{}, err
	}
	data, err := store.Fetch(ctx, id, interfaces.KeyPartType)
	if err != nil {
		return interfaces.KeyPart{}, fmt.Errorf("failed to fetch key part for %s: %w", ref.Module, err)
	}
	var part interfaces.KeyPart
	if err := json.Unmarshal(data, &part); err != nil {
		return interfaces.KeyPart{}, fmt.Errorf("failed to decode key part for %s: %w", ref.Module, err)
	}
	if part.Module != ref.Module || part.Index != ref.Index {
		return interfaces.KeyPart{}, fmt.Errorf("key part %s does not match manifest entry for %s", ref.ID, ref.Module)
	}
	return part, nil
}
