package kms

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/google/uuid"
	"github.com/hashicorp/vault/shamir"
	"github.com/ruteri/quorum-wallet/interfaces"
)

// checksumSize is the length of the integrity tag appended to the secret
// before splitting.
const checksumSize = sha256.Size

// maxShares is the GF(256) limit on distinct x coordinates.
const maxShares = 255

// ShareCombiner splits a master secret into threshold shares and reconstructs
// it from any threshold of them.
//
// The value actually shared is secret || SHA-256(tag || epoch || secret). Because
// the checksum is part of the shared polynomial's constant term, fewer than
// threshold shares reveal nothing about either, while a reconstruction from
// shares of different epochs or corrupt shares fails the checksum instead
// of yielding a wrong secret.
type ShareCombiner struct {
	newEpoch func() (uuid.UUID, error)
}

// NewShareCombiner creates a combiner drawing epochs from crypto/rand.
func NewShareCombiner() *ShareCombiner {
	return &ShareCombiner{newEpoch: uuid.NewRandom}
}

// NewShareCombinerWithEpochSource creates a combiner drawing epochs from r.
// Polynomial coefficients always come from crypto/rand.
func NewShareCombinerWithEpochSource(r io.Reader) *ShareCombiner {
	return &ShareCombiner{newEpoch: func() (uuid.UUID, error) {
		return uuid.NewRandomFromReader(r)
	}}
}

// Split divides secret into parts shares, any threshold of which reconstruct it.
// Shares are returned ordered by Index, starting at 1.
func (c *ShareCombiner) Split(secret []byte, parts, threshold int) ([]interfaces.Share, error) {
	if len(secret) == 0 {
		return nil, errors.New("cannot split an empty secret")
	}
	if threshold < 1 || parts < threshold {
		return nil, fmt.Errorf("%w: %d of %d", interfaces.ErrThresholdUnsatisfiable, threshold, parts)
	}
	if parts > maxShares {
		return nil, fmt.Errorf("cannot split into more than %d shares", maxShares)
	}

	epoch, err := c.newEpoch()
	if err != nil {
		return nil, fmt.Errorf("failed to generate epoch: %w", err)
	}

	payload := make([]byte, 0, len(secret)+checksumSize)
	payload = append(payload, secret...)
	payload = append(payload, checksum(epoch, secret)...)
	defer wipeBytes(payload)

	var raw [][]byte
	if threshold == 1 {
		// A degree-0 polynomial: every share carries the constant term.
		raw = make([][]byte, parts)
		for i := range raw {
			raw[i] = append(append([]byte(nil), payload...), byte(i+1))
		}
	} else {
		raw, err = shamir.Split(payload, parts, threshold)
		if err != nil {
			return nil, fmt.Errorf("failed to split secret: %w", err)
		}
	}

	shares := make([]interfaces.Share, parts)
	for i, data := range raw {
		shares[i] = interfaces.Share{
			Epoch:     epoch,
			Index:     i + 1,
			Threshold: threshold,
			Data:      data,
		}
	}
	return shares, nil
}

// Reconstruct recovers the secret from at least threshold shares of one epoch.
// When more shares are supplied, the threshold with the lowest indices are used.
func (c *ShareCombiner) Reconstruct(shares []interfaces.Share, threshold int) ([]byte, error) {
	if threshold < 1 {
		return nil, fmt.Errorf("%w: threshold %d", interfaces.ErrThresholdUnsatisfiable, threshold)
	}
	if len(shares) < threshold {
		return nil, fmt.Errorf("%w: have %d, need %d", interfaces.ErrInsufficientShares, len(shares), threshold)
	}

	epoch := shares[0].Epoch
	seen := make(map[int]struct{}, len(shares))
	for _, s := range shares {
		if s.Epoch != epoch {
			return nil, fmt.Errorf("%w: shares from different epochs", interfaces.ErrReconstructionIntegrity)
		}
		if s.Threshold != threshold {
			return nil, fmt.Errorf("%w: share %d was split at threshold %d", interfaces.ErrReconstructionIntegrity, s.Index, s.Threshold)
		}
		if _, dup := seen[s.Index]; dup {
			return nil, fmt.Errorf("%w: duplicate share index %d", interfaces.ErrReconstructionIntegrity, s.Index)
		}
		seen[s.Index] = struct{}{}
	}

	selected := make([]interfaces.Share, len(shares))
	copy(selected, shares)
	sort.Slice(selected, func(i, j int) bool { return selected[i].Index < selected[j].Index })
	selected = selected[:threshold]

	payload, err := combine(selected)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrReconstructionIntegrity, err)
	}
	defer wipeBytes(payload)

	if len(payload) <= checksumSize {
		return nil, fmt.Errorf("%w: payload too short", interfaces.ErrReconstructionIntegrity)
	}

	secretLen := len(payload) - checksumSize
	expected := checksum(epoch, payload[:secretLen])
	if subtle.ConstantTimeCompare(expected, payload[secretLen:]) != 1 {
		return nil, fmt.Errorf("%w: checksum mismatch", interfaces.ErrReconstructionIntegrity)
	}

	secret := make([]byte, secretLen)
	copy(secret, payload[:secretLen])
	return secret, nil
}

func combine(shares []interfaces.Share) ([]byte, error) {
	if len(shares) == 1 {
		data := shares[0].Data
		if len(data) < 2 {
			return nil, errors.New("share too short")
		}
		return append([]byte(nil), data[:len(data)-1]...), nil
	}

	parts := make([][]byte, len(shares))
	for i, s := range shares {
		parts[i] = s.Data
	}
	return shamir.Combine(parts)
}

func checksum(epoch uuid.UUID, secret []byte) []byte {
	h := sha256.New()
	h.Write([]byte("quorum-wallet/share-checksum"))
	h.Write(epoch[:])
	h.Write(secret)
	return h.Sum(nil)
}

// Securely wipe data from memory
func wipeBytes(data []byte) {
	for i := range data {
		data[i] = 0
	}
}
