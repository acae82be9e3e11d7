package kms

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"testing"

	"github.com/ruteri/quorum-wallet/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSecret(t *testing.T) []byte {
	secret := make([]byte, 64)
	_, err := rand.Read(secret)
	require.NoError(t, err, "Failed to generate test secret")
	return secret
}

// subsets returns every k-element subset of shares.
func subsets(shares []interfaces.Share, k int) [][]interfaces.Share {
	var out [][]interfaces.Share
	var walk func(start int, acc []interfaces.Share)
	walk = func(start int, acc []interfaces.Share) {
		if len(acc) == k {
			out = append(out, append([]interfaces.Share(nil), acc...))
			return
		}
		for i := start; i < len(shares); i++ {
			walk(i+1, append(acc, shares[i]))
		}
	}
	walk(0, nil)
	return out
}

func TestShareCombiner_SplitReconstructAllSubsets(t *testing.T) {
	combiner := NewShareCombiner()
	secret := testSecret(t)

	for n := 1; n <= 5; n++ {
		for threshold := 1; threshold <= n; threshold++ {
			t.Run(fmt.Sprintf("%d-of-%d", threshold, n), func(t *testing.T) {
				shares, err := combiner.Split(secret, n, threshold)
				require.NoError(t, err)
				require.Len(t, shares, n)

				for i, s := range shares {
					assert.Equal(t, i+1, s.Index, "Shares should be ordered by index")
					assert.Equal(t, threshold, s.Threshold)
					assert.Equal(t, shares[0].Epoch, s.Epoch)
				}

				for _, subset := range subsets(shares, threshold) {
					recovered, err := combiner.Reconstruct(subset, threshold)
					require.NoError(t, err)
					assert.Equal(t, secret, recovered)
				}
			})
		}
	}
}

func TestShareCombiner_InsufficientShares(t *testing.T) {
	combiner := NewShareCombiner()
	shares, err := combiner.Split(testSecret(t), 5, 3)
	require.NoError(t, err)

	_, err = combiner.Reconstruct(shares[:2], 3)
	assert.ErrorIs(t, err, interfaces.ErrInsufficientShares)

	_, err = combiner.Reconstruct(nil, 3)
	assert.ErrorIs(t, err, interfaces.ErrInsufficientShares)
}

func TestShareCombiner_SubThresholdRevealsNothing(t *testing.T) {
	combiner := NewShareCombiner()
	secret := testSecret(t)
	shares, err := combiner.Split(secret, 5, 3)
	require.NoError(t, err)

	// An attacker relabelling sub-threshold shares still cannot pass the
	// integrity check, and never obtains the secret.
	for _, subset := range subsets(shares, 2) {
		forged := make([]interfaces.Share, len(subset))
		for i, s := range subset {
			s.Threshold = 2
			forged[i] = s
		}
		recovered, err := combiner.Reconstruct(forged, 2)
		assert.ErrorIs(t, err, interfaces.ErrReconstructionIntegrity)
		assert.NotEqual(t, secret, recovered)
	}
}

func TestShareCombiner_MismatchedEpochs(t *testing.T) {
	combiner := NewShareCombiner()
	secret := testSecret(t)

	oldShares, err := combiner.Split(secret, 3, 2)
	require.NoError(t, err)
	newShares, err := combiner.Split(secret, 3, 2)
	require.NoError(t, err)
	require.NotEqual(t, oldShares[0].Epoch, newShares[0].Epoch)

	_, err = combiner.Reconstruct([]interfaces.Share{oldShares[0], newShares[1]}, 2)
	assert.ErrorIs(t, err, interfaces.ErrReconstructionIntegrity)

	// Relabelling the epoch does not help: the checksum binds the epoch.
	relabelled := oldShares[0]
	relabelled.Epoch = newShares[1].Epoch
	_, err = combiner.Reconstruct([]interfaces.Share{relabelled, newShares[1]}, 2)
	assert.ErrorIs(t, err, interfaces.ErrReconstructionIntegrity)
}

func TestShareCombiner_CorruptShare(t *testing.T) {
	combiner := NewShareCombiner()
	shares, err := combiner.Split(testSecret(t), 3, 2)
	require.NoError(t, err)

	corrupt := shares[0].Clone()
	corrupt.Data[0] ^= 0xff

	_, err = combiner.Reconstruct([]interfaces.Share{corrupt, shares[1]}, 2)
	assert.ErrorIs(t, err, interfaces.ErrReconstructionIntegrity)
}

func TestShareCombiner_DuplicateIndex(t *testing.T) {
	combiner := NewShareCombiner()
	shares, err := combiner.Split(testSecret(t), 3, 2)
	require.NoError(t, err)

	_, err = combiner.Reconstruct([]interfaces.Share{shares[0], shares[0]}, 2)
	assert.ErrorIs(t, err, interfaces.ErrReconstructionIntegrity)
}

func TestShareCombiner_UsesLowestIndices(t *testing.T) {
	combiner := NewShareCombiner()
	secret := testSecret(t)
	shares, err := combiner.Split(secret, 4, 2)
	require.NoError(t, err)

	// The highest-index share is corrupt but never selected.
	corrupt := shares[3].Clone()
	corrupt.Data[0] ^= 0xff

	recovered, err := combiner.Reconstruct([]interfaces.Share{corrupt, shares[1], shares[0]}, 2)
	require.NoError(t, err)
	assert.Equal(t, secret, recovered)
}

func TestShareCombiner_InvalidParameters(t *testing.T) {
	combiner := NewShareCombiner()
	secret := testSecret(t)

	tests := []struct {
		name      string
		secret    []byte
		parts     int
		threshold int
	}{
		{name: "empty secret", secret: nil, parts: 3, threshold: 2},
		{name: "threshold above parts", secret: secret, parts: 2, threshold: 3},
		{name: "zero threshold", secret: secret, parts: 2, threshold: 0},
		{name: "too many parts", secret: secret, parts: 256, threshold: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := combiner.Split(tt.secret, tt.parts, tt.threshold)
			assert.Error(t, err)
		})
	}

	_, err := combiner.Split(secret, 2, 3)
	assert.ErrorIs(t, err, interfaces.ErrThresholdUnsatisfiable)
}

func TestShare_BinaryRoundTrip(t *testing.T) {
	combiner := NewShareCombiner()
	shares, err := combiner.Split(testSecret(t), 3, 2)
	require.NoError(t, err)

	encoded, err := shares[1].MarshalBinary()
	require.NoError(t, err)

	var decoded interfaces.Share
	require.NoError(t, decoded.UnmarshalBinary(encoded))
	assert.Equal(t, shares[1], decoded)

	assert.Error(t, decoded.UnmarshalBinary(encoded[:5]))
}

func TestShareCombiner_EpochSource(t *testing.T) {
	seed := bytes.Repeat([]byte{0x42}, 16)
	secret := testSecret(t)

	first, err := NewShareCombinerWithEpochSource(bytes.NewReader(seed)).Split(secret, 3, 2)
	require.NoError(t, err)
	second, err := NewShareCombinerWithEpochSource(bytes.NewReader(seed)).Split(secret, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, first[0].Epoch, second[0].Epoch)

	got, err := NewShareCombiner().Reconstruct(first[1:], 2)
	require.NoError(t, err)
	assert.Equal(t, secret, got)

	// An exhausted source fails the split instead of reusing an epoch.
	_, err = NewShareCombinerWithEpochSource(bytes.NewReader(nil)).Split(secret, 3, 2)
	assert.Error(t, err)
}
