package storage

import (
	"context"
	"log/slog"
	"testing"

	"github.com/ruteri/quorum-wallet/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageBackendFactory_File(t *testing.T) {
	dir := t.TempDir()
	locations, err := ParseLocations([]string{"file://" + dir})
	require.NoError(t, err)

	factory := NewStorageBackendFactory(slog.Default())
	backend, err := factory.StorageBackendFor(locations[0])
	require.NoError(t, err)
	assert.IsType(t, &FileBackend{}, backend)
}

func TestStorageBackendFactory_Remote(t *testing.T) {
	factory := NewStorageBackendFactory(slog.Default())

	tests := []struct {
		uri      string
		expected interfaces.StorageBackend
	}{
		{"s3://bucket/prefix?region=eu-west-1&endpoint=localhost:9000&pathStyle=true", &S3Backend{}},
		{"vault://127.0.0.1:8200/secret/quorum-wallet?tls=false", &VaultBackend{}},
		{"consul://127.0.0.1:8500/quorum-wallet?scheme=http", &ConsulBackend{}},
		{"ipfs://127.0.0.1:5001/?timeout=5s", &IPFSBackend{}},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			locations, err := ParseLocations([]string{tt.uri})
			require.NoError(t, err)

			backend, err := factory.StorageBackendFor(locations[0])
			require.NoError(t, err)
			assert.IsType(t, tt.expected, backend)
		})
	}
}

func TestStorageBackendFactory_Invalid(t *testing.T) {
	_, err := ParseLocations([]string{"github://owner/repo"})
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)

	factory := NewStorageBackendFactory(slog.Default())
	_, err = factory.StorageBackendFor(interfaces.StorageBackendLocation{Raw: "file://", Scheme: "file"})
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)

	_, err = factory.StorageBackendFor(interfaces.StorageBackendLocation{Raw: "ipfs://h/?timeout=x", Scheme: "ipfs", Host: "h", Query: map[string][]string{"timeout": {"x"}}})
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)
}

func TestStorageBackendFactory_CreateMultiBackend(t *testing.T) {
	factory := NewStorageBackendFactory(slog.Default())

	good, err := interfaces.NewStorageBackendLocation("file://" + t.TempDir())
	require.NoError(t, err)
	bad := interfaces.StorageBackendLocation{Raw: "file://", Scheme: "file"}

	backend, err := factory.CreateMultiBackend([]interfaces.StorageBackendLocation{bad, good})
	require.NoError(t, err)

	ctx := context.Background()
	id, err := backend.Store(ctx, []byte("data"), interfaces.ManifestType)
	require.NoError(t, err)
	data, err := backend.Fetch(ctx, id, interfaces.ManifestType)
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), data)

	_, err = factory.CreateMultiBackend([]interfaces.StorageBackendLocation{bad})
	assert.Error(t, err)
}
