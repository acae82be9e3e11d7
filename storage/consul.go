package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hashicorp/consul/api"
	"github.com/ruteri/quorum-wallet/interfaces"
)

// ConsulKV is the subset of the Consul KV API used by ConsulBackend.
type ConsulKV interface {
	Put(kv *api.KVPair, options *api.WriteOptions) (*api.WriteMeta, error)
	Get(key string, options *api.QueryOptions) (*api.KVPair, *api.QueryMeta, error)
}

// ConsulBackend implements a storage backend on the Consul key-value store.
type ConsulBackend struct {
	kv          ConsulKV
	status      func() (string, error)
	prefix      string
	log         *slog.Logger
	locationURI string
}

// NewConsulBackend connects to the Consul agent at address. Keys are stored
// under prefix.
func NewConsulBackend(address, scheme, token, prefix string, log *slog.Logger) (*ConsulBackend, error) {
	cfg := api.DefaultConfig()
	if address != "" {
		cfg.Address = address
	}
	if scheme != "" {
		cfg.Scheme = scheme
	}
	cfg.Token = token

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}

	backend := NewConsulBackendWithKV(client.KV(), prefix, log)
	backend.status = client.Status().Leader
	backend.locationURI = fmt.Sprintf("consul://%s/%s", cfg.Address, backend.prefix)
	return backend, nil
}

// NewConsulBackendWithKV creates a backend over an existing KV client.
func NewConsulBackendWithKV(kv ConsulKV, prefix string, log *slog.Logger) *ConsulBackend {
	prefix = strings.Trim(prefix, "/")
	return &ConsulBackend{
		kv:          kv,
		prefix:      prefix,
		log:         log,
		locationURI: fmt.Sprintf("consul:///%s", prefix),
	}
}

func (b *ConsulBackend) key(id interfaces.ContentID, contentType interfaces.ContentType) string {
	return strings.TrimPrefix(fmt.Sprintf("%s/%s/%s", b.prefix, typeDir(contentType), id.String()), "/")
}

func (b *ConsulBackend) Fetch(ctx context.Context, id interfaces.ContentID, contentType interfaces.ContentType) ([]byte, error) {
	key := b.key(id, contentType)

	pair, _, err := b.kv.Get(key, (&api.QueryOptions{}).WithContext(ctx))
	if err != nil {
		b.log.Error("Failed to read from Consul", slog.String("key", key), "err", err)
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	if pair == nil {
		return nil, interfaces.ErrContentNotFound
	}

	b.log.Debug("Fetched content from Consul", slog.String("key", key), slog.Int("size", len(pair.Value)))
	return pair.Value, nil
}

func (b *ConsulBackend) Store(ctx context.Context, data []byte, contentType interfaces.ContentType) (interfaces.ContentID, error) {
	id := interfaces.ComputeID(data)
	key := b.key(id, contentType)

	_, err := b.kv.Put(&api.KVPair{Key: key, Value: data}, (&api.WriteOptions{}).WithContext(ctx))
	if err != nil {
		b.log.Error("Failed to write to Consul", slog.String("key", key), "err", err)
		return id, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}

	b.log.Debug("Stored content in Consul", slog.String("key", key))
	return id, nil
}

// Available checks that the cluster has a leader.
func (b *ConsulBackend) Available(ctx context.Context) bool {
	if b.status == nil {
		return true
	}
	leader, err := b.status()
	if err != nil || leader == "" {
		b.log.Debug("Consul backend unavailable", "err", err)
		return false
	}
	return true
}

func (b *ConsulBackend) Name() string {
	return fmt.Sprintf("consul-%s", b.prefix)
}

func (b *ConsulBackend) LocationURI() string {
	return b.locationURI
}
