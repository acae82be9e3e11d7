// Package storage provides content-addressed storage for provisioning
// manifests and sealed key parts, plus the local device key-value store.
//
// Content is identified by its SHA-256 hash and stored across pluggable
// backends:
//
//   - File system storage for the device's local copy
//   - S3-compatible object storage
//   - IPFS mutable file system
//   - HashiCorp Vault KV v2
//   - HashiCorp Consul KV
//
// # Storage URI Format
//
// Backends are specified using URIs:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Examples:
//
//   - file:///var/lib/quorum-wallet/store/
//   - s3://bucket-name/prefix/?region=us-west-2
//   - ipfs://127.0.0.1:5001/?timeout=10s
//   - vault://vault.example.com:8200/secret/quorum-wallet
//   - consul://127.0.0.1:8500/quorum-wallet?scheme=http
//
// # Redundancy
//
// MultiStorageBackend stores to every configured backend and fetches from
// the first one returning content whose hash matches the requested id, so a
// single tampered or stale replica cannot substitute content.
//
// # Local Store
//
// BadgerStore keeps small mutable device state, such as the pointer to the
// current manifest, that does not fit a content-addressed model.
package storage
