// Package interfaces defines the types shared across the wallet packages.
//
// # Modules
//
// Module is one pluggable authentication factor with a READY, WAITING,
// AUTHORIZED and FAILED state machine. A module that is AUTHORIZED exposes
// its decrypted Share; KeyPart is the sealed at-rest form of that share.
//
// # Wallet
//
// WalletStatus is UNSET until the wallet is provisioned, then alternates
// between ENCRYPTED and DECRYPTED.
//
// # Events
//
// Publisher is the producer side of the event bus. Topics carry free text
// messages or, for progress topics, percentages.
//
// # Storage
//
// StorageBackend is content addressed storage for key parts and manifests,
// created from location URIs such as file:///var/lib/quorum-wallet/store or
// s3://bucket/prefix. KVStore is the small local store for device state.
//
// # Errors
//
// Sentinel errors are wrapped with %w and matched with
// errors.Is throughout.
package interfaces
