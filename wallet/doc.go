// Package wallet owns the wallet's lock lifecycle and its master secret.
//
// A Lifecycle starts UNSET until a provisioning manifest exists, then moves
// between ENCRYPTED and DECRYPTED. Unlocking runs a quorum attempt through
// the coordinator; restoring from a BIP-39 backup re-splits the derived
// secret into a new epoch and re-enrolls the selected modules. The secret
// is only resident while DECRYPTED and is wiped on lock.
//
// Provisioning state is persisted in two places: the manifest and sealed key
// parts go to a content-addressed storage backend, while the pointer to the
// current manifest and the device identity live in the local StateStore.
package wallet
