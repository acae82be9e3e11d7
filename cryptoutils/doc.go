// Package cryptoutils holds the sealing primitives shared by the
// authentication modules.
//
// Seal and Open wrap a payload in a versioned JSON envelope: the key is
// derived from a passphrase with scrypt and the payload is encrypted with
// ChaCha20-Poly1305. FactorKey derives per-factor passphrases from the device
// key with HKDF-SHA256, so a key part sealed for one factor on one device
// cannot be opened by any other.
package cryptoutils
