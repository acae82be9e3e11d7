// Package kms splits the wallet master secret into threshold shares and
// reconstructs it.
//
// ShareCombiner uses Shamir secret sharing over GF(256). Each split draws a
// fresh epoch; the shared payload carries a checksum bound to that epoch so
// mixing shares of two provisioning rounds, or corrupt shares, fails with
// interfaces.ErrReconstructionIntegrity instead of producing a wrong secret.
//
//	combiner := kms.NewShareCombiner()
//	shares, err := combiner.Split(secret, 3, 2)
//	...
//	secret, err := combiner.Reconstruct(shares[1:], 2)
package kms
