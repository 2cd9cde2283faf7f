// Package cryptoutils holds the client side cryptography that is not threshold
// specific.
//
//   - E2EE envelopes between the client and each node: X25519 key agreement and
//     XSalsa20-Poly1305 (Encrypt, Decrypt, JitKeySet)
//   - per chain message hashing for PKP signing (HashForSigning, Keccak384)
//   - PKP ethereum addresses (PKPEthAddress)
//   - node attestation verification for SEV-SNP and TDX (MultiVerifier)
package cryptoutils
