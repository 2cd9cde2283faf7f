// Package threshold combines the partial results returned by network nodes into final
// signatures and plaintexts.
//
// # BLS
//
// Nodes return BLS12-381 proof-of-possession signature shares. CombineSignatureShares
// tries an explicit, ordered list of share decoders (modern G2, modern G1, legacy G2,
// legacy G1) and combines the first encoding that parses by Lagrange interpolation at
// zero. The combined signature is the decryption key of identity based time-lock
// ciphertexts (EncryptTimeLock, DecryptTimeLock) and the delegation signature returned
// by sign-session-key.
//
// # ECDSA and Schnorr
//
// CombineAndVerify accepts the signed message shares of pkp signing and Lit Actions
// (EcdsaSignedMessageShare, FrostSignedMessageShare, BlsSignedMessageShare), sums the
// shares with the scheme specific combiner, normalizes and verifies the result, and
// recovers the ECDSA recovery id.
package threshold
