// Package interfaces defines the core types and collaborator contracts of the
// threshold network client, separating interface definitions from implementations.
//
// The package provides:
//
// # Network Types
//
// NodeKeys: the raw key material a node reports during the handshake (subnet and
// network public keys, HD root keys, static node identity key, latest blockhash, epoch
// and an optional attestation).
//
// HandshakeResult: the resolved view of the network produced once per client, holding
// the connected nodes, the plurality-resolved CoreNodeConfig, the quorum threshold and
// the epoch.
//
// # Authorization Types
//
// AuthSig, SessionSigs, SessionKeyPair, AuthConfig and AuthContext describe the
// delegation proof and the per-node session signatures that authorize every request.
// LitAbility and ResourceAbilityRequest describe the resources a session may use.
//
// # Collaborator Interfaces
//
//   - ValidatorDiscovery: returns the active validator set and the bootstrap URLs
//   - PriceFeed: returns per-product node prices used for economic node selection
//   - AttestationVerifier: verifies a node's attestation against the handshake challenge
//   - SessionKeyStore: persists auth contexts between CLI invocations
//   - ActionCodeStore: publishes and fetches Lit Action code by content id
//
// # Errors
//
// Error carries one of the ErrorKind categories (handshake, network, crypto, config,
// access control). ErrHandshake, ErrNetwork, ErrCrypto and ErrConfig match any error
// of that kind with errors.Is.
package interfaces
