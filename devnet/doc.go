// Package devnet runs threshold network nodes in process.
//
// A devnet deals a BLS network key with Shamir sharing over the BLS12-381 scalar
// field and a secp256k1 PKP key known to every node. Nodes speak the node HTTP
// protocol: plain JSON handshakes and end-to-end encrypted operation requests for
// decryption shares, PKP signing, Lit Action execution and session key signing.
// Lit Actions are supplied by an ActionRunner since devnet nodes have no JavaScript
// runtime.
//
// Start serves nodes on httptest servers for tests; cmd/devnet serves them on
// local ports through httpserver.
package devnet
