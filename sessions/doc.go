// Package sessions issues and verifies per-node ed25519 session signatures.
package sessions
