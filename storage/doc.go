// Package storage persists session auth contexts and Lit Action code for the CLI.
//
// Session stores implement interfaces.SessionKeyStore and keep one JSON encoded
// interfaces.AuthContext per name:
//
//   - FileStore: a directory on the local file system
//   - VaultStore: a HashiCorp Vault KV v2 mount
//   - S3Store: an S3 (or S3 compatible) bucket
//   - MultiStore: writes to every available backend, reads from the first that has the name
//
// IPFSActionStore implements interfaces.ActionCodeStore on top of an IPFS node, so
// executeJs and custom auth can reference code by its CID instead of inlining it.
//
// # Store URI Format
//
// Stores are created from URIs with NewSessionKeyStore:
//
//	file:///home/user/.lit/sessions
//	vault://vault.example.com:8200/secret/lit?token=...
//	s3://ACCESS_KEY:SECRET_KEY@bucket/prefix/?region=us-west-2&endpoint=minio:9000
//
// Names are restricted to letters, digits, dots, dashes and underscores so that
// they map to file names, Vault paths and object keys unchanged.
package storage
