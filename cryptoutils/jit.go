package cryptoutils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/ruteri/lit-quorum-client/interfaces"
)

// JitKey is the key material used to talk to one node during one operation.
// PublicKey is the node's static identity key and SecretKey is a fresh client secret.
type JitKey struct {
	PublicKey [32]byte
	SecretKey [32]byte
}

// JitKeySet holds per-node ephemeral secrets for a single top-level operation.
// It must not be shared between concurrently running operations.
type JitKeySet struct {
	keys     map[string]JitKey
	byNodePK map[string][32]byte
}

// NewJitKeySet creates fresh secrets for every node. identityKeys maps a node URL
// to its hex encoded static identity key.
func NewJitKeySet(identityKeys map[string]string) (*JitKeySet, error) {
	return newJitKeySet(identityKeys, rand.Reader)
}

func newJitKeySet(identityKeys map[string]string, rng io.Reader) (*JitKeySet, error) {
	set := &JitKeySet{
		keys:     make(map[string]JitKey, len(identityKeys)),
		byNodePK: make(map[string][32]byte, len(identityKeys)),
	}

	for url, identityKey := range identityKeys {
		nodePK, err := ParseKey(identityKey)
		if err != nil {
			return nil, interfaces.CryptoError("invalid identity key for %s: %w", url, err)
		}

		var secret [32]byte
		if _, err := io.ReadFull(rng, secret[:]); err != nil {
			return nil, interfaces.CryptoError("generating jit secret: %w", err)
		}

		set.keys[url] = JitKey{PublicKey: nodePK, SecretKey: secret}
		set.byNodePK[hex.EncodeToString(nodePK[:])] = secret
	}

	return set, nil
}

// Key returns the key material for a node URL.
func (s *JitKeySet) Key(url string) (JitKey, bool) {
	key, ok := s.keys[url]
	return key, ok
}

// EncryptFor encrypts plaintext for the node at url.
func (s *JitKeySet) EncryptFor(url string, plaintext []byte) (*Envelope, error) {
	key, ok := s.keys[url]
	if !ok {
		return nil, interfaces.CryptoError("no jit key for node %s", url)
	}
	return Encrypt(key.SecretKey, key.PublicKey, plaintext)
}

// SecretFor returns the client secret paired with a node verification key.
func (s *JitKeySet) SecretFor(verificationKey string) ([32]byte, bool) {
	normalized := strings.ToLower(strings.TrimPrefix(verificationKey, "0x"))
	secret, ok := s.byNodePK[normalized]
	return secret, ok
}

// Decrypt opens an envelope sent by any node of the set.
func (s *JitKeySet) Decrypt(env *Envelope) ([]byte, error) {
	if env == nil {
		return nil, interfaces.CryptoError("unsupported encrypted payload version")
	}
	secret, ok := s.SecretFor(env.Payload.VerificationKey)
	if !ok {
		return nil, interfaces.NetworkError("unknown verification key %s", env.Payload.VerificationKey)
	}
	return Decrypt(secret, env)
}

func (s *JitKeySet) String() string {
	return fmt.Sprintf("JitKeySet(%d nodes)", len(s.keys))
}
