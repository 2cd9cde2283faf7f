package sessions

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/ruteri/lit-quorum-client/interfaces"
)

// SessionKeyURIPrefix prefixes session public keys in SIWE resources and requests.
const SessionKeyURIPrefix = "lit:session:"

// GenerateSessionKeyPair creates a fresh ed25519 session key. The secret key is the
// 64-byte seed‖public key form.
func GenerateSessionKeyPair() (interfaces.SessionKeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return interfaces.SessionKeyPair{}, interfaces.CryptoError("generating session key: %w", err)
	}
	return interfaces.SessionKeyPair{
		PublicKey: hex.EncodeToString(pub),
		SecretKey: hex.EncodeToString(priv),
	}, nil
}

// SessionPublicKeyHex strips an optional "lit:session:" prefix.
func SessionPublicKeyHex(publicKey string) string {
	return strings.TrimPrefix(publicKey, SessionKeyURIPrefix)
}

// SessionKeyURI returns "lit:session:{public key hex}".
func SessionKeyURI(publicKey string) string {
	return SessionKeyURIPrefix + SessionPublicKeyHex(publicKey)
}

// signingKey decodes a 32-byte seed or a 64-byte private key.
func signingKey(kp interfaces.SessionKeyPair) (ed25519.PrivateKey, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(kp.SecretKey, "0x"))
	if err != nil {
		return nil, interfaces.CryptoError("invalid session secret key: %w", err)
	}

	var key ed25519.PrivateKey
	switch len(raw) {
	case ed25519.SeedSize:
		key = ed25519.NewKeyFromSeed(raw)
	case ed25519.PrivateKeySize:
		key = ed25519.PrivateKey(raw)
	default:
		return nil, interfaces.CryptoError("invalid session secret key length %d", len(raw))
	}

	pub := hex.EncodeToString(key.Public().(ed25519.PublicKey))
	if kp.PublicKey != "" && !strings.EqualFold(SessionPublicKeyHex(kp.PublicKey), pub) {
		return nil, interfaces.ConfigError("session public key does not match secret key")
	}
	return key, nil
}

// ValidateDelegationAuthSig checks that a delegation signature was issued for the
// session key.
func ValidateDelegationAuthSig(sig interfaces.AuthSig, sessionPublicKey string) error {
	if sig.Sig == "" || sig.SignedMessage == "" {
		return interfaces.ConfigError("delegation auth sig is empty")
	}
	if !strings.Contains(sig.SignedMessage, SessionKeyURI(sessionPublicKey)) {
		return interfaces.ConfigError("delegation auth sig does not authorize session key %s", SessionPublicKeyHex(sessionPublicKey))
	}
	return nil
}
