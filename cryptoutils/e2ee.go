package cryptoutils

import (
	"bytes"
	"crypto/rand"
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ruteri/lit-quorum-client/interfaces"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
)

const (
	envelopeVersion = "1"
	aadVersionTag   = 0x01
	randomLength    = 16

	// boxZeroBytes is the zero prefix of the classic NaCl box ciphertext layout.
	boxZeroBytes = 16

	createdAtLayout = "2006-01-02T15:04:05.000Z"
)

// EnvelopePayload is the body of an encrypted envelope.
type EnvelopePayload struct {
	VerificationKey  string `json:"verification_key"`
	Random           string `json:"random"`
	CreatedAt        string `json:"created_at"`
	CiphertextAndTag string `json:"ciphertext_and_tag"`
}

// Envelope is the encrypted request and response body exchanged with nodes.
type Envelope struct {
	Version string          `json:"version"`
	Payload EnvelopePayload `json:"payload"`
}

// ParseKey decodes a hex encoded 32-byte key. A 0x prefix is accepted and shorter
// keys are left-padded with zeros.
func ParseKey(s string) ([32]byte, error) {
	var key [32]byte
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return key, fmt.Errorf("invalid key hex: %w", err)
	}
	if len(raw) > 32 {
		return key, fmt.Errorf("invalid key length %d", len(raw))
	}
	copy(key[32-len(raw):], raw)
	return key, nil
}

// PublicKey returns the X25519 public key of secret.
func PublicKey(secret [32]byte) ([32]byte, error) {
	var pub [32]byte
	out, err := curve25519.X25519(secret[:], curve25519.Basepoint)
	if err != nil {
		return pub, err
	}
	copy(pub[:], out)
	return pub, nil
}

// Encrypt seals plaintext for theirPublic using mySecret.
func Encrypt(mySecret, theirPublic [32]byte, plaintext []byte) (*Envelope, error) {
	return encryptAt(mySecret, theirPublic, plaintext, time.Now(), rand.Reader)
}

func encryptAt(mySecret, theirPublic [32]byte, plaintext []byte, now time.Time, rng io.Reader) (*Envelope, error) {
	myPublic, err := PublicKey(mySecret)
	if err != nil {
		return nil, interfaces.CryptoError("E2EE encryption failed: %w", err)
	}

	var random [randomLength]byte
	if _, err := io.ReadFull(rng, random[:]); err != nil {
		return nil, interfaces.CryptoError("E2EE encryption failed: %w", err)
	}

	now = now.UTC().Truncate(time.Millisecond)
	nonce := deriveNonce(random[:], now.Unix(), theirPublic, myPublic)

	sealed := box.Seal(make([]byte, boxZeroBytes, boxZeroBytes+box.Overhead+len(plaintext)), plaintext, &nonce, &theirPublic, &mySecret)

	return &Envelope{
		Version: envelopeVersion,
		Payload: EnvelopePayload{
			VerificationKey:  hex.EncodeToString(myPublic[:]),
			Random:           hex.EncodeToString(random[:]),
			CreatedAt:        now.Format(createdAtLayout),
			CiphertextAndTag: hex.EncodeToString(sealed),
		},
	}, nil
}

// Decrypt opens an envelope addressed to mySecret.
func Decrypt(mySecret [32]byte, env *Envelope) ([]byte, error) {
	if env == nil || env.Version != envelopeVersion {
		return nil, interfaces.CryptoError("unsupported encrypted payload version")
	}

	theirPublic, err := ParseKey(env.Payload.VerificationKey)
	if err != nil {
		return nil, interfaces.CryptoError("E2EE decryption failed: %w", err)
	}

	random, err := hex.DecodeString(env.Payload.Random)
	if err != nil || len(random) != randomLength {
		return nil, interfaces.CryptoError("invalid random length")
	}

	createdAt, err := time.Parse(time.RFC3339Nano, env.Payload.CreatedAt)
	if err != nil {
		return nil, interfaces.CryptoError("E2EE decryption failed: invalid created_at: %w", err)
	}

	ciphertext, err := hex.DecodeString(strings.TrimPrefix(env.Payload.CiphertextAndTag, "0x"))
	if err != nil {
		return nil, interfaces.CryptoError("E2EE decryption failed: %w", err)
	}
	if len(ciphertext) < boxZeroBytes+box.Overhead {
		return nil, interfaces.CryptoError("decrypted payload too short")
	}

	myPublic, err := PublicKey(mySecret)
	if err != nil {
		return nil, interfaces.CryptoError("E2EE decryption failed: %w", err)
	}

	nonce := deriveNonce(random, createdAt.Unix(), myPublic, theirPublic)

	plaintext, ok := box.Open(nil, ciphertext[boxZeroBytes:], &nonce, &theirPublic, &mySecret)
	if !ok {
		return nil, interfaces.CryptoError("E2EE decryption failed")
	}
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}

// deriveNonce hashes the additional data 0x01 ‖ random ‖ BE64(seconds) ‖ recipient ‖ sender
// and returns the first 24 bytes of the SHA-512 digest.
func deriveNonce(random []byte, seconds int64, recipient, sender [32]byte) [24]byte {
	var aad bytes.Buffer
	aad.WriteByte(aadVersionTag)
	aad.Write(random)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(seconds))
	aad.Write(ts[:])
	aad.Write(recipient[:])
	aad.Write(sender[:])

	digest := sha512.Sum512(aad.Bytes())
	var nonce [24]byte
	copy(nonce[:], digest[:24])
	return nonce
}
