package threshold

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/ruteri/lit-quorum-client/interfaces"
)

const (
	sigmaSize = 32

	// proof-of-possession variant tag carried at the end of a serialized ciphertext
	schemeProofOfPossession = 2
)

// TimeLockCiphertext is a Boneh-Franklin ciphertext with the Fujisaki-Okamoto transform.
// U lives in the public key group; V masks the random sigma and W masks the message.
type TimeLockCiphertext struct {
	U []byte
	V []byte
	W []byte
}

// MarshalBinary encodes the ciphertext as U || uvarint(len V) || V || uvarint(len W) || W || uvarint(scheme).
func (c *TimeLockCiphertext) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, len(c.U)+len(c.V)+len(c.W)+8)
	out = append(out, c.U...)
	out = binary.AppendUvarint(out, uint64(len(c.V)))
	out = append(out, c.V...)
	out = binary.AppendUvarint(out, uint64(len(c.W)))
	out = append(out, c.W...)
	out = binary.AppendUvarint(out, schemeProofOfPossession)
	return out, nil
}

// ParseTimeLockCiphertext decodes a ciphertext whose U point belongs to the public key
// group of the given signature group.
func ParseTimeLockCiphertext(group SignatureGroup, data []byte) (*TimeLockCiphertext, error) {
	uSize := group.PublicKeySize()
	if len(data) < uSize {
		return nil, interfaces.CryptoError("ciphertext too short")
	}
	c := &TimeLockCiphertext{U: bytes.Clone(data[:uSize])}
	rest := data[uSize:]

	readVec := func() ([]byte, error) {
		n, read := binary.Uvarint(rest)
		if read <= 0 || uint64(len(rest)-read) < n {
			return nil, errors.New("truncated ciphertext field")
		}
		v := bytes.Clone(rest[read : read+int(n)])
		rest = rest[read+int(n):]
		return v, nil
	}

	var err error
	if c.V, err = readVec(); err != nil {
		return nil, interfaces.CryptoError("invalid ciphertext: %w", err)
	}
	if c.W, err = readVec(); err != nil {
		return nil, interfaces.CryptoError("invalid ciphertext: %w", err)
	}
	scheme, read := binary.Uvarint(rest)
	if read <= 0 || read != len(rest) {
		return nil, interfaces.CryptoError("invalid ciphertext: trailing data")
	}
	if scheme != schemeProofOfPossession {
		return nil, interfaces.CryptoError("unsupported ciphertext signature scheme %d", scheme)
	}
	if len(c.V) != sigmaSize {
		return nil, interfaces.CryptoError("invalid ciphertext: sigma mask length %d", len(c.V))
	}
	return c, nil
}

// kdf expands input into n bytes with SHA-256 in counter mode.
func kdf(label string, input []byte, n int) []byte {
	out := make([]byte, 0, n+sha256.Size)
	var ctr [4]byte
	for i := uint32(0); len(out) < n; i++ {
		binary.BigEndian.PutUint32(ctr[:], i)
		h := sha256.New()
		h.Write([]byte(label))
		h.Write(ctr[:])
		h.Write(input)
		out = h.Sum(out)
	}
	return out[:n]
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}

func hashToScalar(sigma, msg []byte) *big.Int {
	h := sha512.New()
	h.Write([]byte("BLS12381_TIMELOCK_H3_"))
	h.Write(sigma)
	h.Write(msg)
	var r fr.Element
	r.SetBigInt(new(big.Int).SetBytes(h.Sum(nil)))
	if r.IsZero() {
		r.SetOne()
	}
	return r.BigInt(new(big.Int))
}

func gtMask(gt *bls12381.GT) []byte {
	b := gt.Bytes()
	return kdf("BLS12381_TIMELOCK_H2_", b[:], sigmaSize)
}

// EncryptTimeLock encrypts msg to identity under the network BLS public key. The
// ciphertext can be opened with the network signature over identity.
func EncryptTimeLock(publicKey, identity, msg []byte) (*TimeLockCiphertext, error) {
	return encryptTimeLock(publicKey, identity, msg, rand.Reader)
}

func encryptTimeLock(publicKey, identity, msg []byte, rng io.Reader) (*TimeLockCiphertext, error) {
	group, err := GroupForPublicKey(publicKey)
	if err != nil {
		return nil, err
	}

	sigma := make([]byte, sigmaSize)
	if _, err := io.ReadFull(rng, sigma); err != nil {
		return nil, interfaces.CryptoError("sampling sigma: %w", err)
	}
	r := hashToScalar(sigma, msg)

	var (
		u  []byte
		gt bls12381.GT
	)
	_, _, g1Gen, g2Gen := bls12381.Generators()

	if group == SignaturesInG1 {
		var pk bls12381.G2Affine
		if _, err := pk.SetBytes(publicKey); err != nil {
			return nil, interfaces.CryptoError("invalid BLS public key: %w", err)
		}
		hid, err := bls12381.HashToG1(identity, []byte(dstSignaturesInG1))
		if err != nil {
			return nil, interfaces.CryptoError("hashing identity: %w", err)
		}
		var uPt, pkr bls12381.G2Affine
		uPt.ScalarMultiplication(&g2Gen, r)
		pkr.ScalarMultiplication(&pk, r)
		if gt, err = bls12381.Pair([]bls12381.G1Affine{hid}, []bls12381.G2Affine{pkr}); err != nil {
			return nil, interfaces.CryptoError("pairing: %w", err)
		}
		ub := uPt.Bytes()
		u = ub[:]
	} else {
		var pk bls12381.G1Affine
		if _, err := pk.SetBytes(publicKey); err != nil {
			return nil, interfaces.CryptoError("invalid BLS public key: %w", err)
		}
		hid, err := bls12381.HashToG2(identity, []byte(dstSignaturesInG2))
		if err != nil {
			return nil, interfaces.CryptoError("hashing identity: %w", err)
		}
		var uPt, pkr bls12381.G1Affine
		uPt.ScalarMultiplication(&g1Gen, r)
		pkr.ScalarMultiplication(&pk, r)
		if gt, err = bls12381.Pair([]bls12381.G1Affine{pkr}, []bls12381.G2Affine{hid}); err != nil {
			return nil, interfaces.CryptoError("pairing: %w", err)
		}
		ub := uPt.Bytes()
		u = ub[:]
	}

	return &TimeLockCiphertext{
		U: u,
		V: xorBytes(sigma, gtMask(&gt)),
		W: xorBytes(msg, kdf("BLS12381_TIMELOCK_H4_", sigma, len(msg))),
	}, nil
}

// DecryptTimeLock opens a ciphertext with the signature over its identity.
func DecryptTimeLock(group SignatureGroup, ct *TimeLockCiphertext, signature []byte) ([]byte, error) {
	if len(ct.V) != sigmaSize {
		return nil, interfaces.CryptoError("invalid ciphertext: sigma mask length %d", len(ct.V))
	}

	var gt bls12381.GT
	_, _, g1Gen, g2Gen := bls12381.Generators()

	if group == SignaturesInG1 {
		var sig bls12381.G1Affine
		if _, err := sig.SetBytes(signature); err != nil {
			return nil, interfaces.CryptoError("invalid BLS signature: %w", err)
		}
		var u bls12381.G2Affine
		if _, err := u.SetBytes(ct.U); err != nil {
			return nil, interfaces.CryptoError("invalid ciphertext point: %w", err)
		}
		var err error
		if gt, err = bls12381.Pair([]bls12381.G1Affine{sig}, []bls12381.G2Affine{u}); err != nil {
			return nil, interfaces.CryptoError("pairing: %w", err)
		}
		sigma := xorBytes(ct.V, gtMask(&gt))
		msg := xorBytes(ct.W, kdf("BLS12381_TIMELOCK_H4_", sigma, len(ct.W)))
		var check bls12381.G2Affine
		check.ScalarMultiplication(&g2Gen, hashToScalar(sigma, msg))
		if !check.Equal(&u) {
			return nil, interfaces.CryptoError("decryption failed: ciphertext is not valid for this signature")
		}
		return msg, nil
	}

	var sig bls12381.G2Affine
	if _, err := sig.SetBytes(signature); err != nil {
		return nil, interfaces.CryptoError("invalid BLS signature: %w", err)
	}
	var u bls12381.G1Affine
	if _, err := u.SetBytes(ct.U); err != nil {
		return nil, interfaces.CryptoError("invalid ciphertext point: %w", err)
	}
	var err error
	if gt, err = bls12381.Pair([]bls12381.G1Affine{u}, []bls12381.G2Affine{sig}); err != nil {
		return nil, interfaces.CryptoError("pairing: %w", err)
	}
	sigma := xorBytes(ct.V, gtMask(&gt))
	msg := xorBytes(ct.W, kdf("BLS12381_TIMELOCK_H4_", sigma, len(ct.W)))
	var check bls12381.G1Affine
	check.ScalarMultiplication(&g1Gen, hashToScalar(sigma, msg))
	if !check.Equal(&u) {
		return nil, interfaces.CryptoError("decryption failed: ciphertext is not valid for this signature")
	}
	return msg, nil
}

// DecryptWithSignatureShares combines shares, verifies the signature over identity and
// opens the serialized ciphertext.
func DecryptWithSignatureShares(publicKey, identity, ciphertext []byte, shares []json.RawMessage) ([]byte, error) {
	group, err := GroupForPublicKey(publicKey)
	if err != nil {
		return nil, err
	}
	ct, err := ParseTimeLockCiphertext(group, ciphertext)
	if err != nil {
		return nil, err
	}
	sig, err := CombineAndVerifySignatureShares(shares, publicKey, identity)
	if err != nil {
		return nil, err
	}
	return DecryptTimeLock(group, ct, sig.Signature)
}
