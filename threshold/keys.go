package threshold

import (
	"crypto/rand"
	"io"
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/ruteri/lit-quorum-client/interfaces"
)

// SecretKeyShare is a dealer issued Shamir share of a BLS secret key.
type SecretKeyShare struct {
	Identifier fr.Element
	Secret     fr.Element
}

// RandomScalar samples a uniformly random non-zero scalar.
func RandomScalar(rng io.Reader) (fr.Element, error) {
	if rng == nil {
		rng = rand.Reader
	}
	var buf [64]byte
	for {
		if _, err := io.ReadFull(rng, buf[:]); err != nil {
			return fr.Element{}, err
		}
		var e fr.Element
		e.SetBigInt(new(big.Int).SetBytes(buf[:]))
		if !e.IsZero() {
			return e, nil
		}
	}
}

// SplitSecret deals n shares of secret with the given threshold. Identifiers are
// 1..n.
func SplitSecret(secret fr.Element, threshold, n int, rng io.Reader) ([]SecretKeyShare, error) {
	if threshold < 2 || threshold > n {
		return nil, interfaces.ConfigError("invalid threshold %d for %d shares", threshold, n)
	}

	coeffs := make([]fr.Element, threshold)
	coeffs[0] = secret
	for i := 1; i < threshold; i++ {
		c, err := RandomScalar(rng)
		if err != nil {
			return nil, err
		}
		coeffs[i] = c
	}

	shares := make([]SecretKeyShare, n)
	for i := 0; i < n; i++ {
		var x fr.Element
		x.SetUint64(uint64(i + 1))
		// Horner evaluation
		var y fr.Element
		for j := threshold - 1; j >= 0; j-- {
			y.Mul(&y, &x)
			y.Add(&y, &coeffs[j])
		}
		shares[i] = SecretKeyShare{Identifier: x, Secret: y}
	}
	return shares, nil
}

// PublicKey returns the compressed public key of secret for the given signature group.
func PublicKey(group SignatureGroup, secret fr.Element) []byte {
	_, _, g1Gen, g2Gen := bls12381.Generators()
	s := secret.BigInt(new(big.Int))
	if group == SignaturesInG1 {
		var pk bls12381.G2Affine
		pk.ScalarMultiplication(&g2Gen, s)
		b := pk.Bytes()
		return b[:]
	}
	var pk bls12381.G1Affine
	pk.ScalarMultiplication(&g1Gen, s)
	b := pk.Bytes()
	return b[:]
}

// Sign produces a proof-of-possession scheme BLS signature.
func Sign(group SignatureGroup, secret fr.Element, msg []byte) ([]byte, error) {
	s := secret.BigInt(new(big.Int))
	if group == SignaturesInG1 {
		hm, err := bls12381.HashToG1(msg, []byte(dstSignaturesInG1))
		if err != nil {
			return nil, err
		}
		var sig bls12381.G1Affine
		sig.ScalarMultiplication(&hm, s)
		b := sig.Bytes()
		return b[:], nil
	}
	hm, err := bls12381.HashToG2(msg, []byte(dstSignaturesInG2))
	if err != nil {
		return nil, err
	}
	var sig bls12381.G2Affine
	sig.ScalarMultiplication(&hm, s)
	b := sig.Bytes()
	return b[:], nil
}

// SignShare signs msg with a key share.
func SignShare(group SignatureGroup, share SecretKeyShare, msg []byte) (SignatureShare, error) {
	sig, err := Sign(group, share.Secret, msg)
	if err != nil {
		return SignatureShare{}, err
	}
	return SignatureShare{Identifier: share.Identifier, Value: sig}, nil
}
