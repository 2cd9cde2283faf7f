package threshold

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

var errZeroIdentifier = errors.New("share identifier is zero")

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[len(b)-1-i] = b[i]
	}
	return out
}

// scalarFromLE decodes a canonical little-endian BLS12-381 scalar.
func scalarFromLE(b []byte) (fr.Element, error) {
	var e fr.Element
	if len(b) != fr.Bytes {
		return e, fmt.Errorf("invalid scalar length %d", len(b))
	}
	v := new(big.Int).SetBytes(reverseBytes(b))
	if v.Cmp(fr.Modulus()) >= 0 {
		return e, errors.New("scalar is not canonical")
	}
	e.SetBigInt(v)
	return e, nil
}

// scalarToLE encodes a BLS12-381 scalar as 32 little-endian bytes.
func scalarToLE(e *fr.Element) []byte {
	be := e.Bytes()
	return reverseBytes(be[:])
}

// lagrangeAtZero returns the Lagrange coefficients at x=0 for the given identifiers.
func lagrangeAtZero(ids []fr.Element) ([]fr.Element, error) {
	for i := range ids {
		if ids[i].IsZero() {
			return nil, errZeroIdentifier
		}
		for j := i + 1; j < len(ids); j++ {
			if ids[i].Equal(&ids[j]) {
				return nil, errors.New("duplicate share identifier")
			}
		}
	}

	coeffs := make([]fr.Element, len(ids))
	for i := range ids {
		num := fr.One()
		den := fr.One()
		for j := range ids {
			if i == j {
				continue
			}
			num.Mul(&num, &ids[j])
			var diff fr.Element
			diff.Sub(&ids[j], &ids[i])
			den.Mul(&den, &diff)
		}
		den.Inverse(&den)
		coeffs[i].Mul(&num, &den)
	}
	return coeffs, nil
}
