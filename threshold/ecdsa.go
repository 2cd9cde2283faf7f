package threshold

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/hex"
	"encoding/json"
	"errors"
	"math/big"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/ruteri/lit-quorum-client/cryptoutils"
	"github.com/ruteri/lit-quorum-client/interfaces"
)

// EcdsaSignedMessageShare is a node's share of a threshold ECDSA signature. Scalar and
// point fields may be hex strings or JSON encoded hex strings.
type EcdsaSignedMessageShare struct {
	Digest              string `json:"digest"`
	Result              string `json:"result"`
	ShareID             string `json:"share_id"`
	PeerID              string `json:"peer_id"`
	SignatureShare      string `json:"signature_share"`
	BigR                string `json:"big_r"`
	CompressedPublicKey string `json:"compressed_public_key"`
	PublicKey           string `json:"public_key"`
	SigType             string `json:"sig_type"`
}

// ecdsaCurve describes one of the supported ECDSA curves.
type ecdsaCurve struct {
	params     *elliptic.CurveParams
	scalarSize int
	parsePoint func(b []byte) (x, y *big.Int, err error)
	verify     func(pub []byte, digest []byte, r, s *big.Int) bool
	// recoveryID derives the recovery id from the combined signature
	recoveryID func(pub []byte, digest []byte, r, s *big.Int, parity byte) (byte, error)
}

var k256Curve = &ecdsaCurve{
	params:     secp256k1.S256().Params(),
	scalarSize: 32,
	parsePoint: func(b []byte) (*big.Int, *big.Int, error) {
		pk, err := secp256k1.ParsePubKey(b)
		if err != nil {
			return nil, nil, err
		}
		return pk.X(), pk.Y(), nil
	},
	verify: func(pub, digest []byte, r, s *big.Int) bool {
		pk, err := secp256k1.ParsePubKey(pub)
		if err != nil {
			return false
		}
		var rs, ss secp256k1.ModNScalar
		if rs.SetByteSlice(r.Bytes()) || ss.SetByteSlice(s.Bytes()) {
			return false
		}
		return secpecdsa.NewSignature(&rs, &ss).Verify(digest, pk)
	},
	recoveryID: func(pub, digest []byte, r, s *big.Int, _ byte) (byte, error) {
		expected, err := secp256k1.ParsePubKey(pub)
		if err != nil {
			return 0, err
		}
		compact := make([]byte, 65)
		r.FillBytes(compact[1:33])
		s.FillBytes(compact[33:])
		for v := byte(0); v < 2; v++ {
			compact[0] = 27 + v
			recovered, _, err := secpecdsa.RecoverCompact(compact, digest)
			if err == nil && recovered.IsEqual(expected) {
				return v, nil
			}
		}
		return 0, errors.New("unable to derive recovery id")
	},
}

func nistCurve(curve elliptic.Curve) *ecdsaCurve {
	size := (curve.Params().BitSize + 7) / 8
	return &ecdsaCurve{
		params:     curve.Params(),
		scalarSize: size,
		parsePoint: func(b []byte) (*big.Int, *big.Int, error) {
			var x, y *big.Int
			if len(b) == 1+size {
				x, y = elliptic.UnmarshalCompressed(curve, b)
			} else {
				x, y = elliptic.Unmarshal(curve, b) //nolint:staticcheck
			}
			if x == nil {
				return nil, nil, errors.New("invalid curve point")
			}
			return x, y, nil
		},
		verify: func(pub, digest []byte, r, s *big.Int) bool {
			x, y := elliptic.Unmarshal(curve, pub) //nolint:staticcheck
			if x == nil {
				x, y = elliptic.UnmarshalCompressed(curve, pub)
			}
			if x == nil {
				return false
			}
			return ecdsa.Verify(&ecdsa.PublicKey{Curve: curve, X: x, Y: y}, digest, r, s)
		},
		recoveryID: func(_, _ []byte, _, _ *big.Int, parity byte) (byte, error) {
			return parity, nil
		},
	}
}

var ecdsaCurves = map[string]*ecdsaCurve{
	cryptoutils.SchemeEcdsaK256Sha256: k256Curve,
	cryptoutils.SchemeEcdsaP256Sha256: nistCurve(elliptic.P256()),
	cryptoutils.SchemeEcdsaP384Sha384: nistCurve(elliptic.P384()),
}

// decodeQuotedHex accepts "abcd", "0xabcd" and the JSON encoded form "\"abcd\"".
func decodeQuotedHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(s), &inner); err != nil {
			return nil, err
		}
		s = inner
	}
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}

// CombineEcdsaShares sums successful ECDSA signature shares into a low-s signature and
// verifies it against the shares' public key.
func CombineEcdsaShares(shares []EcdsaSignedMessageShare) (*SignedData, error) {
	if len(shares) == 0 {
		return nil, interfaces.CryptoError("no ecdsa signature shares")
	}
	first := shares[0]
	curve, ok := ecdsaCurves[first.SigType]
	if !ok {
		return nil, interfaces.CryptoError("unsupported ecdsa signature type %s", first.SigType)
	}
	n := curve.params.N

	digest, err := decodeQuotedHex(first.Digest)
	if err != nil {
		return nil, interfaces.CryptoError("invalid digest: %w", err)
	}
	pub, err := decodeQuotedHex(first.PublicKey)
	if err != nil {
		return nil, interfaces.CryptoError("invalid public key: %w", err)
	}

	var rx, ry *big.Int
	s := new(big.Int)
	for i, share := range shares {
		bigR, err := decodeQuotedHex(share.BigR)
		if err != nil {
			return nil, interfaces.CryptoError("invalid share found")
		}
		x, y, err := curve.parsePoint(bigR)
		if err != nil {
			return nil, interfaces.CryptoError("invalid share found")
		}
		if i == 0 {
			rx, ry = x, y
		} else if rx.Cmp(x) != 0 || ry.Cmp(y) != 0 {
			return nil, interfaces.CryptoError("invalid share found")
		}

		sBytes, err := decodeQuotedHex(share.SignatureShare)
		if err != nil || len(sBytes) > curve.scalarSize {
			return nil, interfaces.CryptoError("invalid share found")
		}
		si := new(big.Int).SetBytes(sBytes)
		if si.Cmp(n) >= 0 {
			return nil, interfaces.CryptoError("invalid share found")
		}
		s.Add(s, si)
	}
	s.Mod(s, n)

	r := new(big.Int).Mod(rx, n)
	if r.Sign() == 0 || s.Sign() == 0 {
		return nil, interfaces.CryptoError("invalid signature result")
	}

	parity := byte(ry.Bit(0))
	if rx.Cmp(n) >= 0 {
		parity |= 2
	}
	halfN := new(big.Int).Rsh(n, 1)
	if s.Cmp(halfN) > 0 {
		s.Sub(n, s)
		parity ^= 1
	}

	if !curve.verify(pub, digest, r, s) {
		return nil, interfaces.CryptoError("ecdsa verification failed")
	}

	recID, err := curve.recoveryID(pub, digest, r, s, parity)
	if err != nil {
		return nil, interfaces.CryptoError("%w", err)
	}

	sig := make([]byte, 2*curve.scalarSize)
	r.FillBytes(sig[:curve.scalarSize])
	s.FillBytes(sig[curve.scalarSize:])

	return &SignedData{
		SigType:      first.SigType,
		Signature:    sig,
		VerifyingKey: pub,
		SignedData:   digest,
		RecoveryID:   &recID,
	}, nil
}
