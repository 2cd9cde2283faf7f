package threshold

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/ruteri/lit-quorum-client/interfaces"
)

// SignatureGroup selects which BLS12-381 group holds signatures.
type SignatureGroup int

const (
	// SignaturesInG2 uses 48-byte G1 public keys and 96-byte G2 signatures.
	SignaturesInG2 SignatureGroup = iota
	// SignaturesInG1 uses 96-byte G2 public keys and 48-byte G1 signatures.
	SignaturesInG1
)

const (
	dstSignaturesInG2 = "BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_POP_"
	dstSignaturesInG1 = "BLS_SIG_BLS12381G1_XMD:SHA-256_SSWU_RO_POP_"

	g1Size = bls12381.SizeOfG1AffineCompressed
	g2Size = bls12381.SizeOfG2AffineCompressed
)

func (g SignatureGroup) String() string {
	if g == SignaturesInG1 {
		return "G1"
	}
	return "G2"
}

// SignatureSize returns the compressed signature length in bytes.
func (g SignatureGroup) SignatureSize() int {
	if g == SignaturesInG1 {
		return g1Size
	}
	return g2Size
}

// PublicKeySize returns the compressed public key length in bytes.
func (g SignatureGroup) PublicKeySize() int {
	if g == SignaturesInG1 {
		return g2Size
	}
	return g1Size
}

// GroupForPublicKey picks the signature group from a public key length.
func GroupForPublicKey(publicKey []byte) (SignatureGroup, error) {
	switch len(publicKey) {
	case g1Size:
		return SignaturesInG2, nil
	case g2Size:
		return SignaturesInG1, nil
	default:
		return 0, interfaces.CryptoError("invalid BLS public key length (expected 96 or 192 hex chars, got %d)", len(publicKey)*2)
	}
}

// SignatureShare is one node's BLS signature share.
type SignatureShare struct {
	Identifier fr.Element
	Value      []byte
}

// CombinedSignature is the result of combining BLS signature shares.
type CombinedSignature struct {
	Group     SignatureGroup
	Signature []byte
	// Decoder names the share encoding that was accepted.
	Decoder string
}

// Hex returns the hex encoded signature.
func (c *CombinedSignature) Hex() string {
	return hex.EncodeToString(c.Signature)
}

type shareDecoder struct {
	name   string
	group  SignatureGroup
	decode func(raw json.RawMessage) (SignatureShare, error)
}

// shareDecoders is the ordered list of supported share encodings. The modern encoding
// carries a 32-byte scalar identifier; the legacy encoding prefixes the point with a
// single identifier byte.
var shareDecoders = []shareDecoder{
	{name: "modern-g2", group: SignaturesInG2, decode: decodeModernShare(g2Size)},
	{name: "modern-g1", group: SignaturesInG1, decode: decodeModernShare(g1Size)},
	{name: "legacy-g2", group: SignaturesInG2, decode: decodeLegacyShare(g2Size)},
	{name: "legacy-g1", group: SignaturesInG1, decode: decodeLegacyShare(g1Size)},
}

func decodeHexField(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
}

func decodeModernShare(size int) func(json.RawMessage) (SignatureShare, error) {
	return func(raw json.RawMessage) (SignatureShare, error) {
		var wrapper struct {
			ProofOfPossession *struct {
				Identifier string `json:"identifier"`
				Value      string `json:"value"`
			} `json:"ProofOfPossession"`
		}
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return SignatureShare{}, err
		}
		if wrapper.ProofOfPossession == nil {
			return SignatureShare{}, errors.New("missing ProofOfPossession share")
		}

		idBytes, err := decodeHexField(wrapper.ProofOfPossession.Identifier)
		if err != nil {
			return SignatureShare{}, fmt.Errorf("invalid identifier: %w", err)
		}
		id, err := scalarFromLE(idBytes)
		if err != nil {
			return SignatureShare{}, fmt.Errorf("invalid identifier: %w", err)
		}

		value, err := decodeHexField(wrapper.ProofOfPossession.Value)
		if err != nil {
			return SignatureShare{}, fmt.Errorf("invalid share value: %w", err)
		}
		if len(value) != size {
			return SignatureShare{}, fmt.Errorf("invalid share value length %d", len(value))
		}
		return SignatureShare{Identifier: id, Value: value}, nil
	}
}

func decodeLegacyShare(size int) func(json.RawMessage) (SignatureShare, error) {
	return func(raw json.RawMessage) (SignatureShare, error) {
		var wrapper struct {
			ProofOfPossession *string `json:"ProofOfPossession"`
		}
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return SignatureShare{}, err
		}
		if wrapper.ProofOfPossession == nil {
			return SignatureShare{}, errors.New("missing ProofOfPossession share")
		}

		inner, err := decodeHexField(*wrapper.ProofOfPossession)
		if err != nil {
			return SignatureShare{}, fmt.Errorf("invalid legacy share: %w", err)
		}
		if len(inner) != size+1 {
			return SignatureShare{}, fmt.Errorf("invalid legacy share length %d", len(inner))
		}

		var id fr.Element
		id.SetUint64(uint64(inner[0]))
		return SignatureShare{Identifier: id, Value: inner[1:]}, nil
	}
}

// EncodeShare returns the modern JSON encoding of a share.
func EncodeShare(share SignatureShare) json.RawMessage {
	out, _ := json.Marshal(map[string]any{
		"ProofOfPossession": map[string]string{
			"identifier": hex.EncodeToString(scalarToLE(&share.Identifier)),
			"value":      hex.EncodeToString(share.Value),
		},
	})
	return out
}

// EncodeLegacyShare returns the legacy JSON encoding of a share. The identifier must fit in one byte.
func EncodeLegacyShare(share SignatureShare) (json.RawMessage, error) {
	id := share.Identifier.BigInt(new(big.Int))
	if !id.IsUint64() || id.Uint64() > 255 {
		return nil, errors.New("identifier does not fit the legacy encoding")
	}
	inner := append([]byte{byte(id.Uint64())}, share.Value...)
	return json.Marshal(map[string]string{"ProofOfPossession": hex.EncodeToString(inner)})
}

func decodeAll(dec shareDecoder, raws []json.RawMessage) ([]SignatureShare, error) {
	shares := make([]SignatureShare, 0, len(raws))
	for _, raw := range raws {
		share, err := dec.decode(raw)
		if err != nil {
			return nil, err
		}
		shares = append(shares, share)
	}
	return shares, nil
}

// CombineSignatureShares combines JSON encoded BLS signature shares, accepting the
// first encoding in decoder order for which every share parses and combines.
func CombineSignatureShares(raws []json.RawMessage) (*CombinedSignature, error) {
	if len(raws) < 2 {
		return nil, interfaces.CryptoError("at least two BLS signature shares are required")
	}

	for _, dec := range shareDecoders {
		shares, err := decodeAll(dec, raws)
		if err != nil {
			continue
		}
		sig, err := combineShares(dec.group, shares)
		if err != nil {
			continue
		}
		return &CombinedSignature{Group: dec.group, Signature: sig, Decoder: dec.name}, nil
	}

	return nil, interfaces.CryptoError("invalid or unsupported BLS signature share format")
}

// CombineAndVerifySignatureShares combines shares like CombineSignatureShares but only
// accepts a combination that verifies against publicKey over msg.
func CombineAndVerifySignatureShares(raws []json.RawMessage, publicKey, msg []byte) (*CombinedSignature, error) {
	if len(raws) < 2 {
		return nil, interfaces.CryptoError("at least two BLS signature shares are required")
	}
	group, err := GroupForPublicKey(publicKey)
	if err != nil {
		return nil, err
	}

	combined := false
	for _, dec := range shareDecoders {
		if dec.group != group {
			continue
		}
		shares, err := decodeAll(dec, raws)
		if err != nil {
			continue
		}
		sig, err := combineShares(dec.group, shares)
		if err != nil {
			continue
		}
		combined = true
		if err := Verify(group, publicKey, msg, sig); err != nil {
			continue
		}
		return &CombinedSignature{Group: group, Signature: sig, Decoder: dec.name}, nil
	}

	if combined {
		return nil, interfaces.CryptoError("combined BLS signature failed verification")
	}
	return nil, interfaces.CryptoError("invalid or unsupported BLS signature share format")
}

func combineShares(group SignatureGroup, shares []SignatureShare) ([]byte, error) {
	ids := make([]fr.Element, len(shares))
	for i := range shares {
		ids[i] = shares[i].Identifier
	}
	coeffs, err := lagrangeAtZero(ids)
	if err != nil {
		return nil, err
	}

	if group == SignaturesInG1 {
		var acc bls12381.G1Jac
		for i := range shares {
			var p bls12381.G1Affine
			if _, err := p.SetBytes(shares[i].Value); err != nil {
				return nil, err
			}
			var term bls12381.G1Affine
			term.ScalarMultiplication(&p, coeffs[i].BigInt(new(big.Int)))
			if i == 0 {
				acc.FromAffine(&term)
			} else {
				acc.AddMixed(&term)
			}
		}
		var out bls12381.G1Affine
		out.FromJacobian(&acc)
		b := out.Bytes()
		return b[:], nil
	}

	var acc bls12381.G2Jac
	for i := range shares {
		var p bls12381.G2Affine
		if _, err := p.SetBytes(shares[i].Value); err != nil {
			return nil, err
		}
		var term bls12381.G2Affine
		term.ScalarMultiplication(&p, coeffs[i].BigInt(new(big.Int)))
		if i == 0 {
			acc.FromAffine(&term)
		} else {
			acc.AddMixed(&term)
		}
	}
	var out bls12381.G2Affine
	out.FromJacobian(&acc)
	b := out.Bytes()
	return b[:], nil
}

// Verify checks a proof-of-possession scheme BLS signature.
func Verify(group SignatureGroup, publicKey, msg, signature []byte) error {
	_, _, g1Gen, g2Gen := bls12381.Generators()

	if group == SignaturesInG1 {
		var pk bls12381.G2Affine
		if _, err := pk.SetBytes(publicKey); err != nil {
			return interfaces.CryptoError("invalid BLS public key: %w", err)
		}
		var sig bls12381.G1Affine
		if _, err := sig.SetBytes(signature); err != nil {
			return interfaces.CryptoError("invalid BLS signature: %w", err)
		}
		hm, err := bls12381.HashToG1(msg, []byte(dstSignaturesInG1))
		if err != nil {
			return interfaces.CryptoError("hashing message: %w", err)
		}
		var negG2 bls12381.G2Affine
		negG2.Neg(&g2Gen)
		ok, err := bls12381.PairingCheck([]bls12381.G1Affine{sig, hm}, []bls12381.G2Affine{negG2, pk})
		if err != nil || !ok {
			return interfaces.CryptoError("BLS signature verification failed")
		}
		return nil
	}

	var pk bls12381.G1Affine
	if _, err := pk.SetBytes(publicKey); err != nil {
		return interfaces.CryptoError("invalid BLS public key: %w", err)
	}
	var sig bls12381.G2Affine
	if _, err := sig.SetBytes(signature); err != nil {
		return interfaces.CryptoError("invalid BLS signature: %w", err)
	}
	hm, err := bls12381.HashToG2(msg, []byte(dstSignaturesInG2))
	if err != nil {
		return interfaces.CryptoError("hashing message: %w", err)
	}
	var negG1 bls12381.G1Affine
	negG1.Neg(&g1Gen)
	ok, err := bls12381.PairingCheck([]bls12381.G1Affine{negG1, pk}, []bls12381.G2Affine{sig, hm})
	if err != nil || !ok {
		return interfaces.CryptoError("BLS signature verification failed")
	}
	return nil
}
