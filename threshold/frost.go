package threshold

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"filippo.io/edwards25519"
	"github.com/ruteri/lit-quorum-client/cryptoutils"
	"github.com/ruteri/lit-quorum-client/interfaces"
)

const frostEd25519Context = "FROST-ED25519-SHA512-v1"

// FrostSignedMessageShare is a node's FROST signature share. Except for message and
// the bookkeeping fields every value is a JSON encoded string of the key material.
type FrostSignedMessageShare struct {
	Message            string `json:"message"`
	Result             string `json:"result"`
	ShareID            string `json:"share_id"`
	PeerID             string `json:"peer_id"`
	SignatureShare     string `json:"signature_share"`
	SigningCommitments string `json:"signing_commitments"`
	VerifyingShare     string `json:"verifying_share"`
	PublicKey          string `json:"public_key"`
	SigType            string `json:"sig_type"`
}

// FrostCommitments are the hiding and binding nonce commitments of a participant.
type FrostCommitments struct {
	Hiding  string `json:"hiding"`
	Binding string `json:"binding"`
}

// decodeFrostBytes accepts a hex string, a JSON encoded hex string, a JSON byte array
// or an object carrying one of those under "value", "id" or "bytes".
func decodeFrostBytes(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty field")
	}
	switch s[0] {
	case '"':
		var inner string
		if err := json.Unmarshal([]byte(s), &inner); err != nil {
			return nil, err
		}
		return decodeFrostBytes(inner)
	case '[':
		var arr []byte
		var ints []int
		if err := json.Unmarshal([]byte(s), &ints); err != nil {
			return nil, err
		}
		for _, v := range ints {
			if v < 0 || v > 255 {
				return nil, errors.New("byte value out of range")
			}
			arr = append(arr, byte(v))
		}
		return arr, nil
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(s), &obj); err != nil {
			return nil, err
		}
		for _, key := range []string{"value", "id", "bytes"} {
			if v, ok := obj[key]; ok {
				return decodeFrostBytes(string(v))
			}
		}
		return nil, errors.New("no value in object")
	}
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}

func edScalar(s string) (*edwards25519.Scalar, error) {
	b, err := decodeFrostBytes(s)
	if err != nil {
		return nil, err
	}
	return edwards25519.NewScalar().SetCanonicalBytes(b)
}

func edPoint(s string) (*edwards25519.Point, error) {
	b, err := decodeFrostBytes(s)
	if err != nil {
		return nil, err
	}
	return new(edwards25519.Point).SetBytes(b)
}

func frostHash(tag string, parts ...[]byte) *edwards25519.Scalar {
	h := sha512.New()
	if tag != "" {
		h.Write([]byte(frostEd25519Context))
		h.Write([]byte(tag))
	}
	for _, p := range parts {
		h.Write(p)
	}
	s, _ := edwards25519.NewScalar().SetUniformBytes(h.Sum(nil))
	return s
}

type frostParticipant struct {
	peerID    string
	id        *edwards25519.Scalar
	z         *edwards25519.Scalar
	hiding    *edwards25519.Point
	binding   *edwards25519.Point
	verifying *edwards25519.Point
	rho       *edwards25519.Scalar
}

func scalarOrder(s *edwards25519.Scalar) *big.Int {
	return new(big.Int).SetBytes(reverseBytes(s.Bytes()))
}

func parseFrostShare(share FrostSignedMessageShare) (*frostParticipant, error) {
	id, err := edScalar(share.ShareID)
	if err != nil {
		return nil, fmt.Errorf("share_id: %w", err)
	}
	z, err := edScalar(share.SignatureShare)
	if err != nil {
		return nil, fmt.Errorf("signature_share: %w", err)
	}

	commitmentsJSON := strings.TrimSpace(share.SigningCommitments)
	if strings.HasPrefix(commitmentsJSON, `"`) {
		if err := json.Unmarshal([]byte(commitmentsJSON), &commitmentsJSON); err != nil {
			return nil, fmt.Errorf("signing_commitments: %w", err)
		}
	}
	var commitments FrostCommitments
	if err := json.Unmarshal([]byte(commitmentsJSON), &commitments); err != nil {
		return nil, fmt.Errorf("signing_commitments: %w", err)
	}
	hiding, err := edPoint(commitments.Hiding)
	if err != nil {
		return nil, fmt.Errorf("hiding commitment: %w", err)
	}
	binding, err := edPoint(commitments.Binding)
	if err != nil {
		return nil, fmt.Errorf("binding commitment: %w", err)
	}

	p := &frostParticipant{peerID: share.PeerID, id: id, z: z, hiding: hiding, binding: binding}
	if share.VerifyingShare != "" {
		if p.verifying, err = edPoint(share.VerifyingShare); err != nil {
			return nil, fmt.Errorf("verifying_share: %w", err)
		}
	}
	return p, nil
}

// CombineFrostShares aggregates FROST(Ed25519, SHA-512) signature shares into an
// Ed25519 signature and verifies it against the group public key.
func CombineFrostShares(shares []FrostSignedMessageShare) (*SignedData, error) {
	if len(shares) == 0 {
		return nil, interfaces.CryptoError("no frost signature shares")
	}
	first := shares[0]
	if first.SigType != cryptoutils.SchemeSchnorrEd25519Sha512 {
		return nil, interfaces.CryptoError("unsupported frost scheme %s", first.SigType)
	}

	msg, err := decodeFrostBytes(first.Message)
	if err != nil {
		return nil, interfaces.CryptoError("invalid frost message: %w", err)
	}
	pkBytes, err := decodeFrostBytes(first.PublicKey)
	if err != nil || len(pkBytes) != ed25519.PublicKeySize {
		return nil, interfaces.CryptoError("invalid frost public key")
	}
	groupKey, err := new(edwards25519.Point).SetBytes(pkBytes)
	if err != nil {
		return nil, interfaces.CryptoError("invalid frost public key: %w", err)
	}

	participants := make([]*frostParticipant, 0, len(shares))
	for _, share := range shares {
		p, err := parseFrostShare(share)
		if err != nil {
			return nil, interfaces.CryptoError("invalid frost share from %s: %w", share.PeerID, err)
		}
		participants = append(participants, p)
	}
	sort.Slice(participants, func(i, j int) bool {
		return scalarOrder(participants[i].id).Cmp(scalarOrder(participants[j].id)) < 0
	})

	// binding factors
	var encoded bytes.Buffer
	for _, p := range participants {
		encoded.Write(p.id.Bytes())
		encoded.Write(p.hiding.Bytes())
		encoded.Write(p.binding.Bytes())
	}
	msgHash := sha512.Sum512(append([]byte(frostEd25519Context+"msg"), msg...))
	comHash := sha512.Sum512(append([]byte(frostEd25519Context+"com"), encoded.Bytes()...))
	prefix := append(append(bytes.Clone(groupKey.Bytes()), msgHash[:]...), comHash[:]...)

	groupCommitment := edwards25519.NewIdentityPoint()
	for _, p := range participants {
		p.rho = frostHash("rho", prefix, p.id.Bytes())
		var term edwards25519.Point
		term.ScalarMult(p.rho, p.binding)
		term.Add(&term, p.hiding)
		groupCommitment.Add(groupCommitment, &term)
	}

	z := edwards25519.NewScalar()
	for _, p := range participants {
		z.Add(z, p.z)
	}

	sig := make([]byte, 0, ed25519.SignatureSize)
	sig = append(sig, groupCommitment.Bytes()...)
	sig = append(sig, z.Bytes()...)

	if !ed25519.Verify(pkBytes, msg, sig) {
		cheaters := frostCheaters(participants, groupCommitment, groupKey, msg)
		return nil, interfaces.CryptoError("frost signature verification failed. Invalid share peer ids: %s", strings.Join(cheaters, ", "))
	}

	return &SignedData{
		SigType:      first.SigType,
		Signature:    sig,
		VerifyingKey: pkBytes,
		SignedData:   msg,
	}, nil
}

// frostCheaters returns the peers whose shares fail z_i*G == R_i + c*lambda_i*Y_i.
func frostCheaters(participants []*frostParticipant, groupCommitment, groupKey *edwards25519.Point, msg []byte) []string {
	c := frostHash("", groupCommitment.Bytes(), groupKey.Bytes(), msg)

	var cheaters []string
	for i, p := range participants {
		if p.verifying == nil {
			continue
		}
		lambda := edLagrange(participants, i)

		var lhs edwards25519.Point
		lhs.ScalarBaseMult(p.z)

		var ri, cy edwards25519.Point
		ri.ScalarMult(p.rho, p.binding)
		ri.Add(&ri, p.hiding)
		coeff := edwards25519.NewScalar().Multiply(c, lambda)
		cy.ScalarMult(coeff, p.verifying)
		ri.Add(&ri, &cy)

		if lhs.Equal(&ri) != 1 {
			cheaters = append(cheaters, p.peerID)
		}
	}
	return cheaters
}

func edLagrange(participants []*frostParticipant, i int) *edwards25519.Scalar {
	num := edwards25519.NewScalar().Set(scalarOne())
	den := edwards25519.NewScalar().Set(scalarOne())
	for j, p := range participants {
		if j == i {
			continue
		}
		num.Multiply(num, p.id)
		diff := edwards25519.NewScalar().Subtract(p.id, participants[i].id)
		den.Multiply(den, diff)
	}
	return num.Multiply(num, edwards25519.NewScalar().Invert(den))
}

func scalarOne() *edwards25519.Scalar {
	b := make([]byte, 32)
	b[0] = 1
	s, _ := edwards25519.NewScalar().SetCanonicalBytes(b)
	return s
}
