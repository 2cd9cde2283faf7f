package threshold

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ruteri/lit-quorum-client/interfaces"
)

const resultSuccess = "success"

// BlsSignedMessageShare is a node's BLS share over an arbitrary message.
type BlsSignedMessageShare struct {
	Message        string          `json:"message"`
	Result         string          `json:"result"`
	PeerID         string          `json:"peer_id"`
	ShareID        string          `json:"share_id"`
	SignatureShare json.RawMessage `json:"signature_share"`
	VerifyingShare json.RawMessage `json:"verifying_share"`
	PublicKey      string          `json:"public_key"`
	SigType        string          `json:"sig_type"`
}

// SignedMessageShare is the externally tagged union nodes return for signing requests.
type SignedMessageShare struct {
	Frost *FrostSignedMessageShare `json:"FrostSignedMessageShare,omitempty"`
	Bls   *BlsSignedMessageShare   `json:"BlsSignedMessageShare,omitempty"`
	Ecdsa *EcdsaSignedMessageShare `json:"EcdsaSignedMessageShare,omitempty"`
}

// PeerID returns the id of the node that produced the share.
func (s *SignedMessageShare) PeerID() string {
	switch {
	case s.Frost != nil:
		return s.Frost.PeerID
	case s.Bls != nil:
		return s.Bls.PeerID
	case s.Ecdsa != nil:
		return s.Ecdsa.PeerID
	}
	return ""
}

// ParseSignedMessageShare decodes a share. The share may also arrive as a JSON string
// holding the encoded object.
func ParseSignedMessageShare(raw json.RawMessage) (*SignedMessageShare, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, `"`) {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, interfaces.CryptoError("invalid signature share: %w", err)
		}
		raw = json.RawMessage(inner)
	}
	var share SignedMessageShare
	if err := json.Unmarshal(raw, &share); err != nil {
		return nil, interfaces.CryptoError("invalid signature share: %w", err)
	}
	if share.Frost == nil && share.Bls == nil && share.Ecdsa == nil {
		return nil, interfaces.CryptoError("invalid signature share: unknown share type")
	}
	return &share, nil
}

// CombineAndVerify combines the successful shares of one signing request. FROST shares
// take priority over BLS shares which take priority over ECDSA shares; a kind is only
// combined when more than one successful share of it is present.
func CombineAndVerify(shares []SignedMessageShare) (*SignedData, error) {
	var (
		frostShares []FrostSignedMessageShare
		blsShares   []BlsSignedMessageShare
		ecdsaShares []EcdsaSignedMessageShare
	)
	for _, s := range shares {
		switch {
		case s.Frost != nil && s.Frost.Result == resultSuccess:
			frostShares = append(frostShares, *s.Frost)
		case s.Bls != nil && s.Bls.Result == resultSuccess:
			blsShares = append(blsShares, *s.Bls)
		case s.Ecdsa != nil && s.Ecdsa.Result == resultSuccess:
			ecdsaShares = append(ecdsaShares, *s.Ecdsa)
		}
	}

	switch {
	case len(frostShares) > 1:
		return CombineFrostShares(frostShares)
	case len(blsShares) > 1:
		return CombineBlsMessageShares(blsShares)
	case len(ecdsaShares) > 1:
		return CombineEcdsaShares(ecdsaShares)
	}
	return nil, interfaces.CryptoError("no valid signature shares found")
}

// CombineBlsMessageShares combines BLS shares over a message and verifies the result.
// On failure the peers whose share does not verify against their verifying share are
// reported.
func CombineBlsMessageShares(shares []BlsSignedMessageShare) (*SignedData, error) {
	first := shares[0]
	msg, err := decodeQuotedHex(first.Message)
	if err != nil {
		return nil, interfaces.CryptoError("invalid bls message: %w", err)
	}
	pub, err := decodeQuotedHex(first.PublicKey)
	if err != nil {
		return nil, interfaces.CryptoError("invalid bls public key: %w", err)
	}

	raws := make([]json.RawMessage, len(shares))
	for i := range shares {
		raws[i] = unwrapJSONString(shares[i].SignatureShare)
	}

	combined, err := CombineAndVerifySignatureShares(raws, pub, msg)
	if err != nil {
		return nil, interfaces.CryptoError("bls signature from shares is invalid. Invalid share peer ids: %s", strings.Join(invalidBlsPeers(shares, pub, msg), ", "))
	}

	return &SignedData{
		SigType:      first.SigType,
		Signature:    combined.Signature,
		VerifyingKey: pub,
		SignedData:   msg,
	}, nil
}

func unwrapJSONString(raw json.RawMessage) json.RawMessage {
	var inner string
	if err := json.Unmarshal(raw, &inner); err == nil {
		return json.RawMessage(inner)
	}
	return raw
}

// invalidBlsPeers checks each share against its verifying share.
func invalidBlsPeers(shares []BlsSignedMessageShare, pub, msg []byte) []string {
	group, err := GroupForPublicKey(pub)
	if err != nil {
		return nil
	}

	var invalid []string
	for _, share := range shares {
		sig, sigErr := decodeAnyShare(group, unwrapJSONString(share.SignatureShare))
		vk, vkErr := decodeAnyShare(oppositeGroup(group), unwrapJSONString(share.VerifyingShare))
		if sigErr != nil || vkErr != nil || !sig.Identifier.Equal(&vk.Identifier) {
			invalid = append(invalid, share.PeerID)
			continue
		}
		if Verify(group, vk.Value, msg, sig.Value) != nil {
			invalid = append(invalid, share.PeerID)
		}
	}
	return invalid
}

// oppositeGroup maps a signature group to the group whose signatures have the size of
// its public keys. Verifying shares are encoded like signature shares of that group.
func oppositeGroup(g SignatureGroup) SignatureGroup {
	if g == SignaturesInG1 {
		return SignaturesInG2
	}
	return SignaturesInG1
}

func decodeAnyShare(group SignatureGroup, raw json.RawMessage) (SignatureShare, error) {
	var lastErr error
	for _, dec := range shareDecoders {
		if dec.group != group {
			continue
		}
		share, err := dec.decode(raw)
		if err == nil {
			return share, nil
		}
		lastErr = err
	}

	var bare struct {
		Identifier string `json:"identifier"`
		Value      string `json:"value"`
	}
	if err := json.Unmarshal(raw, &bare); err == nil && bare.Identifier != "" {
		wrapped, _ := json.Marshal(map[string]any{"ProofOfPossession": bare})
		return decodeModernShare(group.SignatureSize())(wrapped)
	}
	return SignatureShare{}, lastErr
}

// SignedData is a combined and verified threshold signature.
type SignedData struct {
	SigType      string
	Signature    []byte
	VerifyingKey []byte
	SignedData   []byte
	// RecoveryID is set for ECDSA signatures only.
	RecoveryID *byte
}

type signedDataJSON struct {
	Signature    string `json:"signature"`
	VerifyingKey string `json:"verifying_key"`
	SignedData   string `json:"signed_data"`
	RecoveryID   *byte  `json:"recovery_id"`
}

// MarshalJSON encodes the signature, key and signed data as hex strings.
func (d SignedData) MarshalJSON() ([]byte, error) {
	return json.Marshal(signedDataJSON{
		Signature:    hex.EncodeToString(d.Signature),
		VerifyingKey: hex.EncodeToString(d.VerifyingKey),
		SignedData:   hex.EncodeToString(d.SignedData),
		RecoveryID:   d.RecoveryID,
	})
}

// SignatureHex returns the 0x prefixed signature.
func (d *SignedData) SignatureHex() string {
	return "0x" + hex.EncodeToString(d.Signature)
}

// EthereumSignature returns r || s || v with v in {27, 28}.
func (d *SignedData) EthereumSignature() ([]byte, error) {
	if d.RecoveryID == nil || len(d.Signature) != 64 {
		return nil, fmt.Errorf("%s signature has no ethereum encoding", d.SigType)
	}
	out := make([]byte, 65)
	copy(out, d.Signature)
	out[64] = 27 + *d.RecoveryID&1
	return out, nil
}
