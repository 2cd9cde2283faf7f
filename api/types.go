package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ruteri/lit-quorum-client/cryptoutils"
	"github.com/ruteri/lit-quorum-client/interfaces"
)

// Headers sent with every node request.
const (
	SDKVersionHeader = "X-Lit-SDK-Version"
	SDKTypeHeader    = "X-Lit-SDK-Type"
	RequestIDHeader  = "X-Request-Id"

	// SDKType is the client type nodes expect in SDKTypeHeader.
	SDKType = "Typescript"
)

// HandshakeClientPublicKey is the placeholder client key sent in handshake requests.
const HandshakeClientPublicKey = "test"

// HandshakeRequest is the plain JSON body of a handshake call.
type HandshakeRequest struct {
	ClientPublicKey string `json:"clientPublicKey"`
	Challenge       string `json:"challenge"`
	Epoch           uint64 `json:"epoch"`
}

// NodeSetEntry names one node participating in an operation.
type NodeSetEntry struct {
	SocketAddress string `json:"socketAddress"`
	Value         uint64 `json:"value"`
}

// NodeSetFromURLs strips the scheme of every node URL.
func NodeSetFromURLs(urls []string) []NodeSetEntry {
	out := make([]NodeSetEntry, 0, len(urls))
	for _, url := range urls {
		addr := strings.ReplaceAll(url, "http://", "")
		addr = strings.ReplaceAll(addr, "https://", "")
		out = append(out, NodeSetEntry{SocketAddress: addr, Value: 1})
	}
	return out
}

// EncryptedRequest is the body posted to an operation endpoint: an envelope plus the epoch.
type EncryptedRequest struct {
	Version string                      `json:"version"`
	Payload cryptoutils.EnvelopePayload `json:"payload"`
	Epoch   uint64                      `json:"epoch"`
}

// NewEncryptedRequest wraps env for the given epoch.
func NewEncryptedRequest(env *cryptoutils.Envelope, epoch uint64) *EncryptedRequest {
	return &EncryptedRequest{Version: env.Version, Payload: env.Payload, Epoch: epoch}
}

// Envelope returns the envelope part of the request.
func (r *EncryptedRequest) Envelope() *cryptoutils.Envelope {
	return &cryptoutils.Envelope{Version: r.Version, Payload: r.Payload}
}

// EncryptedBatch is a node's answer to an encrypted request.
type EncryptedBatch struct {
	Success bool                   `json:"success"`
	Values  []cryptoutils.Envelope `json:"values"`
	Error   json.RawMessage        `json:"error,omitempty"`
}

type rawBatch struct {
	Success *bool                  `json:"success"`
	Values  []cryptoutils.Envelope `json:"values"`
	Error   json.RawMessage        `json:"error"`
}

func parseBatch(raw json.RawMessage) (*EncryptedBatch, bool) {
	var b rawBatch
	if err := json.Unmarshal(raw, &b); err != nil || b.Success == nil {
		return nil, false
	}
	return &EncryptedBatch{Success: *b.Success, Values: b.Values, Error: b.Error}, true
}

// ParseEnvelope decodes raw as an envelope carrying both version and payload.
func ParseEnvelope(raw json.RawMessage) (*cryptoutils.Envelope, bool) {
	var probe struct {
		Version *string                      `json:"version"`
		Payload *cryptoutils.EnvelopePayload `json:"payload"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || probe.Version == nil || probe.Payload == nil {
		return nil, false
	}
	return &cryptoutils.Envelope{Version: *probe.Version, Payload: *probe.Payload}, true
}

// ParseEncryptedBatch accepts the success body shapes nodes produce, in order:
// a batch, a batch under "data", an envelope under "data", a bare envelope.
func ParseEncryptedBatch(body []byte) (*EncryptedBatch, error) {
	if batch, ok := parseBatch(body); ok {
		return batch, nil
	}

	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && len(wrapper.Data) > 0 {
		if batch, ok := parseBatch(wrapper.Data); ok {
			return batch, nil
		}
		if env, ok := ParseEnvelope(wrapper.Data); ok {
			return &EncryptedBatch{Success: true, Values: []cryptoutils.Envelope{*env}}, nil
		}
	}

	if env, ok := ParseEnvelope(body); ok {
		return &EncryptedBatch{Success: true, Values: []cryptoutils.Envelope{*env}}, nil
	}

	return nil, interfaces.NetworkError("unexpected response shape; body=%s", string(bytes.TrimSpace(body)))
}

// ByteArray marshals as a JSON array of numbers, the way nodes expect raw bytes.
type ByteArray []byte

func (b ByteArray) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, v := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, "%d", v)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func (b *ByteArray) UnmarshalJSON(data []byte) error {
	decoded, err := cryptoutils.ParseAttestationBytes(data, "bytes")
	if err != nil {
		return err
	}
	*b = decoded
	return nil
}

// JsParams nests user parameters the way the execute endpoint reads them.
type JsParams struct {
	JsParams any `json:"jsParams"`
}

// DecryptRequest is sent to the encryption-sign endpoint.
type DecryptRequest struct {
	Ciphertext                     string             `json:"ciphertext"`
	DataToEncryptHash              string             `json:"dataToEncryptHash"`
	AuthSig                        interfaces.AuthSig `json:"authSig"`
	Chain                          string             `json:"chain"`
	UnifiedAccessControlConditions json.RawMessage    `json:"unifiedAccessControlConditions"`
}

// PKPSignRequest is sent to the pkp sign endpoint.
type PKPSignRequest struct {
	ToSign        ByteArray               `json:"toSign"`
	SigningScheme string                  `json:"signingScheme"`
	Pubkey        string                  `json:"pubkey"`
	AuthSig       interfaces.AuthSig      `json:"authSig"`
	NodeSet       []NodeSetEntry          `json:"nodeSet"`
	Epoch         uint64                  `json:"epoch"`
	AuthMethods   []interfaces.AuthMethod `json:"authMethods"`
}

// ExecuteJsRequest is sent to the execute endpoint. Code is base64 encoded.
type ExecuteJsRequest struct {
	AuthSig  interfaces.AuthSig `json:"authSig"`
	NodeSet  []NodeSetEntry     `json:"nodeSet"`
	Code     string             `json:"code,omitempty"`
	IpfsID   string             `json:"ipfsId,omitempty"`
	JsParams *JsParams          `json:"jsParams,omitempty"`
}

// SignSessionKeyRequest is sent to the sign-session-key endpoint. MaxPrice is decimal
// and LitActionCode is base64 encoded.
type SignSessionKeyRequest struct {
	SessionKey      string                  `json:"sessionKey"`
	AuthMethods     []interfaces.AuthMethod `json:"authMethods"`
	PkpPublicKey    string                  `json:"pkpPublicKey"`
	SiweMessage     string                  `json:"siweMessage"`
	CurveType       string                  `json:"curveType"`
	Epoch           uint64                  `json:"epoch"`
	NodeSet         []NodeSetEntry          `json:"nodeSet"`
	MaxPrice        string                  `json:"maxPrice"`
	LitActionIpfsID string                  `json:"litActionIpfsId,omitempty"`
	LitActionCode   string                  `json:"litActionCode,omitempty"`
	JsParams        *JsParams               `json:"jsParams,omitempty"`
}

// NodeResponse is the decrypted plaintext of a node value. Data holds the
// operation specific result.
type NodeResponse struct {
	Data json.RawMessage `json:"data"`
}

// ProofOfPossessionShare is a BLS signature share as nodes report it.
type ProofOfPossessionShare struct {
	Identifier string `json:"identifier"`
	Value      string `json:"value"`
}

// BlsShareWrapper wraps a ProofOfPossessionShare under its scheme name.
type BlsShareWrapper struct {
	ProofOfPossession ProofOfPossessionShare `json:"ProofOfPossession"`
}

// DecryptNodeData is a node's decryption share.
type DecryptNodeData struct {
	SignatureShare BlsShareWrapper `json:"signatureShare"`
	ShareID        string          `json:"shareId"`
}

// PKPSignNodeData is a node's signing share. SignatureShare is handed to the
// combiner unchanged.
type PKPSignNodeData struct {
	Success        bool            `json:"success"`
	SignatureShare json.RawMessage `json:"signatureShare"`
}

// SignedDataEntry is one named signature share produced inside a lit action.
type SignedDataEntry struct {
	SignatureShare json.RawMessage `json:"signatureShare"`
}

// ExecuteJsNodeData is a node's lit action result.
type ExecuteJsNodeData struct {
	Success       bool                       `json:"success"`
	SignedData    map[string]SignedDataEntry `json:"signedData"`
	ClaimData     map[string]json.RawMessage `json:"claimData"`
	DecryptedData json.RawMessage            `json:"decryptedData,omitempty"`
	Response      string                     `json:"response"`
	Logs          string                     `json:"logs"`
}

// SignSessionKeyNodeData is a node's share of a session delegation signature.
type SignSessionKeyNodeData struct {
	SignatureShare BlsShareWrapper `json:"signatureShare"`
	SiweMessage    string          `json:"siweMessage"`
}
