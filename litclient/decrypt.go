package litclient

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/ruteri/lit-quorum-client/api"
	"github.com/ruteri/lit-quorum-client/common"
	"github.com/ruteri/lit-quorum-client/interfaces"
	"github.com/ruteri/lit-quorum-client/network"
	"github.com/ruteri/lit-quorum-client/sessions"
	"github.com/ruteri/lit-quorum-client/threshold"
)

// EncryptParams describes data to encrypt under access control conditions. Either
// UnifiedAccessControlConditions or HashedAccessControlConditionsHex must be set.
type EncryptParams struct {
	DataToEncrypt                    []byte
	UnifiedAccessControlConditions   json.RawMessage
	HashedAccessControlConditionsHex string
	Metadata                         json.RawMessage
}

// EncryptResponse is a time-lock ciphertext and the hash it is bound to.
type EncryptResponse struct {
	// Ciphertext is base64 encoded.
	Ciphertext        string          `json:"ciphertext"`
	DataToEncryptHash string          `json:"dataToEncryptHash"`
	Metadata          json.RawMessage `json:"metadata,omitempty"`
}

// DecryptParams identifies a ciphertext and the conditions it was encrypted under.
type DecryptParams struct {
	Ciphertext                       string
	DataToEncryptHash                string
	UnifiedAccessControlConditions   json.RawMessage
	HashedAccessControlConditionsHex string
	Chain                            string
}

// DecryptResponse holds the recovered plaintext.
type DecryptResponse struct {
	DecryptedData []byte
}

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
}

func conditionsHashHex(unified json.RawMessage, hashedHex string) (string, error) {
	if hashedHex != "" {
		return hashedHex, nil
	}
	if len(unified) == 0 {
		return "", interfaces.AccessControlError("provide unified access control conditions or their hash")
	}
	sum, err := HashUnifiedAccessControlConditions(unified)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum), nil
}

func subnetPublicKey(hs *interfaces.HandshakeResult) ([]byte, error) {
	pub, err := decodeHex(hs.CoreNodeConfig.SubnetPubKey)
	if err != nil || len(pub) == 0 {
		return nil, interfaces.CryptoError("invalid subnet public key %q", hs.CoreNodeConfig.SubnetPubKey)
	}
	return pub, nil
}

// Encrypt encrypts data locally to the network's subnet key. Only the nodes, acting
// together, can produce the key that opens it, and only when the conditions are met.
func (c *Client) Encrypt(params EncryptParams) (*EncryptResponse, error) {
	condHash, err := conditionsHashHex(params.UnifiedAccessControlConditions, params.HashedAccessControlConditionsHex)
	if err != nil {
		return nil, err
	}

	pub, err := subnetPublicKey(c.Handshake())
	if err != nil {
		return nil, err
	}

	dataHash := sha256.Sum256(params.DataToEncrypt)
	dataHashHex := hex.EncodeToString(dataHash[:])

	ct, err := threshold.EncryptTimeLock(pub, []byte(AccessControlIdentity(condHash, dataHashHex)), params.DataToEncrypt)
	if err != nil {
		return nil, err
	}
	raw, err := ct.MarshalBinary()
	if err != nil {
		return nil, interfaces.CryptoError("encoding ciphertext: %w", err)
	}

	return &EncryptResponse{
		Ciphertext:        base64.StdEncoding.EncodeToString(raw),
		DataToEncryptHash: dataHashHex,
		Metadata:          params.Metadata,
	}, nil
}

// Decrypt asks a threshold of nodes for decryption shares and opens the ciphertext.
func (c *Client) Decrypt(ctx context.Context, params DecryptParams, auth *interfaces.AuthContext) (*DecryptResponse, error) {
	return withStaleKeyRetry(ctx, c, "decrypt", func(hs *interfaces.HandshakeResult) (*DecryptResponse, error) {
		return c.decrypt(ctx, hs, params, auth)
	})
}

func (c *Client) decrypt(ctx context.Context, hs *interfaces.HandshakeResult, params DecryptParams, auth *interfaces.AuthContext) (*DecryptResponse, error) {
	req, err := c.newRequest(hs)
	if err != nil {
		return nil, err
	}
	required := max(1, hs.Threshold)

	nodes, err := c.selector.SelectNodes(ctx, hs, interfaces.ProductDecryption, "decrypt", required)
	if err != nil {
		return nil, err
	}
	urls := network.URLs(nodes)

	sigs, err := sessions.Issue(auth, urls, nil)
	if err != nil {
		return nil, err
	}

	canonical := json.RawMessage("[]")
	if len(params.UnifiedAccessControlConditions) > 0 {
		if canonical, err = CanonicalizeUnifiedAccessControlConditions(params.UnifiedAccessControlConditions); err != nil {
			return nil, err
		}
	}
	condHash, err := conditionsHashHex(params.UnifiedAccessControlConditions, params.HashedAccessControlConditionsHex)
	if err != nil {
		return nil, err
	}
	identity := AccessControlIdentity(condHash, params.DataToEncryptHash)

	bodies := make([]network.NodeRequest, len(urls))
	for i, url := range urls {
		bodies[i] = network.NodeRequest{URL: url, Body: &api.DecryptRequest{
			Ciphertext:                     params.Ciphertext,
			DataToEncryptHash:              params.DataToEncryptHash,
			AuthSig:                        sigs[url],
			Chain:                          params.Chain,
			UnifiedAccessControlConditions: canonical,
		}}
	}

	values, err := c.dispatch(ctx, req, c.config.Endpoints.EncryptionSign, bodies, required)
	if err != nil {
		return nil, err
	}
	data, err := network.DecodeData[api.DecryptNodeData](values)
	if err != nil {
		return nil, err
	}

	shares := make([]json.RawMessage, 0, len(data))
	for _, d := range data {
		share, err := common.MarshalJSON(d.SignatureShare)
		if err != nil {
			return nil, interfaces.CryptoError("encoding share: %w", err)
		}
		shares = append(shares, share)
	}
	if len(shares) < required {
		return nil, interfaces.NewError(interfaces.KindNetwork, interfaces.ErrInsufficientSuccesses, "insufficient decryption shares: got %d, need %d", len(shares), required)
	}

	pub, err := subnetPublicKey(hs)
	if err != nil {
		return nil, err
	}
	ciphertext, err := base64.StdEncoding.DecodeString(params.Ciphertext)
	if err != nil {
		return nil, interfaces.CryptoError("invalid ciphertext encoding: %w", err)
	}

	plaintext, err := threshold.DecryptWithSignatureShares(pub, []byte(identity), ciphertext, shares)
	if err != nil {
		return nil, err
	}
	return &DecryptResponse{DecryptedData: plaintext}, nil
}
