package sessions

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"time"

	"github.com/ruteri/lit-quorum-client/common"
	"github.com/ruteri/lit-quorum-client/interfaces"
)

const (
	DerivedViaNacl = "litSessionSignViaNacl"
	AlgoEd25519    = "ed25519"

	issuedAtLayout = "2006-01-02T15:04:05.000Z"
)

// DefaultMaxPrice is 2^128-1, meaning no cap.
var DefaultMaxPrice = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// SigningTemplate is the document signed by the session key for one node. Field order
// is part of the signed bytes.
type SigningTemplate struct {
	SessionKey              string                              `json:"sessionKey"`
	ResourceAbilityRequests []interfaces.ResourceAbilityRequest `json:"resourceAbilityRequests"`
	Capabilities            []interfaces.AuthSig                `json:"capabilities"`
	IssuedAt                string                              `json:"issuedAt"`
	Expiration              string                              `json:"expiration"`
	NodeAddress             string                              `json:"nodeAddress"`
	MaxPrice                string                              `json:"maxPrice"`
}

// PerNodeMaxPrice splits a user price cap evenly over nodeCount nodes, rounding down.
// A nil cap yields nil.
func PerNodeMaxPrice(userMaxPrice *big.Int, nodeCount int) *big.Int {
	if userMaxPrice == nil || nodeCount <= 0 {
		return nil
	}
	return new(big.Int).Quo(userMaxPrice, big.NewInt(int64(nodeCount)))
}

// FormatMaxPrice encodes a price as lower-case hex without prefix. nil is DefaultMaxPrice.
func FormatMaxPrice(price *big.Int) string {
	if price == nil {
		price = DefaultMaxPrice
	}
	return price.Text(16)
}

// Issue signs one session signature per node, each capped at maxPrice (nil for no cap).
func Issue(auth *interfaces.AuthContext, nodeURLs []string, maxPrice *big.Int) (interfaces.SessionSigs, error) {
	prices := make([]interfaces.NodePrice, len(nodeURLs))
	for i, url := range nodeURLs {
		prices[i] = interfaces.NodePrice{URL: url, Price: maxPrice}
	}
	return IssueWithPrices(auth, prices)
}

// IssueWithPrices signs one session signature per node with a node specific price cap.
func IssueWithPrices(auth *interfaces.AuthContext, nodes []interfaces.NodePrice) (interfaces.SessionSigs, error) {
	return issueAt(auth, nodes, time.Now())
}

func issueAt(auth *interfaces.AuthContext, nodes []interfaces.NodePrice, now time.Time) (interfaces.SessionSigs, error) {
	if auth == nil {
		return nil, interfaces.ConfigError("auth context is required")
	}
	key, err := signingKey(auth.SessionKeyPair)
	if err != nil {
		return nil, err
	}

	capabilities := make([]interfaces.AuthSig, 0, len(auth.AuthConfig.CapabilityAuthSigs)+1)
	capabilities = append(capabilities, auth.AuthConfig.CapabilityAuthSigs...)
	capabilities = append(capabilities, auth.DelegationAuthSig)

	base := SigningTemplate{
		SessionKey:              auth.SessionKeyPair.PublicKey,
		ResourceAbilityRequests: signableRequests(auth.AuthConfig.Resources),
		Capabilities:            capabilities,
		IssuedAt:                now.UTC().Format(issuedAtLayout),
		Expiration:              auth.AuthConfig.Expiration,
	}

	sigs := make(interfaces.SessionSigs, len(nodes))
	for _, node := range nodes {
		toSign := base
		toSign.NodeAddress = node.URL
		toSign.MaxPrice = FormatMaxPrice(node.Price)

		signed, err := common.MarshalJSON(toSign)
		if err != nil {
			return nil, interfaces.CryptoError("serializing session template: %w", err)
		}
		sigs[node.URL] = interfaces.AuthSig{
			Sig:           hex.EncodeToString(ed25519.Sign(key, signed)),
			DerivedVia:    DerivedViaNacl,
			SignedMessage: string(signed),
			Address:       auth.SessionKeyPair.PublicKey,
			Algo:          AlgoEd25519,
		}
	}
	return sigs, nil
}

// Verify checks a session signature addressed to nodeURL and returns the signed template.
func Verify(sig interfaces.AuthSig, nodeURL string, now time.Time) (*SigningTemplate, error) {
	if sig.DerivedVia != DerivedViaNacl {
		return nil, interfaces.CryptoError("unsupported session signature derivation %q", sig.DerivedVia)
	}
	pub, err := hex.DecodeString(SessionPublicKeyHex(sig.Address))
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return nil, interfaces.CryptoError("invalid session public key")
	}
	raw, err := hex.DecodeString(sig.Sig)
	if err != nil {
		return nil, interfaces.CryptoError("invalid session signature encoding: %w", err)
	}
	if !ed25519.Verify(pub, []byte(sig.SignedMessage), raw) {
		return nil, interfaces.CryptoError("invalid session signature")
	}

	var tmpl SigningTemplate
	if err := json.Unmarshal([]byte(sig.SignedMessage), &tmpl); err != nil {
		return nil, interfaces.CryptoError("invalid session template: %w", err)
	}
	if tmpl.NodeAddress != nodeURL {
		return nil, interfaces.CryptoError("session signature is for %s, not %s", tmpl.NodeAddress, nodeURL)
	}
	if tmpl.Expiration != "" {
		exp, err := time.Parse(time.RFC3339, tmpl.Expiration)
		if err != nil {
			return nil, interfaces.CryptoError("invalid session expiration: %w", err)
		}
		if now.After(exp) {
			return nil, interfaces.CryptoError("session signature expired at %s", tmpl.Expiration)
		}
	}
	return &tmpl, nil
}

// Allows reports whether the session template grants ability over the resource key
// ("{prefix}://{resource}"), honouring "*" wildcards.
func (t *SigningTemplate) Allows(ability interfaces.LitAbility, prefix, resource string) bool {
	for _, r := range t.ResourceAbilityRequests {
		if r.Ability != ability || r.Resource.ResourcePrefix != prefix {
			continue
		}
		if r.Resource.Resource == "*" || r.Resource.Resource == resource {
			return true
		}
	}
	return false
}
