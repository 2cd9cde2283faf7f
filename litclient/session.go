package litclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ruteri/lit-quorum-client/api"
	"github.com/ruteri/lit-quorum-client/common"
	"github.com/ruteri/lit-quorum-client/cryptoutils"
	"github.com/ruteri/lit-quorum-client/interfaces"
	"github.com/ruteri/lit-quorum-client/network"
	"github.com/ruteri/lit-quorum-client/sessions"
	"github.com/ruteri/lit-quorum-client/threshold"
)

const (
	pkpSessionStatement = "Lit Protocol PKP session signature"
	defaultSiweDomain   = "localhost"

	DerivedViaBls = "lit.bls"
	AlgoLitBls    = "LIT_BLS"

	blsSignatureHexLen = 192
)

// SiweParams are the inputs of a session delegation message.
type SiweParams struct {
	// Address is the PKP's ethereum address.
	Address   string
	Domain    string
	Statement string
	// URI is the session key URI, "lit:session:{hex}".
	URI        string
	Nonce      string
	Expiration string
	Resources  []interfaces.ResourceAbilityRequest
}

// SiweBuilder renders the delegation message nodes sign for a session key.
type SiweBuilder func(ctx context.Context, params SiweParams) (string, error)

// CustomAuth selects a Lit Action that authorizes the session instead of an auth method.
type CustomAuth struct {
	LitActionIpfsID string
	LitActionCode   string
	JsParams        any
}

// SignSessionKeyParams describe a request to have the nodes delegate a PKP to a
// session key.
type SignSessionKeyParams struct {
	SessionPublicKey string
	PkpPublicKey     string
	AuthMethods      []interfaces.AuthMethod
	AuthConfig       interfaces.AuthConfig

	// Custom switches to custom authorization through a Lit Action.
	Custom *CustomAuth

	UserMaxPrice *big.Int
}

// AuthContextParams describe the auth context to create. SessionKeyPair and
// DelegationAuthSig are either both set, to reuse a delegation, or both nil.
type AuthContextParams struct {
	PkpPublicKey string
	AuthMethods  []interfaces.AuthMethod
	AuthConfig   interfaces.AuthConfig

	SessionKeyPair    *interfaces.SessionKeyPair
	DelegationAuthSig *interfaces.AuthSig

	UserMaxPrice *big.Int
}

// SignSessionKey asks the nodes to sign a delegation of the PKP to a session key and
// returns the combined delegation signature.
func (c *Client) SignSessionKey(ctx context.Context, params SignSessionKeyParams) (*interfaces.AuthSig, error) {
	name := "signSessionKey"
	if params.Custom != nil {
		name = "signCustomSessionKey"
	}
	return withStaleKeyRetry(ctx, c, name, func(hs *interfaces.HandshakeResult) (*interfaces.AuthSig, error) {
		return c.signSessionKey(ctx, hs, name, params)
	})
}

func sessionStatement(extra string) string {
	if extra == "" {
		return pkpSessionStatement
	}
	return pkpSessionStatement + " " + extra
}

func (c *Client) signSessionKey(ctx context.Context, hs *interfaces.HandshakeResult, name string, params SignSessionKeyParams) (*interfaces.AuthSig, error) {
	if c.siwe == nil {
		return nil, interfaces.ConfigError("a siwe builder is required to sign session keys")
	}
	if params.Custom != nil && params.Custom.LitActionIpfsID == "" && params.Custom.LitActionCode == "" {
		return nil, interfaces.ConfigError("custom auth requires lit_action_ipfs_id or lit_action_code")
	}

	address, err := cryptoutils.PKPEthAddress(params.PkpPublicKey)
	if err != nil {
		return nil, interfaces.ConfigError("invalid pkp public key: %w", err)
	}

	req, err := c.newRequest(hs)
	if err != nil {
		return nil, err
	}
	required := max(1, hs.Threshold)

	product := interfaces.ProductSignSessionKey
	if params.Custom != nil {
		product = interfaces.ProductLitAction
	}
	nodes, err := c.selector.SelectNodes(ctx, hs, product, name, required)
	if err != nil {
		return nil, err
	}
	urls := network.URLs(nodes)

	domain := params.AuthConfig.Domain
	if domain == "" {
		domain = defaultSiweDomain
	}
	siwe, err := c.siwe(ctx, SiweParams{
		Address:    address,
		Domain:     domain,
		Statement:  sessionStatement(params.AuthConfig.Statement),
		URI:        sessions.SessionKeyURI(params.SessionPublicKey),
		Nonce:      hs.CoreNodeConfig.LatestBlockhash,
		Expiration: params.AuthConfig.Expiration,
		Resources:  params.AuthConfig.Resources,
	})
	if err != nil {
		return nil, fmt.Errorf("building siwe message: %w", err)
	}

	maxPrice := sessions.DefaultMaxPrice
	if perNode := sessions.PerNodeMaxPrice(c.userMaxPrice(params.UserMaxPrice), required); perNode != nil {
		maxPrice = perNode
	}

	body := &api.SignSessionKeyRequest{
		SessionKey:   sessions.SessionKeyURI(params.SessionPublicKey),
		AuthMethods:  params.AuthMethods,
		PkpPublicKey: params.PkpPublicKey,
		SiweMessage:  siwe,
		CurveType:    "BLS",
		Epoch:        hs.Epoch,
		NodeSet:      api.NodeSetFromURLs(urls),
		MaxPrice:     maxPrice.String(),
	}
	if body.AuthMethods == nil || params.Custom != nil {
		body.AuthMethods = []interfaces.AuthMethod{}
	}
	if params.Custom != nil {
		body.LitActionIpfsID = params.Custom.LitActionIpfsID
		if params.Custom.LitActionCode != "" {
			body.LitActionCode = base64.StdEncoding.EncodeToString([]byte(params.Custom.LitActionCode))
		}
		if params.Custom.JsParams != nil {
			body.JsParams = &api.JsParams{JsParams: params.Custom.JsParams}
		}
	}

	bodies := make([]network.NodeRequest, len(urls))
	for i, url := range urls {
		bodies[i] = network.NodeRequest{URL: url, Body: body}
	}

	values, err := c.dispatch(ctx, req, c.config.Endpoints.SignSessionKey, bodies, required)
	if err != nil {
		return nil, err
	}
	data, err := network.DecodeData[api.SignSessionKeyNodeData](values)
	if err != nil {
		return nil, err
	}

	shares := make([]json.RawMessage, 0, len(data))
	messages := make([]string, 0, len(data))
	for _, d := range data {
		share, err := common.MarshalJSON(d.SignatureShare)
		if err != nil {
			return nil, interfaces.CryptoError("encoding share: %w", err)
		}
		shares = append(shares, share)
		if d.SiweMessage != "" {
			messages = append(messages, d.SiweMessage)
		}
	}
	if len(shares) < required {
		return nil, interfaces.NewError(interfaces.KindNetwork, interfaces.ErrInsufficientSuccesses, "insufficient signature shares for signSessionKey: got %d, need %d", len(shares), required)
	}

	combined, err := threshold.CombineSignatureShares(shares)
	if err != nil {
		return nil, err
	}
	sigHex := combined.Hex()
	if len(sigHex) != blsSignatureHexLen {
		return nil, interfaces.CryptoError("combined BLS signature must be %d hex chars; got %d", blsSignatureHexLen, len(sigHex))
	}

	signedMessage, ok := network.MostCommon(messages)
	if !ok {
		signedMessage = siwe
	}

	sig, err := common.MarshalJSON(map[string]string{"ProofOfPossession": sigHex})
	if err != nil {
		return nil, interfaces.CryptoError("encoding delegation signature: %w", err)
	}

	return &interfaces.AuthSig{
		Sig:           string(sig),
		DerivedVia:    DerivedViaBls,
		SignedMessage: signedMessage,
		Address:       address,
		Algo:          AlgoLitBls,
	}, nil
}

// CreatePkpAuthContext creates an auth context whose delegation is signed by the
// network for a PKP authenticated with params.AuthMethods.
func (c *Client) CreatePkpAuthContext(ctx context.Context, params AuthContextParams) (*interfaces.AuthContext, error) {
	return c.createAuthContext(ctx, params, nil)
}

// CreateCustomAuthContext is like CreatePkpAuthContext but authorizes the session
// with a Lit Action.
func (c *Client) CreateCustomAuthContext(ctx context.Context, params AuthContextParams, custom CustomAuth) (*interfaces.AuthContext, error) {
	return c.createAuthContext(ctx, params, &custom)
}

func (c *Client) createAuthContext(ctx context.Context, params AuthContextParams, custom *CustomAuth) (*interfaces.AuthContext, error) {
	if (params.SessionKeyPair == nil) != (params.DelegationAuthSig == nil) {
		return nil, interfaces.ConfigError("Both sessionKeyPair and delegationAuthSig must be provided together, or neither should be provided")
	}
	if params.SessionKeyPair != nil {
		return CreatePkpAuthContextFromPreGenerated(*params.SessionKeyPair, *params.DelegationAuthSig, params.AuthConfig)
	}

	keyPair, err := sessions.GenerateSessionKeyPair()
	if err != nil {
		return nil, err
	}

	delegation, err := c.SignSessionKey(ctx, SignSessionKeyParams{
		SessionPublicKey: keyPair.PublicKey,
		PkpPublicKey:     params.PkpPublicKey,
		AuthMethods:      params.AuthMethods,
		AuthConfig:       params.AuthConfig,
		Custom:           custom,
		UserMaxPrice:     params.UserMaxPrice,
	})
	if err != nil {
		return nil, err
	}
	if err := sessions.ValidateDelegationAuthSig(*delegation, keyPair.PublicKey); err != nil {
		return nil, err
	}

	return &interfaces.AuthContext{
		SessionKeyPair:    keyPair,
		AuthConfig:        params.AuthConfig,
		DelegationAuthSig: *delegation,
	}, nil
}

// CreatePkpAuthContextFromPreGenerated rebuilds an auth context from a stored session
// key and its delegation signature.
func CreatePkpAuthContextFromPreGenerated(keyPair interfaces.SessionKeyPair, delegation interfaces.AuthSig, authConfig interfaces.AuthConfig) (*interfaces.AuthContext, error) {
	if err := sessions.ValidateDelegationAuthSig(delegation, keyPair.PublicKey); err != nil {
		return nil, err
	}
	return &interfaces.AuthContext{
		SessionKeyPair:    keyPair,
		AuthConfig:        authConfig,
		DelegationAuthSig: delegation,
	}, nil
}
