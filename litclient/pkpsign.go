package litclient

import (
	"context"
	"math/big"

	"github.com/ruteri/lit-quorum-client/api"
	"github.com/ruteri/lit-quorum-client/cryptoutils"
	"github.com/ruteri/lit-quorum-client/interfaces"
	"github.com/ruteri/lit-quorum-client/network"
	"github.com/ruteri/lit-quorum-client/sessions"
	"github.com/ruteri/lit-quorum-client/threshold"
)

// PkpSignParams describes a signing request for a programmable key pair.
type PkpSignParams struct {
	// Chain selects the pre-hash for ECDSA schemes: "ethereum", "bitcoin" or "cosmos".
	Chain         string
	SigningScheme string
	// Pubkey is the PKP public key, hex.
	Pubkey string
	ToSign []byte

	// BypassAutoHashing sends ToSign as is.
	BypassAutoHashing bool

	// UserMaxPrice overrides the config's price cap for this request.
	UserMaxPrice *big.Int
}

// PkpSign asks a threshold of nodes to sign with a PKP and combines their shares.
func (c *Client) PkpSign(ctx context.Context, params PkpSignParams, auth *interfaces.AuthContext) (*threshold.SignedData, error) {
	return withStaleKeyRetry(ctx, c, "pkpSign", func(hs *interfaces.HandshakeResult) (*threshold.SignedData, error) {
		return c.pkpSign(ctx, hs, params, auth)
	})
}

// PkpSignEthereum signs msg with the PKP using keccak256 and secp256k1.
func (c *Client) PkpSignEthereum(ctx context.Context, pubkey string, msg []byte, auth *interfaces.AuthContext) (*threshold.SignedData, error) {
	return c.PkpSign(ctx, PkpSignParams{
		Chain:         "ethereum",
		SigningScheme: cryptoutils.SchemeEcdsaK256Sha256,
		Pubkey:        pubkey,
		ToSign:        msg,
	}, auth)
}

func (c *Client) userMaxPrice(override *big.Int) *big.Int {
	if override != nil {
		return override
	}
	return c.config.UserMaxPrice
}

func (c *Client) pkpSign(ctx context.Context, hs *interfaces.HandshakeResult, params PkpSignParams, auth *interfaces.AuthContext) (*threshold.SignedData, error) {
	toSign, err := cryptoutils.HashForSigning(params.SigningScheme, params.Chain, params.ToSign, params.BypassAutoHashing)
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(hs)
	if err != nil {
		return nil, err
	}
	required := max(1, hs.Threshold)

	nodes, err := c.selector.SelectNodes(ctx, hs, interfaces.ProductSign, "pkpSign", required)
	if err != nil {
		return nil, err
	}
	urls := network.URLs(nodes)

	sigs, err := sessions.Issue(auth, urls, sessions.PerNodeMaxPrice(c.userMaxPrice(params.UserMaxPrice), required))
	if err != nil {
		return nil, err
	}

	nodeSet := api.NodeSetFromURLs(urls)
	bodies := make([]network.NodeRequest, len(urls))
	for i, url := range urls {
		bodies[i] = network.NodeRequest{URL: url, Body: &api.PKPSignRequest{
			ToSign:        toSign,
			SigningScheme: params.SigningScheme,
			Pubkey:        params.Pubkey,
			AuthSig:       sigs[url],
			NodeSet:       nodeSet,
			Epoch:         hs.Epoch,
			AuthMethods:   []interfaces.AuthMethod{},
		}}
	}

	values, err := c.dispatch(ctx, req, c.config.Endpoints.PKPSign, bodies, required)
	if err != nil {
		return nil, err
	}
	data, err := network.DecodeData[api.PKPSignNodeData](values)
	if err != nil {
		return nil, err
	}

	shares := make([]threshold.SignedMessageShare, 0, len(data))
	for _, d := range data {
		if !d.Success {
			continue
		}
		share, err := threshold.ParseSignedMessageShare(d.SignatureShare)
		if err != nil {
			return nil, err
		}
		shares = append(shares, *share)
	}
	if len(shares) < required {
		return nil, interfaces.NewError(interfaces.KindNetwork, interfaces.ErrInsufficientSuccesses, "insufficient signature shares: got %d, need %d", len(shares), required)
	}

	return threshold.CombineAndVerify(shares)
}
