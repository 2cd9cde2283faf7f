package interfaces

import (
	"context"
	"encoding/json"
)

// ValidatorDiscovery returns the active validator set of a network.
// protocol is the URL scheme prefix ("http://" or "https://") used to build node URLs.
type ValidatorDiscovery interface {
	DiscoverValidators(ctx context.Context, protocol string) (*ValidatorSet, error)
}

// PriceFeed returns the current node prices for the given products.
type PriceFeed interface {
	NodesForRequest(ctx context.Context, products []ProductID) (*PriceFeedResult, error)
}

// AttestationVerifier verifies the attestation payload a node returned during the
// handshake against the challenge the client sent to that node.
type AttestationVerifier interface {
	Verify(ctx context.Context, attestation json.RawMessage, challenge []byte) error
}

// AttestationVerifierFunc adapts a function to AttestationVerifier.
type AttestationVerifierFunc func(ctx context.Context, attestation json.RawMessage, challenge []byte) error

func (f AttestationVerifierFunc) Verify(ctx context.Context, attestation json.RawMessage, challenge []byte) error {
	return f(ctx, attestation, challenge)
}
