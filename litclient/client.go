package litclient

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ruteri/lit-quorum-client/api/clients"
	"github.com/ruteri/lit-quorum-client/common"
	"github.com/ruteri/lit-quorum-client/cryptoutils"
	"github.com/ruteri/lit-quorum-client/interfaces"
	"github.com/ruteri/lit-quorum-client/network"
	"github.com/ruteri/lit-quorum-client/registry"
)

// staleKeyMarkers are error fragments nodes produce when they cannot open a request
// encrypted to an identity key they no longer hold.
var staleKeyMarkers = []string{
	"can't decrypt",
	"encrypted payload decryption failed",
	"E2EE decryption failed",
}

// IsStaleKeyError reports whether err suggests the cached handshake is out of date.
// Only network errors qualify; crypto errors from opening node replies are never retried.
func IsStaleKeyError(err error) bool {
	if err == nil || !errors.Is(err, interfaces.ErrNetwork) {
		return false
	}
	msg := err.Error()
	for _, marker := range staleKeyMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Options are the collaborators of a Client. Zero values get defaults.
type Options struct {
	// Transport defaults to an HTTP node client.
	Transport network.NodeTransport

	// Discovery finds bootstrap nodes when the config lists none.
	Discovery interfaces.ValidatorDiscovery

	// PriceFeed enables price ranked node selection.
	PriceFeed interfaces.PriceFeed

	// Verifier checks node attestations when the config requires them.
	Verifier interfaces.AttestationVerifier

	// SiweBuilder writes the delegation messages signed by sign-session-key.
	SiweBuilder SiweBuilder

	Log *slog.Logger
}

// Client talks to a threshold network. It is safe for concurrent use.
type Client struct {
	config     *network.Config
	log        *slog.Logger
	handshaker *network.Handshaker
	selector   *network.Selector
	dispatcher *network.Dispatcher
	siwe       SiweBuilder

	mu        sync.RWMutex
	handshake *interfaces.HandshakeResult
}

// New creates a client and performs the initial handshake.
func New(ctx context.Context, cfg *network.Config, opts Options) (*Client, error) {
	if cfg == nil {
		return nil, interfaces.ConfigError("network config is required")
	}

	log := common.LoggerOrDefault(opts.Log)
	transport := opts.Transport
	if transport == nil {
		transport = clients.NewNodeClient(cfg.Version())
	}

	c := &Client{
		config: cfg,
		log:    log,
		handshaker: &network.Handshaker{
			Config:    cfg,
			Transport: transport,
			Verifier:  opts.Verifier,
			Discovery: opts.Discovery,
			Log:       log,
		},
		selector: &network.Selector{
			PriceFeed: opts.PriceFeed,
			Protocol:  cfg.HTTPProtocol,
			Log:       log,
		},
		dispatcher: &network.Dispatcher{
			Transport: transport,
			Log:       log,
		},
		siwe: opts.SiweBuilder,
	}

	if err := c.Refresh(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Connect creates a client for cfg. Collaborators missing from opts are wired from
// the config: the staking and price feed contracts through cfg.RPCURL when it is
// set, and attestation verification when required.
func Connect(ctx context.Context, cfg *network.Config, opts Options) (*Client, error) {
	if cfg == nil {
		return nil, interfaces.ConfigError("network config is required")
	}

	if cfg.RPCURL != "" && (opts.Discovery == nil || opts.PriceFeed == nil) {
		eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
		if err != nil {
			return nil, interfaces.ConfigError("dialing rpc %s: %w", cfg.RPCURL, err)
		}
		if opts.Discovery == nil && cfg.Contracts.Staking != (ethcommon.Address{}) {
			opts.Discovery = registry.NewStakingClient(eth, cfg.Contracts.Staking, cfg.Realm)
		}
		if opts.PriceFeed == nil && cfg.Contracts.PriceFeed != (ethcommon.Address{}) {
			opts.PriceFeed = registry.NewPriceFeedClient(eth, cfg.Contracts.PriceFeed, cfg.Realm)
		}
	}

	if cfg.RequiredAttestation && opts.Verifier == nil {
		opts.Verifier = cryptoutils.MultiVerifier{
			cryptoutils.AttestationTypeSevSnp: &cryptoutils.SevSnpVerifier{},
			cryptoutils.AttestationTypeTDX:    &cryptoutils.TDXVerifier{},
		}
	}

	return New(ctx, cfg, opts)
}

// Config returns the network config of the client.
func (c *Client) Config() *network.Config {
	return c.config
}

// Handshake returns the current handshake result. It must not be modified.
func (c *Client) Handshake() *interfaces.HandshakeResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handshake
}

// Refresh runs a new handshake and replaces the cached result on success.
func (c *Client) Refresh(ctx context.Context) error {
	result, err := c.handshaker.Handshake(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.handshake = result
	c.mu.Unlock()
	return nil
}

// withStaleKeyRetry runs op against the current handshake. When the nodes cannot
// decrypt the request the client handshakes again and retries once.
func withStaleKeyRetry[T any](ctx context.Context, c *Client, name string, op func(hs *interfaces.HandshakeResult) (T, error)) (T, error) {
	result, err := op(c.Handshake())
	if err == nil || !IsStaleKeyError(err) {
		return result, err
	}

	c.log.Info("node could not decrypt request, refreshing handshake",
		slog.String("operation", name),
		slog.Any("error", err))

	if err := c.Refresh(ctx); err != nil {
		var zero T
		return zero, err
	}
	return op(c.Handshake())
}

// request is the per operation state shared by the network operations.
type request struct {
	hs        *interfaces.HandshakeResult
	jit       *cryptoutils.JitKeySet
	requestID string
}

func (c *Client) newRequest(hs *interfaces.HandshakeResult) (*request, error) {
	identityKeys := make(map[string]string, len(hs.ServerKeys))
	for url, keys := range hs.ServerKeys {
		identityKeys[url] = keys.NodeIdentityKey
	}
	jit, err := cryptoutils.NewJitKeySet(identityKeys)
	if err != nil {
		return nil, err
	}
	return &request{hs: hs, jit: jit, requestID: network.NewRequestID()}, nil
}

func (c *Client) dispatch(ctx context.Context, req *request, endpoint network.Endpoint, bodies []network.NodeRequest, minSuccesses int) ([]json.RawMessage, error) {
	return c.dispatcher.Dispatch(ctx, req.jit, endpoint, req.requestID, req.hs.Epoch, bodies, minSuccesses)
}
