package network

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/lit-quorum-client/api"
	"github.com/ruteri/lit-quorum-client/api/clients"
	"github.com/ruteri/lit-quorum-client/common"
	"github.com/ruteri/lit-quorum-client/interfaces"
	"golang.org/x/sync/errgroup"
)

// NodeTransport sends requests to individual nodes. *clients.NodeClient implements it.
type NodeTransport interface {
	Handshake(ctx context.Context, fullURL, requestID string, request *api.HandshakeRequest) (*interfaces.NodeKeys, error)
	PostEncrypted(ctx context.Context, fullURL, requestID string, request *api.EncryptedRequest, jitSecret [32]byte) (*api.EncryptedBatch, error)
}

var _ NodeTransport = (*clients.NodeClient)(nil)

// NewRequestID returns a random 32 character hex request id.
func NewRequestID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// Handshaker connects to the bootstrap nodes of a network.
type Handshaker struct {
	Config    *Config
	Transport NodeTransport

	// Verifier checks node attestations when Config.RequiredAttestation is set.
	Verifier interfaces.AttestationVerifier

	// Discovery provides bootstrap URLs when Config.BootstrapURLs is empty.
	Discovery interfaces.ValidatorDiscovery

	Log *slog.Logger
}

type handshakeOutcome struct {
	keys *interfaces.NodeKeys
	err  error
}

// BootstrapURLs returns the configured bootstrap URLs or discovers them.
func (h *Handshaker) BootstrapURLs(ctx context.Context) ([]string, error) {
	if len(h.Config.BootstrapURLs) > 0 {
		return h.Config.BootstrapURLs, nil
	}
	if h.Discovery == nil {
		return nil, interfaces.ConfigError("bootstrap URLs unavailable: rpc_url is required to auto-discover bootstrap_urls (or provide bootstrap_urls)")
	}

	set, err := h.Discovery.DiscoverValidators(ctx, h.Config.HTTPProtocol)
	if err != nil {
		return nil, fmt.Errorf("bootstrap URLs unavailable: %w", err)
	}
	if len(set.URLs) == 0 {
		return nil, interfaces.ConfigError("bootstrap URLs unavailable: discovery returned no nodes")
	}
	return set.URLs, nil
}

// Handshake contacts every bootstrap node in parallel and resolves the network
// state from the nodes that pass. The whole exchange is bounded by the configured
// handshake timeout.
func (h *Handshaker) Handshake(ctx context.Context) (*interfaces.HandshakeResult, error) {
	log := common.LoggerOrDefault(h.Log)

	if h.Config.RequiredAttestation && h.Verifier == nil {
		return nil, interfaces.ConfigError("attestation is required but no verifier is configured")
	}

	timeout := h.Config.handshakeTimeout()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	bootstrapURLs, err := h.BootstrapURLs(ctx)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, timeoutError(timeout)
		}
		return nil, err
	}

	requestID := NewRequestID()
	outcomes := make([]handshakeOutcome, len(bootstrapURLs))

	var g errgroup.Group
	for i, url := range bootstrapURLs {
		g.Go(func() error {
			keys, err := h.handshakeNode(ctx, url, requestID)
			outcomes[i] = handshakeOutcome{keys: keys, err: err}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		g.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, timeoutError(timeout)
		}
		return nil, interfaces.HandshakeError("handshake aborted: %w", ctx.Err())
	}

	serverKeys := make(map[string]interfaces.NodeKeys)
	var connected, failures []string
	for i, outcome := range outcomes {
		url := bootstrapURLs[i]
		if outcome.err != nil {
			log.Warn("node handshake failed", slog.String("node", url), slog.String("requestId", requestID), slog.Any("error", outcome.err))
			failures = append(failures, fmt.Sprintf("%s: %s", url, outcome.err.Error()))
			continue
		}
		serverKeys[url] = *outcome.keys
		connected = append(connected, url)
	}

	threshold := h.Config.Threshold()
	if len(connected) < threshold {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, timeoutError(timeout)
		}
		return nil, interfaces.NewError(interfaces.KindHandshake, interfaces.ErrInsufficientNodes,
			"insufficient successful handshakes: got %d, need %d; errors=%s", len(connected), threshold, strings.Join(failures, "; "))
	}

	core, err := ResolveCoreConfig(serverKeys, connected, requestID)
	if err != nil {
		return nil, err
	}

	result := &interfaces.HandshakeResult{
		ServerKeys:     serverKeys,
		ConnectedNodes: connected,
		CoreNodeConfig: core,
		Threshold:      threshold,
		Epoch:          ResolveEpoch(serverKeys, connected),
	}

	log.Debug("handshake complete",
		slog.Int("connected", len(connected)),
		slog.Int("threshold", threshold),
		slog.Uint64("epoch", result.Epoch))

	return result, nil
}

func timeoutError(timeout time.Duration) error {
	return interfaces.NewError(interfaces.KindHandshake, interfaces.ErrHandshakeTimeout, "handshake timed out after %dms", timeout.Milliseconds())
}

func (h *Handshaker) handshakeNode(ctx context.Context, url, requestID string) (*interfaces.NodeKeys, error) {
	challenge := make([]byte, 32)
	if _, err := rand.Read(challenge); err != nil {
		return nil, err
	}

	endpoint := h.Config.Endpoints.Handshake
	keys, err := h.Transport.Handshake(ctx, clients.ComposeURL(url, endpoint.Path, endpoint.Version), requestID, &api.HandshakeRequest{
		ClientPublicKey: api.HandshakeClientPublicKey,
		Challenge:       hex.EncodeToString(challenge),
		Epoch:           0,
	})
	if err != nil {
		return nil, err
	}

	if h.Config.RequiredAttestation {
		if !keys.HasAttestation() {
			return nil, errors.New("missing attestation")
		}
		if err := h.Verifier.Verify(ctx, keys.Attestation, challenge); err != nil {
			return nil, err
		}
	}

	identityKey, err := hex.DecodeString(strings.TrimPrefix(keys.NodeIdentityKey, "0x"))
	if err != nil || len(identityKey) != 32 {
		return nil, errors.New("invalid nodeIdentityKey")
	}

	return keys, nil
}
