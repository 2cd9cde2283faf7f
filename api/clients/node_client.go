package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ruteri/lit-quorum-client/api"
	"github.com/ruteri/lit-quorum-client/common"
	"github.com/ruteri/lit-quorum-client/cryptoutils"
	"github.com/ruteri/lit-quorum-client/interfaces"
	"github.com/stretchr/testify/mock"
)

// NodeClient talks to individual network nodes over HTTP.
type NodeClient struct {
	httpClient *http.Client

	// version is sent in the X-Lit-SDK-Version header.
	version string
}

// NewNodeClient creates a node client reporting version to the nodes.
//
// Parameters:
//   - version: The SDK version string, e.g. "8.0.0-naga-dev"
//   - timeout: Per-request timeout (optional, default 30 seconds)
func NewNodeClient(version string, timeout ...time.Duration) *NodeClient {
	clientTimeout := 30 * time.Second
	if len(timeout) > 0 {
		clientTimeout = timeout[0]
	}

	return &NodeClient{
		version: version,
		httpClient: &http.Client{
			Timeout: clientTimeout,
		},
	}
}

// ComposeURL joins a node base URL, an endpoint path and its version suffix.
func ComposeURL(base, path, version string) string {
	return base + path + version
}

func (c *NodeClient) post(ctx context.Context, fullURL, requestID string, body any) (*http.Response, []byte, error) {
	payload, err := common.MarshalJSON(body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(api.SDKVersionHeader, c.version)
	req.Header.Set(api.SDKTypeHeader, api.SDKType)
	req.Header.Set(api.RequestIDHeader, requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, interfaces.NetworkError("request to %s failed: %w", fullURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, nil, interfaces.NetworkError("failed to read response from %s: %w", fullURL, err)
	}
	return resp, respBody, nil
}

// Handshake posts a plain handshake request and decodes the node keys.
// Bodies wrapped in a "data" object are accepted.
func (c *NodeClient) Handshake(ctx context.Context, fullURL, requestID string, request *api.HandshakeRequest) (*interfaces.NodeKeys, error) {
	resp, body, err := c.post(ctx, fullURL, requestID, request)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, interfaces.NetworkError("node request failed %s: %s", resp.Status, string(body))
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, interfaces.NetworkError("unexpected response shape: %w; body=%s", err, strings.TrimSpace(string(body)))
	}

	raw := json.RawMessage(body)
	if data, ok := probe["data"]; ok {
		if _, hasKey := probe["nodeIdentityKey"]; !hasKey {
			raw = data
		}
	}

	var keys interfaces.NodeKeys
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, interfaces.NetworkError("unexpected response shape: %w; body=%s", err, strings.TrimSpace(string(body)))
	}
	return &keys, nil
}

// PostEncrypted posts an encrypted envelope and returns the node's encrypted batch.
// Failed requests whose body is an envelope are decrypted with jitSecret so the
// node's error text is visible.
func (c *NodeClient) PostEncrypted(ctx context.Context, fullURL, requestID string, request *api.EncryptedRequest, jitSecret [32]byte) (*api.EncryptedBatch, error) {
	resp, body, err := c.post(ctx, fullURL, requestID, request)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return api.ParseEncryptedBatch(body)
	}

	if env, ok := api.ParseEnvelope(body); ok {
		if plaintext, err := cryptoutils.Decrypt(jitSecret, env); err == nil {
			return nil, interfaces.NetworkError("node returned encrypted error: %s", string(plaintext))
		}
	}

	return nil, interfaces.NetworkError("node request failed %s: %s", resp.Status, string(body))
}

// MockNodeClient is a testify mock of the node transport.
type MockNodeClient struct {
	mock.Mock
}

func (m *MockNodeClient) Handshake(ctx context.Context, fullURL, requestID string, request *api.HandshakeRequest) (*interfaces.NodeKeys, error) {
	args := m.Called(ctx, fullURL, requestID, request)
	keys, _ := args.Get(0).(*interfaces.NodeKeys)
	return keys, args.Error(1)
}

func (m *MockNodeClient) PostEncrypted(ctx context.Context, fullURL, requestID string, request *api.EncryptedRequest, jitSecret [32]byte) (*api.EncryptedBatch, error) {
	args := m.Called(ctx, fullURL, requestID, request, jitSecret)
	batch, _ := args.Get(0).(*api.EncryptedBatch)
	return batch, args.Error(1)
}
