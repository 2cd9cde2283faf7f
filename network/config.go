package network

import (
	"math/big"
	"time"

	"github.com/ruteri/lit-quorum-client/common"
	"github.com/ruteri/lit-quorum-client/interfaces"
	"github.com/ruteri/lit-quorum-client/registry"
)

// Endpoint is a node API path and its version suffix.
type Endpoint struct {
	Path    string
	Version string
}

// Endpoints lists the node APIs a client calls.
type Endpoints struct {
	Handshake      Endpoint
	EncryptionSign Endpoint
	PKPSign        Endpoint
	ExecuteJs      Endpoint
	SignSessionKey Endpoint
}

// DefaultEndpoints are the node APIs of the naga networks.
var DefaultEndpoints = Endpoints{
	Handshake:      Endpoint{Path: "/web/handshake"},
	EncryptionSign: Endpoint{Path: "/web/encryption/sign", Version: "/v2"},
	PKPSign:        Endpoint{Path: "/web/pkp/sign", Version: "/v2"},
	ExecuteJs:      Endpoint{Path: "/web/execute", Version: "/v2"},
	SignSessionKey: Endpoint{Path: "/web/sign_session_key", Version: "/v2"},
}

const (
	DefaultHandshakeTimeout = 20 * time.Second
	DefaultMinimumThreshold = 3
	DefaultRealm            = registry.DefaultRealm
)

// Config describes which network to talk to and how. It is not modified once a
// client has been created from it.
type Config struct {
	Network string

	// RPCURL is the chain RPC used for validator discovery and pricing.
	RPCURL string

	// BootstrapURLs are the node base URLs to handshake with. When empty they
	// are discovered from the staking contract.
	BootstrapURLs []string

	// HTTPProtocol is the URL prefix of discovered nodes, "http://" or "https://".
	HTTPProtocol string

	MinimumThreshold    int
	RequiredAttestation bool
	HandshakeTimeout    time.Duration

	Endpoints  Endpoints
	SDKVersion string

	// UserMaxPrice caps what a request may cost in total. Nil means no cap.
	UserMaxPrice *big.Int

	Realm     uint64
	Contracts registry.Addresses
}

// Version is the X-Lit-SDK-Version header value.
func (c *Config) Version() string {
	return c.SDKVersion + "-" + c.Network
}

// Threshold is the minimum number of nodes every operation needs.
func (c *Config) Threshold() int {
	return max(1, c.MinimumThreshold)
}

func (c *Config) handshakeTimeout() time.Duration {
	if c.HandshakeTimeout <= 0 {
		return DefaultHandshakeTimeout
	}
	return c.HandshakeTimeout
}

// ConfigForNetwork returns the preset of a public network. Fields may be adjusted
// before the config is used.
func ConfigForNetwork(name string) (*Config, error) {
	addresses, ok := registry.NetworkAddresses[name]
	if !ok {
		return nil, interfaces.ConfigError("unknown network %q", name)
	}

	return &Config{
		Network:             name,
		HTTPProtocol:        "https://",
		MinimumThreshold:    DefaultMinimumThreshold,
		RequiredAttestation: name == "naga" || name == "naga-proto",
		HandshakeTimeout:    DefaultHandshakeTimeout,
		Endpoints:           DefaultEndpoints,
		SDKVersion:          common.SDKVersion,
		Realm:               DefaultRealm,
		Contracts:           addresses,
	}, nil
}

// LocalConfig is a config for a local node set such as a devnet.
func LocalConfig(bootstrapURLs []string, threshold int) *Config {
	return &Config{
		Network:          "custom",
		BootstrapURLs:    bootstrapURLs,
		HTTPProtocol:     "http://",
		MinimumThreshold: threshold,
		HandshakeTimeout: DefaultHandshakeTimeout,
		Endpoints:        DefaultEndpoints,
		SDKVersion:       common.SDKVersion,
		Realm:            DefaultRealm,
	}
}
