package flags

import (
	"math/big"
	"testing"
	"time"

	"github.com/ruteri/lit-quorum-client/interfaces"
	"github.com/ruteri/lit-quorum-client/network"
	"github.com/ruteri/lit-quorum-client/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// runWithFlags parses args with the network flags and returns the resulting config.
func runWithFlags(t *testing.T, args ...string) (*network.Config, error) {
	t.Helper()
	var cfg *network.Config
	var cfgErr error
	app := &cli.App{
		Name:  "test",
		Flags: NetworkFlags,
		Action: func(cCtx *cli.Context) error {
			cfg, cfgErr = NetworkConfig(cCtx)
			return nil
		},
	}
	require.NoError(t, app.Run(append([]string{"test"}, args...)))
	return cfg, cfgErr
}

func TestNetworkConfig_Preset(t *testing.T) {
	cfg, err := runWithFlags(t, "--network", "naga-test", "--rpc-addr", "http://rpc:8545")
	require.NoError(t, err)
	assert.Equal(t, "naga-test", cfg.Network)
	assert.Equal(t, "http://rpc:8545", cfg.RPCURL)
	assert.Equal(t, registry.NetworkAddresses["naga-test"], cfg.Contracts)
	assert.Equal(t, network.DefaultMinimumThreshold, cfg.MinimumThreshold)
	assert.Equal(t, network.DefaultHandshakeTimeout, cfg.HandshakeTimeout)
	assert.False(t, cfg.RequiredAttestation)
	assert.Nil(t, cfg.UserMaxPrice)
	assert.Empty(t, cfg.BootstrapURLs)
}

func TestNetworkConfig_Overrides(t *testing.T) {
	cfg, err := runWithFlags(t,
		"--network", "naga",
		"--bootstrap", "https://a:443", "--bootstrap", "https://b:443",
		"--min-threshold", "2",
		"--require-attestation=false",
		"--handshake-timeout", "5s",
		"--max-price", "1000000000000000000",
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a:443", "https://b:443"}, cfg.BootstrapURLs)
	assert.Equal(t, 2, cfg.MinimumThreshold)
	assert.False(t, cfg.RequiredAttestation)
	assert.Equal(t, 5*time.Second, cfg.HandshakeTimeout)
	assert.Equal(t, 0, cfg.UserMaxPrice.Cmp(big.NewInt(1_000_000_000_000_000_000)))
}

func TestNetworkConfig_Custom(t *testing.T) {
	cfg, err := runWithFlags(t, "--network", "custom", "--bootstrap", "http://127.0.0.1:7470", "--min-threshold", "2")
	require.NoError(t, err)
	assert.Equal(t, "custom", cfg.Network)
	assert.Equal(t, "http://", cfg.HTTPProtocol)
	assert.Equal(t, []string{"http://127.0.0.1:7470"}, cfg.BootstrapURLs)
	assert.Equal(t, 2, cfg.MinimumThreshold)

	_, err = runWithFlags(t, "--network", "custom")
	assert.ErrorIs(t, err, interfaces.ErrConfig)
}

func TestNetworkConfig_Errors(t *testing.T) {
	_, err := runWithFlags(t, "--network", "nope")
	assert.ErrorIs(t, err, interfaces.ErrConfig)

	_, err = runWithFlags(t, "--max-price", "-1")
	assert.ErrorIs(t, err, interfaces.ErrConfig)

	_, err = runWithFlags(t, "--max-price", "ten")
	assert.ErrorIs(t, err, interfaces.ErrConfig)
}

func TestClientOptions_DNSDiscovery(t *testing.T) {
	app := &cli.App{
		Name:  "test",
		Flags: NetworkFlags,
		Action: func(cCtx *cli.Context) error {
			opts := ClientOptions(cCtx, nil, nil)
			require.IsType(t, &registry.DNSDiscovery{}, opts.Discovery)
			discovery := opts.Discovery.(*registry.DNSDiscovery)
			assert.Equal(t, "nodes.example.com", discovery.Domain)
			assert.Equal(t, "1.1.1.1:53", discovery.Resolver)
			assert.Equal(t, network.DefaultMinimumThreshold, discovery.MinNodeCount)

			return nil
		},
	}
	require.NoError(t, app.Run([]string{"test", "--dns-discovery", "nodes.example.com", "--dns-resolver", "1.1.1.1:53"}))

	app.Action = func(cCtx *cli.Context) error {
		assert.Nil(t, ClientOptions(cCtx, nil, nil).Discovery)
		return nil
	}
	require.NoError(t, app.Run([]string{"test"}))
}
