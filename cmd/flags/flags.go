package flags

import (
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/lit-quorum-client/common"
	"github.com/ruteri/lit-quorum-client/httpserver"
	"github.com/ruteri/lit-quorum-client/interfaces"
	"github.com/ruteri/lit-quorum-client/litclient"
	"github.com/ruteri/lit-quorum-client/network"
	"github.com/ruteri/lit-quorum-client/registry"
	"github.com/urfave/cli/v2"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String("log-service")

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger, listenAddr string) *httpserver.HTTPServerConfig {
	enablePprof := cCtx.Bool(PprofFlag.Name)
	drainDuration := time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second

	return &httpserver.HTTPServerConfig{
		ListenAddr:               listenAddr,
		Log:                      logger,
		EnablePprof:              enablePprof,
		DrainDuration:            drainDuration,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}

// NetworkConfig builds the network config selected by the network flags. The
// "custom" network requires bootstrap URLs or DNS discovery.
func NetworkConfig(cCtx *cli.Context) (*network.Config, error) {
	name := cCtx.String(NetworkFlag.Name)
	bootstrap := cCtx.StringSlice(BootstrapFlag.Name)

	var cfg *network.Config
	if name == "custom" {
		if len(bootstrap) == 0 && cCtx.String(DNSDiscoveryFlag.Name) == "" {
			return nil, interfaces.ConfigError("custom network requires --%s or --%s", BootstrapFlag.Name, DNSDiscoveryFlag.Name)
		}
		cfg = network.LocalConfig(bootstrap, network.DefaultMinimumThreshold)
	} else {
		preset, err := network.ConfigForNetwork(name)
		if err != nil {
			return nil, err
		}
		cfg = preset
		if len(bootstrap) > 0 {
			cfg.BootstrapURLs = bootstrap
		}
	}

	cfg.RPCURL = cCtx.String(RpcAddrFlag.Name)
	if cCtx.IsSet(MinThresholdFlag.Name) {
		cfg.MinimumThreshold = cCtx.Int(MinThresholdFlag.Name)
	}
	if cCtx.IsSet(RequireAttestationFlag.Name) {
		cfg.RequiredAttestation = cCtx.Bool(RequireAttestationFlag.Name)
	}
	cfg.HandshakeTimeout = cCtx.Duration(HandshakeTimeoutFlag.Name)

	if maxPrice := cCtx.String(MaxPriceFlag.Name); maxPrice != "" {
		price, ok := new(big.Int).SetString(maxPrice, 10)
		if !ok || price.Sign() < 0 {
			return nil, interfaces.ConfigError("invalid --%s %q", MaxPriceFlag.Name, maxPrice)
		}
		cfg.UserMaxPrice = price
	}
	return cfg, nil
}

// ClientOptions returns the client collaborators selected by the flags.
func ClientOptions(cCtx *cli.Context, log *slog.Logger, siwe litclient.SiweBuilder) litclient.Options {
	opts := litclient.Options{
		SiweBuilder: siwe,
		Log:         log,
	}
	if domain := cCtx.String(DNSDiscoveryFlag.Name); domain != "" {
		opts.Discovery = &registry.DNSDiscovery{
			Domain:       domain,
			Resolver:     cCtx.String(DNSResolverFlag.Name),
			MinNodeCount: cCtx.Int(MinThresholdFlag.Name),
		}
	}
	return opts
}

var NetworkFlag = &cli.StringFlag{
	Name:    "network",
	Value:   "naga-dev",
	Usage:   "network preset: naga-dev, naga-test, naga-staging, naga-proto, naga or custom",
	EnvVars: []string{"LIT_NETWORK"},
}

var RpcAddrFlag = &cli.StringFlag{
	Name:    "rpc-addr",
	Value:   "",
	Usage:   "address of the chain RPC used to discover validators and prices",
	EnvVars: []string{"LIT_RPC_ADDR"},
}

var BootstrapFlag = &cli.StringSliceFlag{
	Name:  "bootstrap",
	Usage: "node base URL to handshake with, e.g. http://127.0.0.1:7470 (repeatable)",
}

var MinThresholdFlag = &cli.IntFlag{
	Name:  "min-threshold",
	Value: network.DefaultMinimumThreshold,
	Usage: "minimum number of nodes every operation needs",
}

var RequireAttestationFlag = &cli.BoolFlag{
	Name:  "require-attestation",
	Value: false,
	Usage: "verify node attestations during the handshake",
}

var HandshakeTimeoutFlag = &cli.DurationFlag{
	Name:  "handshake-timeout",
	Value: network.DefaultHandshakeTimeout,
	Usage: "how long to wait for node handshakes",
}

var MaxPriceFlag = &cli.StringFlag{
	Name:  "max-price",
	Usage: "maximum total price of a request in wei (decimal)",
}

var DNSDiscoveryFlag = &cli.StringFlag{
	Name:  "dns-discovery",
	Usage: "discover nodes from the _lit._tcp SRV records of this domain",
}

var DNSResolverFlag = &cli.StringFlag{
	Name:  "dns-resolver",
	Value: registry.DefaultResolver,
	Usage: "DNS server used for --dns-discovery",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}

var LogServiceFlagFn = func(service string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "log-service",
		Value: service,
		Usage: "add 'service' tag to logs",
	}
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}

var LogFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
}

var NetworkFlags = []cli.Flag{
	NetworkFlag,
	RpcAddrFlag,
	BootstrapFlag,
	MinThresholdFlag,
	RequireAttestationFlag,
	HandshakeTimeoutFlag,
	MaxPriceFlag,
	DNSDiscoveryFlag,
	DNSResolverFlag,
}

var ServerFlags = []cli.Flag{
	PprofFlag,
	DrainSecondsFlag,
}
