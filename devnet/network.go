package devnet

import (
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"time"

	"github.com/ruteri/lit-quorum-client/common"
	"github.com/ruteri/lit-quorum-client/httpserver"
	"github.com/ruteri/lit-quorum-client/interfaces"
	"github.com/ruteri/lit-quorum-client/network"
)

// Options configure a devnet.
type Options struct {
	Nodes     int
	Threshold int
	Epoch     uint64

	Attestation json.RawMessage
	Conditions  ConditionChecker
	Actions     ActionRunner

	Log *slog.Logger
}

// Network is a set of devnet nodes sharing dealt keys.
type Network struct {
	Keys      *Keys
	Nodes     []*Node
	Threshold int

	servers []*httptest.Server
}

// ServerConfig is the httpserver configuration devnet nodes run with.
func ServerConfig(listenAddr string, log *slog.Logger) *httpserver.HTTPServerConfig {
	return &httpserver.HTTPServerConfig{
		ListenAddr:               listenAddr,
		Log:                      common.LoggerOrDefault(log),
		DrainDuration:            time.Second,
		GracefulShutdownDuration: 5 * time.Second,
		ReadTimeout:              30 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}

// NewNodes deals keys and creates the nodes of a devnet without serving them.
func NewNodes(opts Options) (*Keys, []*Node, error) {
	if opts.Nodes < 2 || opts.Threshold < 2 || opts.Threshold > opts.Nodes {
		return nil, nil, interfaces.ConfigError("invalid devnet size: %d nodes, threshold %d", opts.Nodes, opts.Threshold)
	}
	keys, err := DealKeys(opts.Threshold, opts.Nodes)
	if err != nil {
		return nil, nil, err
	}

	nodes := make([]*Node, opts.Nodes)
	for i := range nodes {
		node, err := NewNode(NodeConfig{
			Index:       i,
			Keys:        keys,
			Epoch:       opts.Epoch,
			Attestation: opts.Attestation,
			Conditions:  opts.Conditions,
			Actions:     opts.Actions,
			Log:         opts.Log,
		})
		if err != nil {
			return nil, nil, err
		}
		nodes[i] = node
	}
	return keys, nodes, nil
}

// Start serves a devnet on local httptest servers. Close releases them.
func Start(opts Options) (*Network, error) {
	keys, nodes, err := NewNodes(opts)
	if err != nil {
		return nil, err
	}

	n := &Network{Keys: keys, Nodes: nodes, Threshold: opts.Threshold}
	for _, node := range nodes {
		srv := httpserver.New(ServerConfig("", opts.Log), node)
		ts := httptest.NewServer(srv.Router())
		node.SetURL(ts.URL)
		n.servers = append(n.servers, ts)
	}
	return n, nil
}

// URLs lists the node URLs in node order.
func (n *Network) URLs() []string {
	urls := make([]string, len(n.Nodes))
	for i, node := range n.Nodes {
		urls[i] = node.URL()
	}
	return urls
}

// Config returns a client config bootstrapping from every node.
func (n *Network) Config() *network.Config {
	return network.LocalConfig(n.URLs(), n.Threshold)
}

// StopNode shuts a node's server down.
func (n *Network) StopNode(i int) {
	n.servers[i].Close()
}

func (n *Network) Close() {
	for _, ts := range n.servers {
		ts.Close()
	}
}
