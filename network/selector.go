package network

import (
	"context"
	"log/slog"
	"sort"

	"github.com/ruteri/lit-quorum-client/common"
	"github.com/ruteri/lit-quorum-client/interfaces"
)

// Selector chooses the nodes that serve a request.
type Selector struct {
	// PriceFeed ranks nodes by price. Without it the first connected nodes are used.
	PriceFeed interfaces.PriceFeed

	// Protocol is the URL prefix used to match price feed entries to node URLs.
	Protocol string

	Log *slog.Logger
}

// SelectPriced returns the cheapest threshold connected nodes for product,
// ordered by ascending price.
func (s *Selector) SelectPriced(ctx context.Context, hs *interfaces.HandshakeResult, product interfaces.ProductID) ([]interfaces.NodePrice, error) {
	if s.PriceFeed == nil {
		return nil, interfaces.ConfigError("rpc_url is required for priced requests")
	}

	feed, err := s.PriceFeed.NodesForRequest(ctx, interfaces.AllProducts)
	if err != nil {
		return nil, err
	}

	required := max(1, hs.Threshold)
	contractMin := max(1, feed.MinNodeCount)
	if required < contractMin {
		return nil, interfaces.ConfigError("minimum_threshold (%d) is below chain minNodeCount (%d)", required, contractMin)
	}

	connected := make(map[string]bool, len(hs.ConnectedNodes))
	for _, url := range hs.ConnectedNodes {
		connected[url] = true
	}

	var candidates []interfaces.NodePrice
	for _, v := range feed.Validators {
		if int(product) >= len(v.Prices) || v.Prices[product] == nil {
			continue
		}
		url := common.NodeURL(s.Protocol, v.IP, v.Port)
		if !connected[url] {
			continue
		}
		candidates = append(candidates, interfaces.NodePrice{URL: url, Price: v.Prices[product]})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Price.Cmp(candidates[j].Price) < 0
	})

	if len(candidates) < required {
		return nil, interfaces.NetworkError("price feed returned only %d usable nodes, need %d", len(candidates), required)
	}
	return candidates[:required], nil
}

// SelectNodes picks count nodes for an operation: the priced selection when it
// succeeds, otherwise the first connected nodes. op names the operation in errors.
func (s *Selector) SelectNodes(ctx context.Context, hs *interfaces.HandshakeResult, product interfaces.ProductID, op string, count int) ([]interfaces.NodePrice, error) {
	nodes, err := s.SelectPriced(ctx, hs, product)
	if err != nil {
		common.LoggerOrDefault(s.Log).Debug("priced node selection unavailable, using connected nodes",
			slog.String("operation", op), slog.Any("error", err))

		nodes = make([]interfaces.NodePrice, 0, len(hs.ConnectedNodes))
		for _, url := range hs.ConnectedNodes {
			nodes = append(nodes, interfaces.NodePrice{URL: url})
		}
	}

	if len(nodes) > count {
		nodes = nodes[:count]
	}
	if len(nodes) < count {
		return nil, interfaces.NewError(interfaces.KindNetwork, interfaces.ErrInsufficientNodes, "insufficient node urls for %s: got %d, need %d", op, len(nodes), count)
	}
	return nodes, nil
}

// URLs returns the node URLs of nodes.
func URLs(nodes []interfaces.NodePrice) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.URL
	}
	return out
}
