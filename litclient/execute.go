package litclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"slices"
	"sort"

	"github.com/ruteri/lit-quorum-client/api"
	"github.com/ruteri/lit-quorum-client/interfaces"
	"github.com/ruteri/lit-quorum-client/network"
	"github.com/ruteri/lit-quorum-client/sessions"
	"github.com/ruteri/lit-quorum-client/threshold"
)

// ResponseStrategy decides which node response an execution returns when nodes disagree.
type ResponseStrategy string

const (
	LeastCommon ResponseStrategy = "leastCommon"
	MostCommon  ResponseStrategy = "mostCommon"
)

// ExecuteJsParams names the Lit Action to run. Exactly one of Code and IpfsID is
// normally set.
type ExecuteJsParams struct {
	Code     string
	IpfsID   string
	JsParams any
}

// ExecuteJsOptions tune an execution. The zero value uses LeastCommon on a threshold
// of nodes.
type ExecuteJsOptions struct {
	Strategy      ResponseStrategy
	UseSingleNode bool
	UserMaxPrice  *big.Int
}

// ExecuteJsResponse is the combined result of a Lit Action run.
type ExecuteJsResponse struct {
	Success    bool                             `json:"success"`
	Signatures map[string]*threshold.SignedData `json:"signatures"`
	// Response is the action's response decoded as JSON, or the raw string.
	Response  any                        `json:"response"`
	Logs      string                     `json:"logs"`
	ClaimData map[string]json.RawMessage `json:"claimData,omitempty"`
}

// ExecuteJs runs a Lit Action on the nodes and combines any signatures it produced.
func (c *Client) ExecuteJs(ctx context.Context, params ExecuteJsParams, opts ExecuteJsOptions, auth *interfaces.AuthContext) (*ExecuteJsResponse, error) {
	return withStaleKeyRetry(ctx, c, "executeJs", func(hs *interfaces.HandshakeResult) (*ExecuteJsResponse, error) {
		return c.executeJs(ctx, hs, params, opts, auth)
	})
}

func (c *Client) executeJs(ctx context.Context, hs *interfaces.HandshakeResult, params ExecuteJsParams, opts ExecuteJsOptions, auth *interfaces.AuthContext) (*ExecuteJsResponse, error) {
	req, err := c.newRequest(hs)
	if err != nil {
		return nil, err
	}

	required := max(1, hs.Threshold)
	if opts.UseSingleNode {
		required = 1
	}

	nodes, err := c.selector.SelectNodes(ctx, hs, interfaces.ProductLitAction, "executeJs", required)
	if err != nil {
		return nil, err
	}
	urls := network.URLs(nodes)

	perNode := sessions.PerNodeMaxPrice(c.userMaxPrice(opts.UserMaxPrice), required)
	priced := make([]interfaces.NodePrice, len(urls))
	for i, url := range urls {
		priced[i] = interfaces.NodePrice{URL: url, Price: perNode}
	}
	sigs, err := sessions.IssueWithPrices(auth, priced)
	if err != nil {
		return nil, err
	}

	var code string
	if params.Code != "" {
		code = base64.StdEncoding.EncodeToString([]byte(params.Code))
	}
	var jsParams *api.JsParams
	if params.JsParams != nil {
		jsParams = &api.JsParams{JsParams: params.JsParams}
	}

	nodeSet := api.NodeSetFromURLs(urls)
	bodies := make([]network.NodeRequest, len(urls))
	for i, url := range urls {
		bodies[i] = network.NodeRequest{URL: url, Body: &api.ExecuteJsRequest{
			AuthSig:  sigs[url],
			NodeSet:  nodeSet,
			Code:     code,
			IpfsID:   params.IpfsID,
			JsParams: jsParams,
		}}
	}

	values, err := c.dispatch(ctx, req, c.config.Endpoints.ExecuteJs, bodies, required)
	if err != nil {
		return nil, err
	}
	data, err := network.DecodeData[api.ExecuteJsNodeData](values)
	if err != nil {
		return nil, err
	}

	successes := make([]api.ExecuteJsNodeData, 0, len(data))
	for _, d := range data {
		if d.Success {
			successes = append(successes, d)
		}
	}
	if len(successes) < required {
		return nil, interfaces.NewError(interfaces.KindNetwork, interfaces.ErrInsufficientSuccesses, "insufficient successful executeJs responses: got %d, need %d", len(successes), required)
	}

	return combineExecuteResults(successes, opts.Strategy, required)
}

func combineExecuteResults(results []api.ExecuteJsNodeData, strategy ResponseStrategy, required int) (*ExecuteJsResponse, error) {
	responses := make([]string, len(results))
	for i, r := range results {
		responses[i] = r.Response
	}
	chosen := selectResponse(responses, strategy)

	out := &ExecuteJsResponse{
		Success:    true,
		Signatures: map[string]*threshold.SignedData{},
		Response:   parseActionResponse(chosen),
	}
	for _, r := range results {
		if r.Response == chosen {
			out.Logs = r.Logs
			out.ClaimData = r.ClaimData
			break
		}
	}

	names := map[string]struct{}{}
	for _, r := range results {
		for name := range r.SignedData {
			names[name] = struct{}{}
		}
	}
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	for _, name := range sorted {
		var shares []threshold.SignedMessageShare
		for _, r := range results {
			entry, ok := r.SignedData[name]
			if !ok || len(entry.SignatureShare) == 0 {
				continue
			}
			share, err := threshold.ParseSignedMessageShare(entry.SignatureShare)
			if err != nil {
				return nil, err
			}
			shares = append(shares, *share)
		}
		if len(shares) == 0 {
			continue
		}
		if len(shares) < required {
			return nil, interfaces.NewError(interfaces.KindNetwork, interfaces.ErrInsufficientSuccesses, "insufficient signature shares for %s: got %d, need %d", name, len(shares), required)
		}

		signed, err := combineDroppingFaulty(shares, required)
		if err != nil {
			return nil, err
		}
		out.Signatures[name] = signed
	}
	return out, nil
}

// selectResponse picks a response by how often it occurs. Ties go to the response
// seen first.
func selectResponse(responses []string, strategy ResponseStrategy) string {
	var order []string
	counts := map[string]int{}
	for _, r := range responses {
		if _, seen := counts[r]; !seen {
			order = append(order, r)
		}
		counts[r]++
	}
	if len(order) == 0 {
		return ""
	}

	best := order[0]
	for _, r := range order[1:] {
		if strategy == MostCommon && counts[r] > counts[best] {
			best = r
		}
		if strategy != MostCommon && counts[r] < counts[best] {
			best = r
		}
	}
	return best
}

func parseActionResponse(response string) any {
	var decoded any
	if err := json.Unmarshal([]byte(response), &decoded); err == nil {
		return decoded
	}
	return response
}

// combineDroppingFaulty combines all shares and, when that fails, retries on subsets
// that leave out up to len(shares)-required shares. The first error is returned when
// no subset combines.
func combineDroppingFaulty(shares []threshold.SignedMessageShare, required int) (*threshold.SignedData, error) {
	signed, firstErr := threshold.CombineAndVerify(shares)
	if firstErr == nil {
		return signed, nil
	}

	for size := len(shares) - 1; size >= max(required, 2); size-- {
		for _, idx := range combinations(len(shares), size) {
			subset := make([]threshold.SignedMessageShare, len(idx))
			for i, j := range idx {
				subset[i] = shares[j]
			}
			if signed, err := threshold.CombineAndVerify(subset); err == nil {
				return signed, nil
			}
		}
	}
	return nil, firstErr
}

// combinations lists the k-element index subsets of [0, n) in lexicographic order.
func combinations(n, k int) [][]int {
	var out [][]int
	idx := make([]int, k)
	var rec func(start, depth int)
	rec = func(start, depth int) {
		if depth == k {
			out = append(out, slices.Clone(idx))
			return
		}
		for i := start; i <= n-(k-depth); i++ {
			idx[depth] = i
			rec(i+1, depth+1)
		}
	}
	rec(0, 0)
	return out
}
