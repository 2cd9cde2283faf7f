package registry

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/lit-quorum-client/interfaces"
)

// PriceFeedClient reads per-product node prices from the PriceFeed contract.
type PriceFeedClient struct {
	contract *bind.BoundContract
	realm    *big.Int
}

// NewPriceFeedClient binds the PriceFeed contract at address for reads through caller.
func NewPriceFeedClient(caller bind.ContractCaller, address common.Address, realm uint64) *PriceFeedClient {
	return &PriceFeedClient{
		contract: bind.NewBoundContract(address, priceFeedABI, caller, nil, nil),
		realm:    new(big.Int).SetUint64(realm),
	}
}

// NodesForRequest implements interfaces.PriceFeed. Each validator's Prices are in
// the order of products.
func (c *PriceFeedClient) NodesForRequest(ctx context.Context, products []interfaces.ProductID) (*interfaces.PriceFeedResult, error) {
	productIDs := make([]*big.Int, len(products))
	for i, p := range products {
		productIDs[i] = big.NewInt(int64(p))
	}

	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, methodNodesForRequest, c.realm, productIDs); err != nil {
		return nil, interfaces.NetworkError("price feed %s: %w", methodNodesForRequest, err)
	}
	if len(out) != 3 {
		return nil, interfaces.NetworkError("price feed %s: unexpected output count %d", methodNodesForRequest, len(out))
	}

	epochID := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	minNodeCount := *abi.ConvertType(out[1], new(*big.Int)).(**big.Int)
	nodes := *abi.ConvertType(out[2], new([]NodeInfoAndPrices)).(*[]NodeInfoAndPrices)

	result := &interfaces.PriceFeedResult{EpochID: epochID}
	if minNodeCount != nil && minNodeCount.IsInt64() {
		result.MinNodeCount = int(minNodeCount.Int64())
	}
	for _, node := range nodes {
		result.Validators = append(result.Validators, interfaces.ValidatorPrice{
			StakerAddress: node.Validator.NodeAddress.Hex(),
			IP:            node.Validator.Ip,
			Port:          node.Validator.Port,
			Prices:        node.Prices,
		})
	}
	return result, nil
}
