package registry

import (
	"context"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	litcommon "github.com/ruteri/lit-quorum-client/common"
	"github.com/ruteri/lit-quorum-client/interfaces"
)

// DefaultRealm is the realm every public network serves requests from.
const DefaultRealm = 1

// StakingClient reads the active validator set from the Staking contract.
type StakingClient struct {
	contract *bind.BoundContract
	address  common.Address
	realm    *big.Int
}

// NewStakingClient binds the Staking contract at address for reads through caller.
func NewStakingClient(caller bind.ContractCaller, address common.Address, realm uint64) *StakingClient {
	return &StakingClient{
		contract: bind.NewBoundContract(address, stakingABI, caller, nil, nil),
		address:  address,
		realm:    new(big.Int).SetUint64(realm),
	}
}

// ActiveValidators returns the current epoch, the minimum node count and the
// active, unkicked validators of the realm.
func (c *StakingClient) ActiveValidators(ctx context.Context) (*Epoch, *big.Int, []Validator, error) {
	opts := &bind.CallOpts{Context: ctx}

	var out []interface{}
	if err := c.contract.Call(opts, &out, methodActiveValidators, c.realm); err != nil {
		return nil, nil, nil, interfaces.NetworkError("staking %s: %w", methodActiveValidators, err)
	}
	if len(out) != 3 {
		return nil, nil, nil, interfaces.NetworkError("staking %s: unexpected output count %d", methodActiveValidators, len(out))
	}

	epoch := abi.ConvertType(out[0], new(Epoch)).(*Epoch)
	minNodeCount := *abi.ConvertType(out[1], new(*big.Int)).(**big.Int)
	validators := *abi.ConvertType(out[2], new([]Validator)).(*[]Validator)

	return epoch, minNodeCount, validators, nil
}

// DiscoverValidators implements interfaces.ValidatorDiscovery. URLs are sorted and
// de-duplicated; fewer than max(1, minNodeCount) distinct nodes is an error.
func (c *StakingClient) DiscoverValidators(ctx context.Context, protocol string) (*interfaces.ValidatorSet, error) {
	epoch, minNodeCount, validators, err := c.ActiveValidators(ctx)
	if err != nil {
		return nil, err
	}

	minNodes := 1
	if minNodeCount != nil && minNodeCount.IsInt64() && minNodeCount.Int64() > 1 {
		minNodes = int(minNodeCount.Int64())
	}

	urls := make([]string, 0, len(validators))
	for _, v := range validators {
		urls = append(urls, litcommon.NodeURL(protocol, v.Ip, v.Port))
	}
	urls = sortedUnique(urls)

	if len(urls) < minNodes {
		return nil, interfaces.NetworkError("validator set below minNodeCount: min=%d got=%d", minNodes, len(urls))
	}

	set := &interfaces.ValidatorSet{MinNodeCount: minNodes, URLs: urls}
	if epoch != nil && epoch.Number != nil && epoch.Number.IsUint64() {
		set.Epoch = epoch.Number.Uint64()
	}
	return set, nil
}

func sortedUnique(values []string) []string {
	sort.Strings(values)
	out := values[:0]
	for i, v := range values {
		if i > 0 && v == values[i-1] {
			continue
		}
		out = append(out, v)
	}
	return out
}
