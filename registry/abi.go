package registry

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const validatorComponents = `[
	{"internalType":"uint32","name":"ip","type":"uint32"},
	{"internalType":"uint128","name":"ipv6","type":"uint128"},
	{"internalType":"uint32","name":"port","type":"uint32"},
	{"internalType":"address","name":"nodeAddress","type":"address"},
	{"internalType":"uint256","name":"reward","type":"uint256"},
	{"internalType":"uint256","name":"senderPubKey","type":"uint256"},
	{"internalType":"uint256","name":"receiverPubKey","type":"uint256"},
	{"internalType":"uint256","name":"lastActiveEpoch","type":"uint256"},
	{"internalType":"uint256","name":"commissionRate","type":"uint256"},
	{"internalType":"uint256","name":"lastRewardEpoch","type":"uint256"},
	{"internalType":"uint256","name":"lastRealmId","type":"uint256"},
	{"internalType":"uint256","name":"delegatedStakeAmount","type":"uint256"},
	{"internalType":"uint256","name":"delegatedStakeWeight","type":"uint256"},
	{"internalType":"uint256","name":"lastRewardEpochClaimedFixedCostRewards","type":"uint256"},
	{"internalType":"uint256","name":"lastRewardEpochClaimedCommission","type":"uint256"},
	{"internalType":"address","name":"operatorAddress","type":"address"},
	{"internalType":"uint256","name":"uniqueDelegatingStakerCount","type":"uint256"},
	{"internalType":"bool","name":"registerAttestedWalletDisabled","type":"bool"}
]`

// StakingABI is the subset of the Staking contract used for validator discovery.
const StakingABI = `[{
	"inputs":[{"internalType":"uint256","name":"realmId","type":"uint256"}],
	"name":"getActiveUnkickedValidatorStructsAndCounts",
	"outputs":[
		{"components":[
			{"internalType":"uint256","name":"epochLength","type":"uint256"},
			{"internalType":"uint256","name":"number","type":"uint256"},
			{"internalType":"uint256","name":"rewardEpochNumber","type":"uint256"},
			{"internalType":"uint256","name":"nextRewardEpochNumber","type":"uint256"},
			{"internalType":"uint256","name":"endTime","type":"uint256"},
			{"internalType":"uint256","name":"retries","type":"uint256"},
			{"internalType":"uint256","name":"timeout","type":"uint256"},
			{"internalType":"uint256","name":"startTime","type":"uint256"},
			{"internalType":"uint256","name":"lastAdvanceVoteTime","type":"uint256"}
		],"internalType":"struct LibStakingStorage.Epoch","name":"","type":"tuple"},
		{"internalType":"uint256","name":"minNodeCount","type":"uint256"},
		{"components":` + validatorComponents + `,"internalType":"struct LibStakingStorage.Validator[]","name":"","type":"tuple[]"}
	],
	"stateMutability":"view",
	"type":"function"
}]`

// PriceFeedABI is the subset of the PriceFeed contract used for node selection.
const PriceFeedABI = `[{
	"inputs":[
		{"internalType":"uint256","name":"realmId","type":"uint256"},
		{"internalType":"uint256[]","name":"productIds","type":"uint256[]"}
	],
	"name":"getNodesForRequest",
	"outputs":[
		{"internalType":"uint256","name":"","type":"uint256"},
		{"internalType":"uint256","name":"","type":"uint256"},
		{"components":[
			{"components":` + validatorComponents + `,"internalType":"struct LibStakingStorage.Validator","name":"validator","type":"tuple"},
			{"internalType":"uint256[]","name":"prices","type":"uint256[]"}
		],"internalType":"struct LibPriceFeedStorage.NodeInfoAndPrices[]","name":"","type":"tuple[]"}
	],
	"stateMutability":"view",
	"type":"function"
}]`

const (
	methodActiveValidators = "getActiveUnkickedValidatorStructsAndCounts"
	methodNodesForRequest  = "getNodesForRequest"
)

var (
	stakingABI   = mustParseABI(StakingABI)
	priceFeedABI = mustParseABI(PriceFeedABI)
)

func mustParseABI(definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic(err)
	}
	return parsed
}

// Epoch mirrors LibStakingStorage.Epoch.
type Epoch struct {
	EpochLength           *big.Int
	Number                *big.Int
	RewardEpochNumber     *big.Int
	NextRewardEpochNumber *big.Int
	EndTime               *big.Int
	Retries               *big.Int
	Timeout               *big.Int
	StartTime             *big.Int
	LastAdvanceVoteTime   *big.Int
}

// Validator mirrors LibStakingStorage.Validator. Field order follows the ABI.
type Validator struct {
	Ip                                     uint32
	Ipv6                                   *big.Int
	Port                                   uint32
	NodeAddress                            common.Address
	Reward                                 *big.Int
	SenderPubKey                           *big.Int
	ReceiverPubKey                         *big.Int
	LastActiveEpoch                        *big.Int
	CommissionRate                         *big.Int
	LastRewardEpoch                        *big.Int
	LastRealmId                            *big.Int
	DelegatedStakeAmount                   *big.Int
	DelegatedStakeWeight                   *big.Int
	LastRewardEpochClaimedFixedCostRewards *big.Int
	LastRewardEpochClaimedCommission       *big.Int
	OperatorAddress                        common.Address
	UniqueDelegatingStakerCount            *big.Int
	RegisterAttestedWalletDisabled         bool
}

// NodeInfoAndPrices mirrors LibPriceFeedStorage.NodeInfoAndPrices.
type NodeInfoAndPrices struct {
	Validator Validator
	Prices    []*big.Int
}
