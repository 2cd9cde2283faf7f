package interfaces

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
)

// ProductID identifies the priced product class of a network operation.
type ProductID uint8

const (
	ProductDecryption     ProductID = 0
	ProductSign           ProductID = 1
	ProductLitAction      ProductID = 2
	ProductSignSessionKey ProductID = 3
)

// AllProducts lists every product class in price feed order.
var AllProducts = []ProductID{ProductDecryption, ProductSign, ProductLitAction, ProductSignSessionKey}

func (p ProductID) String() string {
	switch p {
	case ProductDecryption:
		return "DECRYPTION"
	case ProductSign:
		return "SIGN"
	case ProductLitAction:
		return "LIT_ACTION"
	case ProductSignSessionKey:
		return "SIGN_SESSION_KEY"
	default:
		return fmt.Sprintf("PRODUCT(%d)", uint8(p))
	}
}

// NodeKeys is the handshake response of a single node.
type NodeKeys struct {
	ServerPublicKey     string          `json:"serverPublicKey"`
	SubnetPublicKey     string          `json:"subnetPublicKey"`
	NetworkPublicKey    string          `json:"networkPublicKey"`
	NetworkPublicKeySet string          `json:"networkPublicKeySet"`
	ClientSDKVersion    string          `json:"clientSdkVersion"`
	HDRootPubkeys       []string        `json:"hdRootPubkeys"`
	Attestation         json.RawMessage `json:"attestation,omitempty"`
	LatestBlockhash     string          `json:"latestBlockhash"`
	NodeIdentityKey     string          `json:"nodeIdentityKey"`
	NodeVersion         string          `json:"nodeVersion"`
	Epoch               uint64          `json:"epoch"`
}

// HasAttestation reports whether the node sent a non-null attestation payload.
func (k *NodeKeys) HasAttestation() bool {
	trimmed := bytes.TrimSpace(k.Attestation)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// CoreNodeConfig holds the network-wide values resolved by plurality vote.
type CoreNodeConfig struct {
	LatestBlockhash  string
	SubnetPubKey     string
	NetworkPubKey    string
	NetworkPubKeySet string
	HDRootPubkeys    []string
}

// HandshakeResult is the outcome of a successful handshake. It is never mutated
// after construction and may be shared by concurrent operations.
type HandshakeResult struct {
	// ServerKeys maps a connected node URL to the keys it reported.
	ServerKeys map[string]NodeKeys

	// ConnectedNodes lists the nodes that passed the handshake, in bootstrap order.
	ConnectedNodes []string

	CoreNodeConfig CoreNodeConfig

	// Threshold is the number of nodes every operation needs.
	Threshold int

	Epoch uint64
}

// ValidatorSet is the active validator set reported by the staking contract
// or another discovery source.
type ValidatorSet struct {
	Epoch        uint64
	MinNodeCount int
	URLs         []string
}

// ValidatorPrice is one price feed entry: the node's socket address and its
// price for each requested product, in request order.
type ValidatorPrice struct {
	StakerAddress string
	IP            uint32
	Port          uint32
	Prices        []*big.Int
}

// PriceFeedResult is returned by PriceFeed.NodesForRequest.
type PriceFeedResult struct {
	EpochID      *big.Int
	MinNodeCount int
	Validators   []ValidatorPrice
}

// NodePrice pairs a node URL with its price for the operation being priced.
type NodePrice struct {
	URL   string
	Price *big.Int
}
