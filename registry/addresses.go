package registry

import (
	"github.com/ethereum/go-ethereum/common"
)

// Addresses are the contracts a network's client reads.
type Addresses struct {
	Staking   common.Address
	PriceFeed common.Address
}

// NetworkAddresses lists the deployed contracts of the public networks.
var NetworkAddresses = map[string]Addresses{
	"naga-dev": {
		Staking:   common.HexToAddress("0x544ac098670a266d3598B543aefBEbAb0A2C86C6"),
		PriceFeed: common.HexToAddress("0xa997f8DE767d59ecb47A76B421E0C5a1764dD945"),
	},
	"naga-test": {
		Staking:   common.HexToAddress("0x9f3cE810695180C5f693a7cD2a0203A381fd57E1"),
		PriceFeed: common.HexToAddress("0x556955025dD0981Bac684fbDEcE14cDa897d0837"),
	},
	"naga-staging": {
		Staking:   common.HexToAddress("0x9b8Ed3FD964Bc38dDc32CF637439e230CD50e3Dd"),
		PriceFeed: common.HexToAddress("0x651d3282E1F083036Bb136dBbe7df17aCC39A330"),
	},
	"naga-proto": {
		Staking:   common.HexToAddress("0x28759afC5989B961D0A8EB236C9074c4141Baea1"),
		PriceFeed: common.HexToAddress("0xFF4ceEC38572fEd4a48f6D3DF2bed7ccadD115a6"),
	},
	"naga": {
		Staking:   common.HexToAddress("0x8a861B3640c1ff058CCB109ba11CA3224d228159"),
		PriceFeed: common.HexToAddress("0x88F5535Fa6dA5C225a3C06489fE4e3405b87608C"),
	},
}
