// Package registry reads the network's on-chain configuration: the active validator set
// from the Staking contract and per-product node prices from the PriceFeed contract.
// Both are bound with go-ethereum's BoundContract over minimal inline ABIs.
//
// DNSDiscovery is an alternative bootstrap source for private deployments that publish
// their nodes as SRV records instead of running a staking contract.
//
// The in-memory mocks in mock.go implement the same collaborator interfaces for tests.
package registry
