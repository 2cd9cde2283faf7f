package registry

import (
	"context"

	"github.com/ruteri/lit-quorum-client/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockDiscovery mocks interfaces.ValidatorDiscovery
type MockDiscovery struct {
	mock.Mock
}

func (m *MockDiscovery) DiscoverValidators(ctx context.Context, protocol string) (*interfaces.ValidatorSet, error) {
	args := m.Called(ctx, protocol)
	set, _ := args.Get(0).(*interfaces.ValidatorSet)
	return set, args.Error(1)
}

// MockPriceFeed mocks interfaces.PriceFeed
type MockPriceFeed struct {
	mock.Mock
}

func (m *MockPriceFeed) NodesForRequest(ctx context.Context, products []interfaces.ProductID) (*interfaces.PriceFeedResult, error) {
	args := m.Called(ctx, products)
	result, _ := args.Get(0).(*interfaces.PriceFeedResult)
	return result, args.Error(1)
}

// StaticDiscovery returns a fixed node list.
type StaticDiscovery []string

func (s StaticDiscovery) DiscoverValidators(_ context.Context, _ string) (*interfaces.ValidatorSet, error) {
	return &interfaces.ValidatorSet{MinNodeCount: 1, URLs: append([]string(nil), s...)}, nil
}
