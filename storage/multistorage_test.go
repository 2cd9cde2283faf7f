package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/ruteri/lit-quorum-client/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSessionKeyStore implements interfaces.SessionKeyStore for testing
type MockSessionKeyStore struct {
	mock.Mock
	name string
}

func (m *MockSessionKeyStore) Load(ctx context.Context, name string) (*interfaces.AuthContext, error) {
	args := m.Called(ctx, name)
	auth, _ := args.Get(0).(*interfaces.AuthContext)
	return auth, args.Error(1)
}

func (m *MockSessionKeyStore) Store(ctx context.Context, name string, auth *interfaces.AuthContext) error {
	args := m.Called(ctx, name, auth)
	return args.Error(0)
}

func (m *MockSessionKeyStore) Available(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *MockSessionKeyStore) Name() string {
	return m.name
}

var discardLog = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestMultiStore_Available(t *testing.T) {
	tests := []struct {
		name     string
		stores   []bool
		expected bool
	}{
		{"all stores available", []bool{true, true, true}, true},
		{"some stores available", []bool{false, true, false}, true},
		{"no stores available", []bool{false, false, false}, false},
		{"no stores", []bool{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stores []interfaces.SessionKeyStore
			for i, available := range tt.stores {
				m := &MockSessionKeyStore{name: fmt.Sprintf("mock-%d", i)}
				m.On("Available", mock.Anything).Return(available).Maybe()
				stores = append(stores, m)
			}

			multi := NewMultiStore(stores, discardLog)
			assert.Equal(t, tt.expected, multi.Available(context.Background()))

			for _, store := range stores {
				store.(*MockSessionKeyStore).AssertExpectations(t)
			}
		})
	}
}

func TestMultiStore_Load(t *testing.T) {
	testAuth := &interfaces.AuthContext{SessionKeyPair: interfaces.SessionKeyPair{PublicKey: "aa", SecretKey: "bb"}}
	testErr := errors.New("test error")

	tests := []struct {
		name        string
		setupMocks  func() []interfaces.SessionKeyStore
		expected    *interfaces.AuthContext
		expectedErr error
	}{
		{
			name: "first store has the session",
			setupMocks: func() []interfaces.SessionKeyStore {
				m1 := &MockSessionKeyStore{name: "mock-A"}
				m1.On("Available", mock.Anything).Return(true)
				m1.On("Load", mock.Anything, "alice").Return(testAuth, nil)

				// not reached
				m2 := &MockSessionKeyStore{name: "mock-B"}
				return []interfaces.SessionKeyStore{m1, m2}
			},
			expected: testAuth,
		},
		{
			name: "missing in first store, found in second",
			setupMocks: func() []interfaces.SessionKeyStore {
				m1 := &MockSessionKeyStore{name: "mock-A"}
				m1.On("Available", mock.Anything).Return(true)
				m1.On("Load", mock.Anything, "alice").Return(nil, interfaces.ErrSessionKeyNotFound)

				m2 := &MockSessionKeyStore{name: "mock-B"}
				m2.On("Available", mock.Anything).Return(true)
				m2.On("Load", mock.Anything, "alice").Return(testAuth, nil)
				return []interfaces.SessionKeyStore{m1, m2}
			},
			expected: testAuth,
		},
		{
			name: "missing everywhere",
			setupMocks: func() []interfaces.SessionKeyStore {
				m1 := &MockSessionKeyStore{name: "mock-A"}
				m1.On("Available", mock.Anything).Return(true)
				m1.On("Load", mock.Anything, "alice").Return(nil, interfaces.ErrSessionKeyNotFound)

				m2 := &MockSessionKeyStore{name: "mock-B"}
				m2.On("Available", mock.Anything).Return(false)
				return []interfaces.SessionKeyStore{m1, m2}
			},
			expectedErr: interfaces.ErrSessionKeyNotFound,
		},
		{
			name: "all stores fail",
			setupMocks: func() []interfaces.SessionKeyStore {
				m1 := &MockSessionKeyStore{name: "mock-A"}
				m1.On("Available", mock.Anything).Return(true)
				m1.On("Load", mock.Anything, "alice").Return(nil, testErr)

				m2 := &MockSessionKeyStore{name: "mock-B"}
				m2.On("Available", mock.Anything).Return(true)
				m2.On("Load", mock.Anything, "alice").Return(nil, interfaces.ErrSessionKeyNotFound)
				return []interfaces.SessionKeyStore{m1, m2}
			},
			expectedErr: testErr,
		},
		{
			name: "nothing reachable",
			setupMocks: func() []interfaces.SessionKeyStore {
				m1 := &MockSessionKeyStore{name: "mock-A"}
				m1.On("Available", mock.Anything).Return(false)
				return []interfaces.SessionKeyStore{m1}
			},
			expectedErr: interfaces.ErrStoreUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stores := tt.setupMocks()
			multi := NewMultiStore(stores, discardLog)

			auth, err := multi.Load(context.Background(), "alice")
			if tt.expectedErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.expected, auth)

			for _, store := range stores {
				store.(*MockSessionKeyStore).AssertExpectations(t)
			}
		})
	}
}

func TestMultiStore_Store(t *testing.T) {
	testAuth := &interfaces.AuthContext{SessionKeyPair: interfaces.SessionKeyPair{PublicKey: "aa", SecretKey: "bb"}}
	testErr := errors.New("test error")

	tests := []struct {
		name          string
		setupMocks    func() []interfaces.SessionKeyStore
		expectedError bool
	}{
		{
			name: "all stores successful",
			setupMocks: func() []interfaces.SessionKeyStore {
				m1 := &MockSessionKeyStore{name: "mock-A"}
				m1.On("Available", mock.Anything).Return(true)
				m1.On("Store", mock.Anything, "alice", testAuth).Return(nil)

				m2 := &MockSessionKeyStore{name: "mock-B"}
				m2.On("Available", mock.Anything).Return(true)
				m2.On("Store", mock.Anything, "alice", testAuth).Return(nil)
				return []interfaces.SessionKeyStore{m1, m2}
			},
		},
		{
			name: "some stores fail",
			setupMocks: func() []interfaces.SessionKeyStore {
				m1 := &MockSessionKeyStore{name: "mock-A"}
				m1.On("Available", mock.Anything).Return(true)
				m1.On("Store", mock.Anything, "alice", testAuth).Return(testErr)

				m2 := &MockSessionKeyStore{name: "mock-B"}
				m2.On("Available", mock.Anything).Return(true)
				m2.On("Store", mock.Anything, "alice", testAuth).Return(nil)
				return []interfaces.SessionKeyStore{m1, m2}
			},
		},
		{
			name: "all stores fail",
			setupMocks: func() []interfaces.SessionKeyStore {
				m1 := &MockSessionKeyStore{name: "mock-A"}
				m1.On("Available", mock.Anything).Return(true)
				m1.On("Store", mock.Anything, "alice", testAuth).Return(testErr)

				m2 := &MockSessionKeyStore{name: "mock-B"}
				m2.On("Available", mock.Anything).Return(true)
				m2.On("Store", mock.Anything, "alice", testAuth).Return(testErr)
				return []interfaces.SessionKeyStore{m1, m2}
			},
			expectedError: true,
		},
		{
			name: "unavailable stores are skipped",
			setupMocks: func() []interfaces.SessionKeyStore {
				m1 := &MockSessionKeyStore{name: "mock-A"}
				m1.On("Available", mock.Anything).Return(false)

				m2 := &MockSessionKeyStore{name: "mock-B"}
				m2.On("Available", mock.Anything).Return(true)
				m2.On("Store", mock.Anything, "alice", testAuth).Return(nil)
				return []interfaces.SessionKeyStore{m1, m2}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stores := tt.setupMocks()
			multi := NewMultiStore(stores, discardLog)

			err := multi.Store(context.Background(), "alice", testAuth)
			if tt.expectedError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			for _, store := range stores {
				store.(*MockSessionKeyStore).AssertExpectations(t)
			}
		})
	}
}

func TestMultiStore_Name(t *testing.T) {
	multi := NewMultiStore([]interfaces.SessionKeyStore{
		&MockSessionKeyStore{name: "file-a"},
		&MockSessionKeyStore{name: "s3-b"},
	}, nil)
	assert.Equal(t, "multi:[file-a,s3-b]", multi.Name())
}
