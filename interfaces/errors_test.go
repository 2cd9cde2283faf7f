package interfaces

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Is(t *testing.T) {
	err := NetworkError("insufficient successful encrypted responses: got %d, need %d", 1, 3)

	assert.True(t, errors.Is(err, ErrNetwork), "network error should match ErrNetwork")
	assert.False(t, errors.Is(err, ErrCrypto), "network error should not match ErrCrypto")
	assert.Equal(t, "network error: insufficient successful encrypted responses: got 1, need 3", err.Error())
}

func TestError_Unwrap(t *testing.T) {
	err := HandshakeError("reading response: %w", io.ErrUnexpectedEOF)

	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF), "wrapped cause should be reachable")
	assert.True(t, errors.Is(err, ErrHandshake), "kind should still match")

	var classified *Error
	assert.True(t, errors.As(err, &classified))
	assert.Equal(t, KindHandshake, classified.Kind)
}

func TestNewError_Cause(t *testing.T) {
	err := NewError(KindNetwork, ErrInsufficientSuccesses, "insufficient successful encrypted responses: got %d, need %d", 2, 3)

	assert.True(t, errors.Is(err, ErrNetwork), "kind should match")
	assert.True(t, errors.Is(err, ErrInsufficientSuccesses), "cause should match")
	assert.False(t, errors.Is(err, ErrHandshakeTimeout))
	assert.Equal(t, "network error: insufficient successful encrypted responses: got 2, need 3", err.Error())
}

func TestNodeKeys_HasAttestation(t *testing.T) {
	keys := NodeKeys{}
	assert.False(t, keys.HasAttestation(), "missing attestation")

	keys.Attestation = []byte("null")
	assert.False(t, keys.HasAttestation(), "null attestation")

	keys.Attestation = []byte(`{"type":"AMD_SEV_SNP"}`)
	assert.True(t, keys.HasAttestation(), "object attestation")
}
