package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ruteri/lit-quorum-client/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAuthContext() *interfaces.AuthContext {
	return &interfaces.AuthContext{
		SessionKeyPair: interfaces.SessionKeyPair{PublicKey: "ab01", SecretKey: "cd02"},
		AuthConfig: interfaces.AuthConfig{
			Expiration: "2030-01-01T00:00:00Z",
			Resources: []interfaces.ResourceAbilityRequest{{
				Resource: interfaces.LitResource{Resource: "*", ResourcePrefix: "lit-pkp"},
				Ability:  interfaces.AbilityPKPSigning,
			}},
		},
		DelegationAuthSig: interfaces.AuthSig{Sig: "0x01", SignedMessage: "delegate", Address: "0x0000000000000000000000000000000000000001"},
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, discardLog)
	require.NoError(t, err)
	assert.True(t, store.Available(context.Background()))
	assert.Equal(t, "file-"+filepath.Base(dir), store.Name())

	_, err = store.Load(context.Background(), "alice")
	assert.ErrorIs(t, err, interfaces.ErrSessionKeyNotFound)

	auth := testAuthContext()
	require.NoError(t, store.Store(context.Background(), "alice", auth))

	info, err := os.Stat(filepath.Join(dir, "sessions", "alice.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := store.Load(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, auth, loaded)

	auth.SessionKeyPair.PublicKey = "ef03"
	require.NoError(t, store.Store(context.Background(), "alice", auth))
	loaded, err = store.Load(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "ef03", loaded.SessionKeyPair.PublicKey)
}

func TestFileStore_RejectsBadNames(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), discardLog)
	require.NoError(t, err)

	for _, name := range []string{"", "../escape", "a/b", ".hidden"} {
		err := store.Store(context.Background(), name, testAuthContext())
		require.Error(t, err, name)
		assert.ErrorIs(t, err, interfaces.ErrConfig)

		_, err = store.Load(context.Background(), name)
		assert.ErrorIs(t, err, interfaces.ErrConfig)
	}
}

func TestFileStore_NilAuth(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), discardLog)
	require.NoError(t, err)
	assert.ErrorIs(t, store.Store(context.Background(), "alice", nil), interfaces.ErrConfig)
}

func TestFileStore_Unavailable(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "gone")
	store, err := NewFileStore(dir, discardLog)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))
	assert.False(t, store.Available(context.Background()))
}
