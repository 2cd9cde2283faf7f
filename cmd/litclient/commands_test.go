package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ruteri/lit-quorum-client/interfaces"
	"github.com/ruteri/lit-quorum-client/litclient"
	"github.com/ruteri/lit-quorum-client/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadArg(t *testing.T) {
	value, err := readArg("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", value)

	path := filepath.Join(t.TempDir(), "code.js")
	require.NoError(t, os.WriteFile(path, []byte("go()\n"), 0o600))
	value, err = readArg("@" + path)
	require.NoError(t, err)
	assert.Equal(t, "go()", value)

	_, err = readArg("@" + filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestReadJSONArg(t *testing.T) {
	value, err := readJSONArg(`{"n":1}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": float64(1)}, value)

	value, err = readJSONArg("")
	require.NoError(t, err)
	assert.Nil(t, value)

	_, err = readJSONArg("{nope")
	assert.ErrorIs(t, err, interfaces.ErrConfig)
}

func TestBuildSiwe(t *testing.T) {
	kp, err := sessions.GenerateSessionKeyPair()
	require.NoError(t, err)

	msg, err := buildSiwe(context.Background(), litclient.SiweParams{
		Address:    "0x0000000000000000000000000000000000000001",
		Domain:     "localhost",
		Statement:  "Lit Protocol PKP session signature",
		URI:        sessions.SessionKeyURI(kp.PublicKey),
		Nonce:      "0xbb",
		Expiration: "2030-01-01T00:00:00Z",
		Resources: []interfaces.ResourceAbilityRequest{{
			Resource: interfaces.LitResource{Resource: "*", ResourcePrefix: "lit-pkp"},
			Ability:  interfaces.AbilityPKPSigning,
		}},
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(msg, "localhost wants you to sign in with your Ethereum account:\n0x0000000000000000000000000000000000000001\n\nLit Protocol PKP session signature\n\n"))
	assert.Contains(t, msg, "URI: "+sessions.SessionKeyURI(kp.PublicKey)+"\n")
	assert.Contains(t, msg, "Nonce: 0xbb\n")
	assert.Contains(t, msg, "Expiration Time: 2030-01-01T00:00:00Z")
	assert.True(t, strings.HasSuffix(msg, "Resources:\n- lit-pkp://*#pkp-signing"))

	_, err = buildSiwe(context.Background(), litclient.SiweParams{})
	assert.ErrorIs(t, err, interfaces.ErrConfig)
}

func TestSessionAuthConfig(t *testing.T) {
	cfg, err := sessionAuthConfig(time.Hour)
	require.NoError(t, err)
	require.Len(t, cfg.Resources, 3)
	assert.Equal(t, interfaces.AbilityAccessControlConditionDecryption, cfg.Resources[0].Ability)
	assert.Equal(t, "*", cfg.Resources[1].Resource.Resource)

	expiration, err := time.Parse(time.RFC3339, cfg.Expiration)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiration, time.Minute)
}
