package sessions

import (
	"crypto/ed25519"
	"encoding/hex"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ruteri/lit-quorum-client/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAuthContext(t *testing.T) *interfaces.AuthContext {
	t.Helper()
	kp, err := GenerateSessionKeyPair()
	require.NoError(t, err, "Failed to generate session key")

	decrypt, err := NewResourceAbilityRequest(interfaces.AbilityAccessControlConditionDecryption, "")
	require.NoError(t, err)
	resolved, err := NewResourceAbilityRequest(interfaces.AbilityResolvedAuthContext, "")
	require.NoError(t, err)

	return &interfaces.AuthContext{
		SessionKeyPair: kp,
		AuthConfig: interfaces.AuthConfig{
			Resources:          []interfaces.ResourceAbilityRequest{decrypt, resolved},
			CapabilityAuthSigs: []interfaces.AuthSig{{Sig: "cap", DerivedVia: "web3.eth.personal.sign", SignedMessage: "<capability>", Address: "0x1"}},
			Expiration:         "2030-01-01T00:00:00.000Z",
		},
		DelegationAuthSig: interfaces.AuthSig{Sig: "deleg", DerivedVia: "lit.bls", SignedMessage: "uri " + SessionKeyURI(kp.PublicKey), Address: "0x2"},
	}
}

func TestIssue_TemplateLayout(t *testing.T) {
	auth := testAuthContext(t)
	now := time.Date(2025, 1, 2, 3, 4, 5, 678_000_000, time.UTC)

	sigs, err := issueAt(auth, []interfaces.NodePrice{{URL: "https://node-a:443"}}, now)
	require.NoError(t, err)
	require.Len(t, sigs, 1)

	sig := sigs["https://node-a:443"]
	assert.Equal(t, DerivedViaNacl, sig.DerivedVia)
	assert.Equal(t, AlgoEd25519, sig.Algo)
	assert.Equal(t, auth.SessionKeyPair.PublicKey, sig.Address)

	msg := sig.SignedMessage
	order := []string{`"sessionKey"`, `"resourceAbilityRequests"`, `"capabilities"`, `"issuedAt"`, `"expiration"`, `"nodeAddress"`, `"maxPrice"`}
	last := -1
	for _, field := range order {
		idx := strings.Index(msg, field)
		require.Greater(t, idx, last, "Field %s should follow the previous field", field)
		last = idx
	}

	assert.Contains(t, msg, `"issuedAt":"2025-01-02T03:04:05.678Z"`)
	assert.Contains(t, msg, `"maxPrice":"ffffffffffffffffffffffffffffffff"`, "Default price should be 2^128-1")
	assert.Contains(t, msg, `<capability>`, "Templates should not be HTML escaped")
	assert.NotContains(t, msg, string(interfaces.AbilityResolvedAuthContext), "Resolved auth context ability must not be signed")
	assert.True(t, strings.Index(msg, `"cap"`) < strings.Index(msg, `"deleg"`), "Delegation sig should be the last capability")

	pub, err := hex.DecodeString(auth.SessionKeyPair.PublicKey)
	require.NoError(t, err)
	raw, err := hex.DecodeString(sig.Sig)
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(pub, []byte(msg), raw))
}

func TestIssue_PerNodeSignaturesAndPrices(t *testing.T) {
	auth := testAuthContext(t)
	nodes := []string{"http://127.0.0.1:7470", "http://127.0.0.1:7471", "http://127.0.0.1:7472"}

	perNode := PerNodeMaxPrice(big.NewInt(100), len(nodes))
	assert.Equal(t, big.NewInt(33), perNode, "Cap should be floor divided")

	sigs, err := Issue(auth, nodes, perNode)
	require.NoError(t, err)
	require.Len(t, sigs, 3)

	seen := map[string]bool{}
	for _, url := range nodes {
		tmpl, err := Verify(sigs[url], url, time.Now())
		require.NoError(t, err, "Signature for %s should verify", url)
		assert.Equal(t, url, tmpl.NodeAddress)
		assert.Equal(t, "21", tmpl.MaxPrice)
		assert.False(t, seen[sigs[url].Sig], "Signatures should differ per node")
		seen[sigs[url].Sig] = true
	}

	_, err = Verify(sigs[nodes[0]], nodes[1], time.Now())
	require.Error(t, err, "A signature must not verify for another node")

	_, err = Verify(sigs[nodes[0]], nodes[0], time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC))
	require.Error(t, err, "Expired sessions must be rejected")
}

func TestIssue_SeedSecretKey(t *testing.T) {
	auth := testAuthContext(t)
	full, err := hex.DecodeString(auth.SessionKeyPair.SecretKey)
	require.NoError(t, err)
	auth.SessionKeyPair.SecretKey = hex.EncodeToString(full[:ed25519.SeedSize])

	sigs, err := Issue(auth, []string{"http://n"}, nil)
	require.NoError(t, err)
	_, err = Verify(sigs["http://n"], "http://n", time.Now())
	require.NoError(t, err)

	auth.SessionKeyPair.SecretKey = "abcd"
	_, err = Issue(auth, []string{"http://n"}, nil)
	require.ErrorIs(t, err, interfaces.ErrCrypto)
}

func TestIssue_MismatchedPublicKey(t *testing.T) {
	auth := testAuthContext(t)
	other, err := GenerateSessionKeyPair()
	require.NoError(t, err)
	auth.SessionKeyPair.PublicKey = other.PublicKey

	_, err = Issue(auth, []string{"http://n"}, nil)
	require.ErrorIs(t, err, interfaces.ErrConfig)
}

func TestSigningTemplate_Allows(t *testing.T) {
	auth := testAuthContext(t)
	sigs, err := Issue(auth, []string{"http://n"}, nil)
	require.NoError(t, err)
	tmpl, err := Verify(sigs["http://n"], "http://n", time.Now())
	require.NoError(t, err)

	assert.True(t, tmpl.Allows(interfaces.AbilityAccessControlConditionDecryption, PrefixAccessControlCondition, "abc/def"))
	assert.False(t, tmpl.Allows(interfaces.AbilityPKPSigning, PrefixPKP, "123"))
}

func TestValidateDelegationAuthSig(t *testing.T) {
	auth := testAuthContext(t)
	require.NoError(t, ValidateDelegationAuthSig(auth.DelegationAuthSig, auth.SessionKeyPair.PublicKey))

	other, err := GenerateSessionKeyPair()
	require.NoError(t, err)
	require.Error(t, ValidateDelegationAuthSig(auth.DelegationAuthSig, other.PublicKey))
	require.Error(t, ValidateDelegationAuthSig(interfaces.AuthSig{}, auth.SessionKeyPair.PublicKey))
}

func TestNewResourceAbilityRequest(t *testing.T) {
	req, err := NewResourceAbilityRequest(interfaces.AbilityPKPSigning, "42")
	require.NoError(t, err)
	assert.Equal(t, "lit-pkp://42", ResourceKey(req.Resource))

	_, err = NewResourceAbilityRequest("unknown", "x")
	require.ErrorIs(t, err, interfaces.ErrConfig)
}
