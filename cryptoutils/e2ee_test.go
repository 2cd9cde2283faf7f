package cryptoutils

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/ruteri/lit-quorum-client/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomSecret(t *testing.T) [32]byte {
	t.Helper()
	var secret [32]byte
	_, err := rand.Read(secret[:])
	require.NoError(t, err, "Failed to generate secret")
	return secret
}

func TestSecureChannel_RoundTrip(t *testing.T) {
	senderSecret := randomSecret(t)
	recipientSecret := randomSecret(t)
	recipientPublic, err := PublicKey(recipientSecret)
	require.NoError(t, err)

	for _, size := range []int{0, 1, 31, 32, 33, 255, 1024, 4096} {
		plaintext := make([]byte, size)
		_, err := rand.Read(plaintext)
		require.NoError(t, err)

		env, err := Encrypt(senderSecret, recipientPublic, plaintext)
		require.NoError(t, err, "Encrypt should succeed for size %d", size)

		decrypted, err := Decrypt(recipientSecret, env)
		require.NoError(t, err, "Decrypt should succeed for size %d", size)
		assert.Equal(t, plaintext, decrypted, "Round trip should preserve plaintext of size %d", size)
	}
}

func TestSecureChannel_EnvelopeLayout(t *testing.T) {
	senderSecret := randomSecret(t)
	recipientSecret := randomSecret(t)
	recipientPublic, err := PublicKey(recipientSecret)
	require.NoError(t, err)
	senderPublic, err := PublicKey(senderSecret)
	require.NoError(t, err)

	now := time.Date(2025, 3, 4, 5, 6, 7, 891_234_567, time.UTC)
	env, err := encryptAt(senderSecret, recipientPublic, []byte("hello"), now, rand.Reader)
	require.NoError(t, err)

	assert.Equal(t, "1", env.Version)
	assert.Equal(t, hex.EncodeToString(senderPublic[:]), env.Payload.VerificationKey, "verification key should be the sender public key")
	assert.Equal(t, "2025-03-04T05:06:07.891Z", env.Payload.CreatedAt)
	assert.Len(t, env.Payload.Random, 32, "random should be 16 bytes of hex")

	ciphertext, err := hex.DecodeString(env.Payload.CiphertextAndTag)
	require.NoError(t, err)
	assert.Len(t, ciphertext, 16+16+5, "ciphertext should carry zero prefix, tag and message")
	assert.Equal(t, make([]byte, 16), ciphertext[:16], "ciphertext should start with 16 zero bytes")

	decrypted, err := Decrypt(recipientSecret, env)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), decrypted)
}

func TestSecureChannel_Tampered(t *testing.T) {
	senderSecret := randomSecret(t)
	recipientSecret := randomSecret(t)
	recipientPublic, err := PublicKey(recipientSecret)
	require.NoError(t, err)

	env, err := Encrypt(senderSecret, recipientPublic, []byte("attack at dawn"))
	require.NoError(t, err)

	ciphertext, err := hex.DecodeString(env.Payload.CiphertextAndTag)
	require.NoError(t, err)

	for i := 16; i < len(ciphertext); i++ {
		tampered := bytes.Clone(ciphertext)
		tampered[i] ^= 0x01
		copyEnv := *env
		copyEnv.Payload.CiphertextAndTag = hex.EncodeToString(tampered)

		_, err := Decrypt(recipientSecret, &copyEnv)
		require.Error(t, err, "Tampered byte %d should fail", i)
		assert.True(t, errors.Is(err, interfaces.ErrCrypto), "Tampering should be a crypto error")
		assert.Contains(t, err.Error(), "E2EE decryption failed")
	}

	// Changing the timestamp second changes the derived nonce.
	shifted := *env
	created, err := time.Parse(time.RFC3339Nano, env.Payload.CreatedAt)
	require.NoError(t, err)
	shifted.Payload.CreatedAt = created.Add(2 * time.Second).Format(createdAtLayout)
	_, err = Decrypt(recipientSecret, &shifted)
	assert.Error(t, err, "Altered timestamp should fail")

	// The wrong recipient cannot open the box.
	_, err = Decrypt(randomSecret(t), env)
	assert.Error(t, err, "Wrong recipient should fail")
}

func TestSecureChannel_InvalidEnvelope(t *testing.T) {
	secret := randomSecret(t)
	recipientPublic, err := PublicKey(secret)
	require.NoError(t, err)

	env, err := Encrypt(randomSecret(t), recipientPublic, []byte("payload"))
	require.NoError(t, err)

	badVersion := *env
	badVersion.Version = "2"
	_, err = Decrypt(secret, &badVersion)
	assert.ErrorContains(t, err, "unsupported encrypted payload version")

	badRandom := *env
	badRandom.Payload.Random = "abcd"
	_, err = Decrypt(secret, &badRandom)
	assert.ErrorContains(t, err, "invalid random length")

	short := *env
	short.Payload.CiphertextAndTag = hex.EncodeToString(make([]byte, 20))
	_, err = Decrypt(secret, &short)
	assert.ErrorContains(t, err, "decrypted payload too short")

	_, err = Decrypt(secret, nil)
	assert.Error(t, err, "nil envelope should fail")
}

func TestParseKey(t *testing.T) {
	key, err := ParseKey("0x0102")
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), key[30])
	assert.Equal(t, byte(0x02), key[31])
	assert.Equal(t, make([]byte, 30), key[:30], "short keys should be left padded")

	_, err = ParseKey("zz")
	assert.Error(t, err)

	_, err = ParseKey(hex.EncodeToString(make([]byte, 33)))
	assert.Error(t, err)
}

func TestJitKeySet_NodeExchange(t *testing.T) {
	nodeSecrets := map[string][32]byte{}
	identityKeys := map[string]string{}
	for _, url := range []string{"http://127.0.0.1:7470", "http://127.0.0.1:7471"} {
		secret := randomSecret(t)
		public, err := PublicKey(secret)
		require.NoError(t, err)
		nodeSecrets[url] = secret
		identityKeys[url] = "0x" + hex.EncodeToString(public[:])
	}

	set, err := NewJitKeySet(identityKeys)
	require.NoError(t, err)

	for url, nodeSecret := range nodeSecrets {
		request, err := set.EncryptFor(url, []byte(`{"hello":"`+url+`"}`))
		require.NoError(t, err)

		// The node opens the request with its identity secret.
		plaintext, err := Decrypt(nodeSecret, request)
		require.NoError(t, err)
		assert.Equal(t, `{"hello":"`+url+`"}`, string(plaintext))

		// The node answers to the client's ephemeral key.
		clientPublic, err := ParseKey(request.Payload.VerificationKey)
		require.NoError(t, err)
		response, err := Encrypt(nodeSecret, clientPublic, []byte("ok"))
		require.NoError(t, err)

		opened, err := set.Decrypt(response)
		require.NoError(t, err)
		assert.Equal(t, "ok", string(opened))

		_, ok := set.SecretFor("0x" + response.Payload.VerificationKey)
		assert.True(t, ok, "lookup should accept a 0x prefix")
	}

	stranger, err := Encrypt(randomSecret(t), randomSecret(t), []byte("x"))
	require.NoError(t, err)
	_, err = set.Decrypt(stranger)
	assert.ErrorContains(t, err, "unknown verification key")

	_, err = set.EncryptFor("http://unknown", []byte("x"))
	assert.Error(t, err)
}

func TestJitKeySet_FreshSecrets(t *testing.T) {
	identity := map[string]string{"http://n1": hex.EncodeToString(make([]byte, 32))}
	a, err := NewJitKeySet(identity)
	require.NoError(t, err)
	b, err := NewJitKeySet(identity)
	require.NoError(t, err)

	keyA, _ := a.Key("http://n1")
	keyB, _ := b.Key("http://n1")
	assert.NotEqual(t, keyA.SecretKey, keyB.SecretKey, "every key set should use fresh secrets")
	assert.Equal(t, keyA.PublicKey, keyB.PublicKey)
}
