package threshold

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/lit-quorum-client/cryptoutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quoted(b []byte) string {
	return `"` + hex.EncodeToString(b) + `"`
}

func compressPoint(x, y *big.Int, size int) []byte {
	out := make([]byte, 1+size)
	out[0] = 2 + byte(y.Bit(0))
	x.FillBytes(out[1:])
	return out
}

// splitAdditive returns parts random values summing to s mod n.
func splitAdditive(t *testing.T, s, n *big.Int, parts int) []*big.Int {
	t.Helper()
	out := make([]*big.Int, parts)
	rest := new(big.Int).Set(s)
	for i := 0; i < parts-1; i++ {
		v, err := rand.Int(rand.Reader, n)
		require.NoError(t, err)
		out[i] = v
		rest.Sub(rest, v)
	}
	out[parts-1] = rest.Mod(rest, n)
	return out
}

type highSSignature struct {
	rx, ry *big.Int // nonce point of the high-s form
	r, s   *big.Int
}

// signHighS produces an ECDSA signature forced into its high-s form.
func signHighS(t *testing.T, curve elliptic.Curve, x *big.Int, digest []byte) highSSignature {
	t.Helper()
	params := curve.Params()
	n := params.N
	z := new(big.Int).SetBytes(digest)
	for {
		k, err := rand.Int(rand.Reader, n)
		require.NoError(t, err)
		if k.Sign() == 0 {
			continue
		}
		kb := make([]byte, (params.BitSize+7)/8)
		k.FillBytes(kb)
		rx, ry := curve.ScalarBaseMult(kb)
		r := new(big.Int).Mod(rx, n)
		if r.Sign() == 0 || rx.Cmp(n) >= 0 {
			continue
		}
		s := new(big.Int).Mul(r, x)
		s.Add(s, z)
		s.Mul(s, new(big.Int).ModInverse(k, n))
		s.Mod(s, n)
		if s.Sign() == 0 {
			continue
		}
		if s.Cmp(new(big.Int).Rsh(n, 1)) <= 0 {
			s.Sub(n, s)
			ry = new(big.Int).Sub(params.P, ry)
		}
		return highSSignature{rx: rx, ry: ry, r: r, s: s}
	}
}

func ecdsaShares(t *testing.T, sigType string, curve elliptic.Curve, sig highSSignature, digest, pub []byte, parts int) []EcdsaSignedMessageShare {
	t.Helper()
	size := (curve.Params().BitSize + 7) / 8
	bigR := compressPoint(sig.rx, sig.ry, size)

	var shares []EcdsaSignedMessageShare
	for i, part := range splitAdditive(t, sig.s, curve.Params().N, parts) {
		sb := make([]byte, size)
		part.FillBytes(sb)
		shares = append(shares, EcdsaSignedMessageShare{
			Digest:         hex.EncodeToString(digest),
			Result:         "success",
			ShareID:        quoted([]byte{byte(i + 1)}),
			PeerID:         hex.EncodeToString([]byte{byte(i)}),
			SignatureShare: quoted(sb),
			BigR:           quoted(bigR),
			PublicKey:      quoted(pub),
			SigType:        sigType,
		})
	}
	return shares
}

func TestCombineEcdsaShares_K256LowSAndRecovery(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	pub := priv.PubKey().SerializeUncompressed()
	digest := crypto.Keccak256([]byte("sign me"))

	sig := signHighS(t, secp256k1.S256(), new(big.Int).SetBytes(priv.Serialize()), digest)
	shares := ecdsaShares(t, cryptoutils.SchemeEcdsaK256Sha256, secp256k1.S256(), sig, digest, pub, 3)

	signed, err := CombineEcdsaShares(shares)
	require.NoError(t, err)

	n := secp256k1.S256().Params().N
	s := new(big.Int).SetBytes(signed.Signature[32:])
	assert.True(t, s.Cmp(new(big.Int).Rsh(n, 1)) <= 0, "Combined signature should be low-s")
	assert.Equal(t, new(big.Int).Sub(n, sig.s), s)

	require.NotNil(t, signed.RecoveryID)
	assert.Equal(t, byte(sig.ry.Bit(0))^1, *signed.RecoveryID, "Recovery id should flip with s")

	recovered, err := crypto.SigToPub(digest, append(append([]byte{}, signed.Signature...), *signed.RecoveryID))
	require.NoError(t, err)
	assert.Equal(t, pub, crypto.FromECDSAPub(recovered), "Recovered key should match the signing key")

	eth, err := signed.EthereumSignature()
	require.NoError(t, err)
	assert.Equal(t, 27+*signed.RecoveryID, eth[64])
	assert.Equal(t, digest, signed.SignedData)
}

func TestCombineEcdsaShares_P256(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	pub := elliptic.Marshal(elliptic.P256(), key.X, key.Y) //nolint:staticcheck
	digest := sha256.Sum256([]byte("p256"))

	sig := signHighS(t, elliptic.P256(), key.D, digest[:])
	signed, err := CombineEcdsaShares(ecdsaShares(t, cryptoutils.SchemeEcdsaP256Sha256, elliptic.P256(), sig, digest[:], pub, 4))
	require.NoError(t, err)

	r := new(big.Int).SetBytes(signed.Signature[:32])
	s := new(big.Int).SetBytes(signed.Signature[32:])
	assert.True(t, ecdsa.Verify(&key.PublicKey, digest[:], r, s))

	// the recovery id is the parity of the nonce point of the low-s signature
	require.NotNil(t, signed.RecoveryID)
	x, y := elliptic.UnmarshalCompressed(elliptic.P256(), compressPoint(sig.rx, new(big.Int).Sub(elliptic.P256().Params().P, sig.ry), 32))
	require.NotNil(t, x)
	assert.Equal(t, byte(y.Bit(0)), *signed.RecoveryID)
}

func TestCombineEcdsaShares_Rejects(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	pub := priv.PubKey().SerializeUncompressed()
	digest := crypto.Keccak256([]byte("reject"))
	sig := signHighS(t, secp256k1.S256(), new(big.Int).SetBytes(priv.Serialize()), digest)

	t.Run("mismatched big_r", func(t *testing.T) {
		shares := ecdsaShares(t, cryptoutils.SchemeEcdsaK256Sha256, secp256k1.S256(), sig, digest, pub, 3)
		shares[1].BigR = quoted(priv.PubKey().SerializeCompressed())
		_, err := CombineEcdsaShares(shares)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid share found")
	})

	t.Run("tampered share", func(t *testing.T) {
		shares := ecdsaShares(t, cryptoutils.SchemeEcdsaK256Sha256, secp256k1.S256(), sig, digest, pub, 3)
		shares[2].SignatureShare = quoted(make([]byte, 31))
		_, err := CombineEcdsaShares(shares)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ecdsa verification failed")
	})

	t.Run("unknown scheme", func(t *testing.T) {
		shares := ecdsaShares(t, "EcdsaUnknown", secp256k1.S256(), sig, digest, pub, 2)
		_, err := CombineEcdsaShares(shares)
		require.Error(t, err)
	})
}
