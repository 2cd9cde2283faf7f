package threshold

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"

	"filippo.io/edwards25519"
	"github.com/ruteri/lit-quorum-client/cryptoutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomEdScalar(t *testing.T) *edwards25519.Scalar {
	t.Helper()
	buf := make([]byte, 64)
	_, err := rand.Read(buf)
	require.NoError(t, err)
	s, err := edwards25519.NewScalar().SetUniformBytes(buf)
	require.NoError(t, err)
	return s
}

func edScalarFromUint(i byte) *edwards25519.Scalar {
	b := make([]byte, 32)
	b[0] = i
	s, _ := edwards25519.NewScalar().SetCanonicalBytes(b)
	return s
}

// frostSign runs a dealer keyed FROST(Ed25519, SHA-512) signing round for the given
// 1-based participant ids, which must be ascending.
func frostSign(t *testing.T, msg []byte, threshold int, signers []byte) ([]FrostSignedMessageShare, []byte) {
	t.Helper()

	coeffs := make([]*edwards25519.Scalar, threshold)
	for i := range coeffs {
		coeffs[i] = randomEdScalar(t)
	}
	groupKey := new(edwards25519.Point).ScalarBaseMult(coeffs[0])

	participants := make([]*frostParticipant, len(signers))
	secrets := make([]*edwards25519.Scalar, len(signers))
	hidingNonces := make([]*edwards25519.Scalar, len(signers))
	bindingNonces := make([]*edwards25519.Scalar, len(signers))
	var encoded bytes.Buffer
	for i, id := range signers {
		x := edScalarFromUint(id)
		y := edwards25519.NewScalar()
		for j := threshold - 1; j >= 0; j-- {
			y.Multiply(y, x)
			y.Add(y, coeffs[j])
		}
		secrets[i] = y
		hidingNonces[i] = randomEdScalar(t)
		bindingNonces[i] = randomEdScalar(t)
		participants[i] = &frostParticipant{
			peerID:    fmt.Sprintf("node-%d", id),
			id:        x,
			hiding:    new(edwards25519.Point).ScalarBaseMult(hidingNonces[i]),
			binding:   new(edwards25519.Point).ScalarBaseMult(bindingNonces[i]),
			verifying: new(edwards25519.Point).ScalarBaseMult(y),
		}
		encoded.Write(x.Bytes())
		encoded.Write(participants[i].hiding.Bytes())
		encoded.Write(participants[i].binding.Bytes())
	}

	msgHash := sha512.Sum512(append([]byte(frostEd25519Context+"msg"), msg...))
	comHash := sha512.Sum512(append([]byte(frostEd25519Context+"com"), encoded.Bytes()...))
	prefix := append(append(bytes.Clone(groupKey.Bytes()), msgHash[:]...), comHash[:]...)

	commitment := edwards25519.NewIdentityPoint()
	for _, p := range participants {
		p.rho = frostHash("rho", prefix, p.id.Bytes())
		var term edwards25519.Point
		term.ScalarMult(p.rho, p.binding)
		term.Add(&term, p.hiding)
		commitment.Add(commitment, &term)
	}
	c := frostHash("", commitment.Bytes(), groupKey.Bytes(), msg)

	shares := make([]FrostSignedMessageShare, len(signers))
	for i, p := range participants {
		z := edwards25519.NewScalar().Multiply(bindingNonces[i], p.rho)
		z.Add(z, hidingNonces[i])
		lc := edwards25519.NewScalar().Multiply(edLagrange(participants, i), secrets[i])
		lc.Multiply(lc, c)
		z.Add(z, lc)

		commitments, err := json.Marshal(FrostCommitments{
			Hiding:  hex.EncodeToString(p.hiding.Bytes()),
			Binding: hex.EncodeToString(p.binding.Bytes()),
		})
		require.NoError(t, err)
		shares[i] = FrostSignedMessageShare{
			Message:            hex.EncodeToString(msg),
			Result:             "success",
			ShareID:            hex.EncodeToString(p.id.Bytes()),
			PeerID:             p.peerID,
			SignatureShare:     quoted(z.Bytes()),
			SigningCommitments: string(commitments),
			VerifyingShare:     hex.EncodeToString(p.verifying.Bytes()),
			PublicKey:          hex.EncodeToString(groupKey.Bytes()),
			SigType:            cryptoutils.SchemeSchnorrEd25519Sha512,
		}
	}
	return shares, groupKey.Bytes()
}

func TestCombineFrostShares_Ed25519(t *testing.T) {
	msg := []byte("frost message")
	shares, groupKey := frostSign(t, msg, 3, []byte{1, 3, 4})

	// arrival order does not matter
	shares[0], shares[2] = shares[2], shares[0]

	signed, err := CombineFrostShares(shares)
	require.NoError(t, err)
	assert.Len(t, signed.Signature, ed25519.SignatureSize)
	assert.True(t, ed25519.Verify(groupKey, msg, signed.Signature), "Aggregate should be a standard Ed25519 signature")
	assert.Equal(t, groupKey, signed.VerifyingKey)
	assert.Nil(t, signed.RecoveryID)
}

func TestCombineFrostShares_IdentifiesCheater(t *testing.T) {
	msg := []byte("frost message")
	shares, _ := frostSign(t, msg, 2, []byte{1, 2, 5})
	shares[1].SignatureShare = hex.EncodeToString(randomEdScalar(t).Bytes())

	_, err := CombineFrostShares(shares)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node-2")
	assert.NotContains(t, err.Error(), "node-1")
	assert.NotContains(t, err.Error(), "node-5")
}

func TestCombineFrostShares_UnsupportedScheme(t *testing.T) {
	shares, _ := frostSign(t, []byte("m"), 2, []byte{1, 2})
	for i := range shares {
		shares[i].SigType = cryptoutils.SchemeSchnorrK256Sha256
	}
	_, err := CombineFrostShares(shares)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported frost scheme SchnorrK256Sha256")
}

func TestDecodeFrostBytes(t *testing.T) {
	for _, in := range []string{`0a0b`, `"0a0b"`, `[10,11]`, `{"value":"0a0b"}`, `{"id":[10,11]}`} {
		b, err := decodeFrostBytes(in)
		require.NoError(t, err, in)
		assert.Equal(t, []byte{10, 11}, b, in)
	}
	_, err := decodeFrostBytes(`{"other":1}`)
	require.Error(t, err)
}
