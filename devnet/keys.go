package devnet

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ruteri/lit-quorum-client/interfaces"
	"github.com/ruteri/lit-quorum-client/threshold"
)

// Keys is the key material dealt to a devnet. Every node gets one BLS share of the
// network key and the full PKP key.
type Keys struct {
	// BLSShares are the nodes' shares of the network key, signatures in G2.
	BLSShares []threshold.SecretKeyShare
	// NetworkPublicKey is the compressed G1 public key of the network key.
	NetworkPublicKey []byte

	PKP *secp256k1.PrivateKey

	// nonceSeed derives the signing nonces nodes agree on without talking to each other.
	nonceSeed []byte

	LatestBlockhash string
}

// DealKeys creates fresh key material for n nodes of which t must cooperate.
func DealKeys(t, n int) (*Keys, error) {
	secret, err := threshold.RandomScalar(rand.Reader)
	if err != nil {
		return nil, err
	}
	shares, err := threshold.SplitSecret(secret, t, n, rand.Reader)
	if err != nil {
		return nil, err
	}

	pkp, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, interfaces.CryptoError("generating pkp: %w", err)
	}

	seed := make([]byte, 32)
	blockhash := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return nil, err
	}
	if _, err := rand.Read(blockhash); err != nil {
		return nil, err
	}

	return &Keys{
		BLSShares:        shares,
		NetworkPublicKey: threshold.PublicKey(threshold.SignaturesInG2, secret),
		PKP:              pkp,
		nonceSeed:        seed,
		LatestBlockhash:  "0x" + hex.EncodeToString(blockhash),
	}, nil
}

// NetworkPublicKeyHex is the subnet and network public key nodes report.
func (k *Keys) NetworkPublicKeyHex() string {
	return hex.EncodeToString(k.NetworkPublicKey)
}

// PKPPublicKeyHex is the uncompressed PKP public key, 0x prefixed.
func (k *Keys) PKPPublicKeyHex() string {
	return "0x" + hex.EncodeToString(k.PKP.PubKey().SerializeUncompressed())
}

func (k *Keys) pkpScalar() *big.Int {
	return new(big.Int).SetBytes(k.PKP.Serialize())
}
