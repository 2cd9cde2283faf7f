package devnet

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ruteri/lit-quorum-client/api"
	"github.com/ruteri/lit-quorum-client/cryptoutils"
	"github.com/ruteri/lit-quorum-client/interfaces"
	"github.com/ruteri/lit-quorum-client/threshold"
)

func (k *Keys) derive(label string, parts ...[]byte) *big.Int {
	n := secp256k1.S256().Params().N
	for ctr := uint32(0); ; ctr++ {
		h := sha256.New()
		h.Write([]byte(label))
		h.Write(k.nonceSeed)
		for _, p := range parts {
			var l [4]byte
			binary.BigEndian.PutUint32(l[:], uint32(len(p)))
			h.Write(l[:])
			h.Write(p)
		}
		binary.Write(h, binary.BigEndian, ctr)
		v := new(big.Int).SetBytes(h.Sum(nil))
		if v.Sign() != 0 && v.Cmp(n) < 0 {
			return v
		}
	}
}

// ecdsaShare signs digest with the PKP and returns the additive share of s held by
// the node at position index of nodeSet. All nodes of the set derive the same nonce.
func (k *Keys) ecdsaShare(digest []byte, nodeSet []api.NodeSetEntry, index int, peerID string) (*threshold.EcdsaSignedMessageShare, error) {
	if len(digest) != 32 {
		return nil, interfaces.CryptoError("digest must be 32 bytes, got %d", len(digest))
	}
	if index < 0 || index >= len(nodeSet) {
		return nil, interfaces.ConfigError("node is not part of the node set")
	}

	curve := secp256k1.S256()
	n := curve.Params().N

	var setID []byte
	for _, entry := range nodeSet {
		setID = append(setID, []byte(entry.SocketAddress)...)
		setID = append(setID, 0)
	}

	nonce := k.derive("nonce", digest, setID)
	rx, ry := curve.ScalarBaseMult(nonce.Bytes())
	r := new(big.Int).Mod(rx, n)

	s := new(big.Int).Mul(r, k.pkpScalar())
	s.Add(s, new(big.Int).SetBytes(digest))
	s.Mul(s, new(big.Int).ModInverse(nonce, n))
	s.Mod(s, n)

	// parts 0..m-2 are pseudo random, the last one completes the sum
	share := new(big.Int)
	if index < len(nodeSet)-1 {
		share = k.derive("share", digest, setID, []byte{byte(index)})
	} else {
		share.Set(s)
		for i := 0; i < len(nodeSet)-1; i++ {
			share.Sub(share, k.derive("share", digest, setID, []byte{byte(i)}))
		}
		share.Mod(share, n)
	}

	var fx, fy secp256k1.FieldVal
	fx.SetByteSlice(rx.Bytes())
	fy.SetByteSlice(ry.Bytes())
	bigR := secp256k1.NewPublicKey(&fx, &fy).SerializeCompressed()

	shareBytes := make([]byte, 32)
	share.FillBytes(shareBytes)

	return &threshold.EcdsaSignedMessageShare{
		Digest:              hex.EncodeToString(digest),
		Result:              "success",
		ShareID:             fmt.Sprintf("%d", index+1),
		PeerID:              peerID,
		SignatureShare:      hex.EncodeToString(shareBytes),
		BigR:                hex.EncodeToString(bigR),
		CompressedPublicKey: hex.EncodeToString(k.PKP.PubKey().SerializeCompressed()),
		PublicKey:           hex.EncodeToString(k.PKP.PubKey().SerializeUncompressed()),
		SigType:             cryptoutils.SchemeEcdsaK256Sha256,
	}, nil
}
