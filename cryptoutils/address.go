package cryptoutils

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// PKPEthAddress returns the checksummed Ethereum address of a secp256k1 public key
// given as hex, compressed or uncompressed, with or without 0x.
func PKPEthAddress(pubKeyHex string) (string, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(pubKeyHex, "0x"))
	if err != nil {
		return "", fmt.Errorf("invalid public key hex: %w", err)
	}

	pub, err := secp256k1.ParsePubKey(raw)
	if err != nil {
		return "", fmt.Errorf("invalid secp256k1 public key: %w", err)
	}

	uncompressed := pub.SerializeUncompressed()
	return common.BytesToAddress(crypto.Keccak256(uncompressed[1:])[12:]).Hex(), nil
}
