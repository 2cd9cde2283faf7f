package cryptoutils

import "github.com/ebfe/keccak"

// Keccak384 returns the Keccak-384 digest of data with the original Keccak padding,
// as used for P-384 message hashing.
func Keccak384(data []byte) []byte {
	h := keccak.New384()
	h.Write(data)
	return h.Sum(nil)
}
