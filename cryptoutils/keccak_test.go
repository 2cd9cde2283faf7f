package cryptoutils

import (
	"encoding/hex"
	"testing"

	"github.com/ebfe/keccak"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/sha3"
)

func TestKeccak_LegacyPadding(t *testing.T) {
	for _, size := range []int{0, 1, 71, 72, 73, 135, 136, 137, 500} {
		data := make([]byte, size)
		for i := range data {
			data[i] = byte(i*7 + 3)
		}

		ours := keccak.New256()
		ours.Write(data)
		reference := sha3.NewLegacyKeccak256()
		reference.Write(data)
		assert.Equal(t, reference.Sum(nil), ours.Sum(nil), "keccak-256 mismatch for size %d", size)

		ours = keccak.New512()
		ours.Write(data)
		reference = sha3.NewLegacyKeccak512()
		reference.Write(data)
		assert.Equal(t, reference.Sum(nil), ours.Sum(nil), "keccak-512 mismatch for size %d", size)
	}
}

func TestKeccak384_Empty(t *testing.T) {
	assert.Equal(t,
		"2c23146a63a29acf99e73b88f8c24eaa7dc60aa771780ccc006afbfa8fe2479b2dd2b21362337441ac12b515911957ff",
		hex.EncodeToString(Keccak384(nil)))
	assert.Len(t, Keccak384([]byte("lit")), 48)
}
