package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNodeURL(t *testing.T) {
	assert.Equal(t, "10.0.0.1", IntToIP(0x0a000001))
	assert.Equal(t, "https://192.168.1.20:443", NodeURL("https://", 0xc0a80114, 443))
}
