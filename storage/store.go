package storage

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/ruteri/lit-quorum-client/interfaces"
)

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateName checks that name can be used as a store key by every backend.
func ValidateName(name string) error {
	if !validName.MatchString(name) {
		return interfaces.ConfigError("invalid session name %q", name)
	}
	return nil
}

func encodeAuthContext(auth *interfaces.AuthContext) ([]byte, error) {
	if auth == nil {
		return nil, interfaces.ConfigError("auth context is nil")
	}
	data, err := json.Marshal(auth)
	if err != nil {
		return nil, fmt.Errorf("failed to encode auth context: %w", err)
	}
	return data, nil
}

func decodeAuthContext(data []byte) (*interfaces.AuthContext, error) {
	var auth interfaces.AuthContext
	if err := json.Unmarshal(data, &auth); err != nil {
		return nil, fmt.Errorf("failed to decode auth context: %w", err)
	}
	return &auth, nil
}
