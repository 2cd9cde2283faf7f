package common

import (
	"bytes"
	"encoding/json"
)

// MarshalJSON serializes v without HTML escaping and without a trailing newline.
// Signed documents and condition hashes must match the byte layout produced by
// the nodes, which never escape '<', '>' or '&'.
func MarshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
