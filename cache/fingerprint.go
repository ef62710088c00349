package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Fingerprint derives the ETag for a JSON payload: the payload is decoded
// and re-encoded so that object keys come out sorted, then hashed. Two
// payloads that differ only in key order therefore produce the same ETag.
// Array element order is semantic and preserved.
func Fingerprint(payload []byte) (string, error) {
	var decoded interface{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "", fmt.Errorf("fingerprint: decode payload: %w", err)
	}
	canonical, err := json.Marshal(decoded)
	if err != nil {
		return "", fmt.Errorf("fingerprint: canonicalize payload: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
