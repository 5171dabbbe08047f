package querycache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// GenerateKey creates the cache key for a document and its variables.
// Keys of the same document share the DocumentKey prefix.
func GenerateKey(document string, variables map[string]any) string {
	hash := sha256.Sum256(normalizeVariables(variables))
	return DocumentKey(document) + ":" + hex.EncodeToString(hash[:8])
}

// DocumentKey returns the key prefix shared by every variable set of a document
func DocumentKey(document string) string {
	hash := sha256.Sum256([]byte(normalizeDocument(document)))
	return hex.EncodeToString(hash[:8])
}

// normalizeDocument collapses whitespace so formatting does not split entries
func normalizeDocument(document string) string {
	return strings.Join(strings.Fields(document), " ")
}

// normalizeVariables renders variables as canonical JSON
func normalizeVariables(variables map[string]any) []byte {
	if len(variables) == 0 {
		return []byte("{}")
	}

	raw, err := json.Marshal(variables)
	if err != nil {
		return []byte("{}")
	}

	// Round-trip so struct values and typed maps hash like their JSON form;
	// Marshal sorts map keys
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return raw
	}

	result, err := json.Marshal(data)
	if err != nil {
		return raw
	}
	return result
}
