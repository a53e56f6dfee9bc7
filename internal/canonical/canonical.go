// Package canonical provides deterministic JSON serialization and SHA-256
// digesting shared by the event store and descriptor integrity checks.
//
// Canonical form follows RFC 8785 (JSON Canonicalization Scheme): object
// keys sorted by UTF-8 byte order, minimal separators, no HTML escaping
// and no ASCII coercion. Logically identical content always produces the
// same bytes, and therefore the same digest, regardless of field insertion
// order or storage encoding.
package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// HashPrefix is prepended to every rendered digest.
const HashPrefix = "sha256:"

// Marshal serializes v to RFC 8785 canonical JSON.
func Marshal(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: marshal: %w", err)
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonical: transform: %w", err)
	}
	return out, nil
}

// Digest returns the canonical SHA-256 digest of v as "sha256:<64-hex>".
func Digest(v any) (string, error) {
	b, err := Marshal(v)
	if err != nil {
		return "", err
	}
	return DigestBytes(b), nil
}

// DigestBytes returns the SHA-256 digest of raw bytes as "sha256:<64-hex>".
func DigestBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return HashPrefix + hex.EncodeToString(sum[:])
}
