// Package digest produces stable content hashes of JSON-encodable values.
// Values are encoded, canonicalized per RFC 8785 and hashed with BLAKE2b-256,
// so two structurally equal values hash the same regardless of map order or
// number formatting.
package digest

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
	"golang.org/x/crypto/blake2b"
)

// Prefix tags every digest with its algorithm.
const Prefix = "blake2b256:"

// Canonical returns the RFC 8785 encoding of v.
func Canonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}
	return out, nil
}

// Of returns the prefixed hex digest of v.
func Of(v any) (string, error) {
	canon, err := Canonical(v)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(canon)
	return Prefix + hex.EncodeToString(sum[:]), nil
}
