// Package idhash derives deterministic identifiers and seeds from MIDs so that
// demo data is stable across runs.
package idhash

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strings"
)

// CustomerID computes a deterministic customer number for a MID.
// Formula: "C" + upper(hex(SHA256(mid))[:10])
func CustomerID(mid string) string {
	hash := sha256.Sum256([]byte(mid))
	return "C" + strings.ToUpper(hex.EncodeToString(hash[:5]))
}

// Seed computes a deterministic 64-bit value.
// Formula: first 8 bytes of SHA256(part0|part1|...) as big-endian uint64
func Seed(parts ...string) uint64 {
	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return binary.BigEndian.Uint64(hash[:8])
}
