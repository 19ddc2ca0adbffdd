package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a random hex identifier, optionally namespaced with a prefix
// such as "pf" or "sec".
func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}

// NewShortID returns a shorter random identifier used where the full 32-char
// form is unwieldy (section ids embedded in section payloads).
func NewShortID(prefix string) string {
	bytes := make([]byte, 6)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}
