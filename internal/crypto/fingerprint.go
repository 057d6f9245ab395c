package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const fingerprintBytes = 10

// Fingerprint returns a short display fingerprint of a public key: the first
// 10 bytes of its SHA-256 as five dash-separated groups of four hex digits.
func Fingerprint(pub []byte) string {
	sum := sha256.Sum256(pub)
	h := hex.EncodeToString(sum[:fingerprintBytes])
	groups := make([]string, 0, len(h)/4)
	for i := 0; i < len(h); i += 4 {
		groups = append(groups, h[i:i+4])
	}
	return strings.Join(groups, "-")
}
