// Package memzero wipes key material once it is no longer needed.
package memzero

import "crypto/subtle"

// Zero overwrites b with zeros through a constant-time copy, which the
// compiler does not elide.
func Zero(b []byte) {
	if len(b) == 0 {
		return
	}
	subtle.ConstantTimeCopy(1, b, make([]byte, len(b)))
}

// All zeroes each of bs.
func All(bs ...[]byte) {
	for _, b := range bs {
		Zero(b)
	}
}
