package types

import (
	"encoding/hex"
	"fmt"
)

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

// Slice returns the key as a []byte.
func (p X25519Public) Slice() []byte { return p[:] }

// Hex returns the lowercase hex form of the key.
func (p X25519Public) Hex() string { return hex.EncodeToString(p[:]) }

// X25519Private is a Curve25519 private key.
type X25519Private [32]byte

// Slice returns the key as a []byte.
func (k X25519Private) Slice() []byte { return k[:] }

// SymmetricKey is a 32-byte channel key.
type SymmetricKey [32]byte

// Slice returns the key as a []byte.
func (k SymmetricKey) Slice() []byte { return k[:] }

// Hex returns the lowercase hex form of the key.
func (k SymmetricKey) Hex() string { return hex.EncodeToString(k[:]) }

// ParseX25519Public decodes a hex public key.
func ParseX25519Public(s string) (X25519Public, error) {
	var out X25519Public
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("x25519 public: %w", err)
	}
	if len(b) != len(out) {
		return out, fmt.Errorf("x25519 public: want 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}

// ParseSymmetricKey decodes a hex symmetric key.
func ParseSymmetricKey(s string) (SymmetricKey, error) {
	var out SymmetricKey
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("symmetric key: %w", err)
	}
	if len(b) != len(out) {
		return out, fmt.Errorf("symmetric key: want 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}

// AgreementKeys is the result of a key agreement. Topic is sha256(SharedKey).
type AgreementKeys struct {
	SharedKey SymmetricKey
	PublicKey X25519Public // our side
	Topic     Topic
}
