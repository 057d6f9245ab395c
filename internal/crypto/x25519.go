package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"walletconnect/internal/domain"
	"walletconnect/internal/util/memzero"
)

// GenerateX25519 returns a fresh Curve25519 key pair.
// The private key is clamped per RFC 7748.
func GenerateX25519() (priv domain.X25519Private, pub domain.X25519Public, err error) {
	if _, err = rand.Read(priv[:]); err != nil {
		return
	}
	clamp(&priv)
	pub, err = PublicFromPrivate(priv)
	return
}

// PublicFromPrivate recomputes the public half of priv.
func PublicFromPrivate(priv domain.X25519Private) (pub domain.X25519Public, err error) {
	pb, err := curve25519.X25519(priv.Slice(), curve25519.Basepoint)
	if err != nil {
		return pub, err
	}
	copy(pub[:], pb)
	return pub, nil
}

// DH computes X25519 Diffie–Hellman.
func DH(priv domain.X25519Private, pub domain.X25519Public) (out [32]byte, err error) {
	secret, err := curve25519.X25519(priv.Slice(), pub.Slice())
	if err != nil {
		return out, err
	}
	copy(out[:], secret)
	return out, nil
}

// DeriveSharedKey runs DH and expands the raw secret with HKDF-SHA256
// (no salt, no info) into the 32-byte channel key.
func DeriveSharedKey(priv domain.X25519Private, peer domain.X25519Public) (domain.SymmetricKey, error) {
	var key domain.SymmetricKey
	secret, err := DH(priv, peer)
	if err != nil {
		return key, err
	}
	defer memzero.Zero(secret[:])

	r := hkdf.New(sha256.New, secret[:], nil, nil)
	if _, err := io.ReadFull(r, key[:]); err != nil {
		return domain.SymmetricKey{}, err
	}
	return key, nil
}

func clamp(k *domain.X25519Private) {
	kb := k[:]
	kb[0] &= 248
	kb[31] &= 127
	kb[31] |= 64
}
