// Package envelope implements the encrypted wire envelope exchanged between
// peers.
//
// Layout (lowercase hex on the wire):
//
//	IV(16) ‖ SenderPublicKey(32, type1 only) ‖ MAC(32) ‖ CipherText
//
// CipherText is AES-256-CBC over the PKCS#7 padded plaintext. MAC is
// HMAC-SHA256 over IV ‖ CipherText. The encryption and MAC keys are the two
// halves of SHA-512(symKey).
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"

	"walletconnect/internal/domain"
	domaintypes "walletconnect/internal/domain/types"
	"walletconnect/internal/util/memzero"
)

const (
	ivSize  = aes.BlockSize
	keySize = 32
	macSize = sha256.Size

	// MinSize is the shortest input considered at all. It equals the type1
	// header, so a type0 envelope always carries at least one block here.
	MinSize = ivSize + keySize + macSize
)

var (
	ErrTooShort      = domaintypes.NewError(domaintypes.KindCrypto, "envelope: too short")
	ErrBadHex        = domaintypes.NewError(domaintypes.KindCrypto, "envelope: invalid hex")
	ErrBadCiphertext = domaintypes.NewError(domaintypes.KindCrypto, "envelope: ciphertext not a multiple of block size")
	ErrMACMismatch   = domaintypes.NewError(domaintypes.KindCrypto, "envelope: mac verification failed")
	ErrBadPadding    = domaintypes.NewError(domaintypes.KindCrypto, "envelope: invalid padding")
)

// Envelope is a parsed, still encrypted envelope.
type Envelope struct {
	Type       domain.EnvelopeType
	IV         [ivSize]byte
	PublicKey  *domain.X25519Public
	MAC        [macSize]byte
	CipherText []byte
}

// Seal encrypts plaintext with key. A non-nil sender produces a type1
// envelope embedding it.
func Seal(key domain.SymmetricKey, plaintext []byte, sender *domain.X25519Public) (string, error) {
	var iv [ivSize]byte
	if _, err := rand.Read(iv[:]); err != nil {
		return "", fmt.Errorf("envelope iv: %w", err)
	}
	return sealWithIV(key, iv, plaintext, sender)
}

func sealWithIV(key domain.SymmetricKey, iv [ivSize]byte, plaintext []byte, sender *domain.X25519Public) (string, error) {
	encKey, macKey := splitKey(key)
	defer memzero.All(encKey, macKey)

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return "", err
	}
	ct := pad(plaintext)
	cipher.NewCBCEncrypter(block, iv[:]).CryptBlocks(ct, ct)
	mac := computeMAC(macKey, iv[:], ct)

	out := make([]byte, 0, ivSize+keySize+macSize+len(ct))
	out = append(out, iv[:]...)
	if sender != nil {
		out = append(out, sender[:]...)
	}
	out = append(out, mac...)
	out = append(out, ct...)
	return hex.EncodeToString(out), nil
}

// Decode parses the hex wire form. typ selects the layout; the caller
// decides which one to try.
func Decode(message string, typ domain.EnvelopeType) (Envelope, error) {
	raw, err := hex.DecodeString(message)
	if err != nil {
		return Envelope{}, ErrBadHex
	}
	if len(raw) < MinSize {
		return Envelope{}, ErrTooShort
	}

	env := Envelope{Type: typ}
	off := copy(env.IV[:], raw)
	if typ == domain.EnvelopeType1 {
		var pub domain.X25519Public
		off += copy(pub[:], raw[off:])
		env.PublicKey = &pub
	}
	off += copy(env.MAC[:], raw[off:])
	ct := raw[off:]
	if len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return Envelope{}, ErrBadCiphertext
	}
	env.CipherText = ct
	return env, nil
}

// Open verifies the MAC in constant time and decrypts.
func (e Envelope) Open(key domain.SymmetricKey) ([]byte, error) {
	encKey, macKey := splitKey(key)
	defer memzero.All(encKey, macKey)

	want := computeMAC(macKey, e.IV[:], e.CipherText)
	if !hmac.Equal(want, e.MAC[:]) {
		return nil, ErrMACMismatch
	}
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, err
	}
	pt := make([]byte, len(e.CipherText))
	cipher.NewCBCDecrypter(block, e.IV[:]).CryptBlocks(pt, e.CipherText)
	return unpad(pt)
}

// Open is Decode followed by Envelope.Open.
func Open(key domain.SymmetricKey, message string, typ domain.EnvelopeType) ([]byte, error) {
	env, err := Decode(message, typ)
	if err != nil {
		return nil, err
	}
	return env.Open(key)
}

func splitKey(key domain.SymmetricKey) (encKey, macKey []byte) {
	sum := sha512.Sum512(key[:])
	encKey = append([]byte(nil), sum[:32]...)
	macKey = append([]byte(nil), sum[32:]...)
	memzero.Zero(sum[:])
	return encKey, macKey
}

func computeMAC(macKey, iv, ct []byte) []byte {
	h := hmac.New(sha256.New, macKey)
	h.Write(iv)
	h.Write(ct)
	return h.Sum(nil)
}

func pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	out := make([]byte, len(b)+n)
	copy(out, b)
	for i := len(b); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

func unpad(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, ErrBadPadding
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, ErrBadPadding
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, ErrBadPadding
		}
	}
	return b[:len(b)-n], nil
}

