package store

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

const (
	// The current supported version of the encrypted blob format stored on disk.
	keystoreFormatVersion = 2
)

var (
	// Returned when the passphrase is incorrect or the ciphertext has been modified / corrupted.
	errWrongPassphrase = errors.New("wrong passphrase or corrupted keychain")
)

// blob is the on‑disk JSON structure holding the ciphertext and KDF parameters.
type blob struct {
	V      int    `json:"v"`
	Salt   []byte `json:"salt"`
	N      int    `json:"scrypt_N"`
	R      int    `json:"scrypt_r"`
	P      int    `json:"scrypt_p"`
	Nonce  []byte `json:"nonce"`
	Cipher []byte `json:"cipher"`
}

// sealer holds a passphrase-derived key so the keychain pays for scrypt once
// per process rather than once per write. Every seal draws a fresh nonce.
type sealer struct {
	salt    []byte
	n, r, p int
	aead    cipher.AEAD
}

// newSealer derives the key for passphrase. A nil salt starts a new keychain.
func newSealer(passphrase string, salt []byte, N, r, p int) (*sealer, error) {
	if salt == nil {
		salt = make([]byte, 16)
		if _, err := rand.Read(salt /* #nosec G404 */); err != nil {
			return nil, err
		}
	}
	key, err := scrypt.Key([]byte(passphrase), salt, N, r, p, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &sealer{salt: salt, n: N, r: r, p: p, aead: aead}, nil
}

// sealerFor parses an existing blob and derives its key.
func sealerFor(passphrase string, b []byte) (*sealer, blob, error) {
	var bl blob
	if err := json.Unmarshal(b, &bl); err != nil {
		return nil, blob{}, err
	}
	if bl.V != keystoreFormatVersion {
		return nil, blob{}, fmt.Errorf("unsupported keystore version %d", bl.V)
	}
	s, err := newSealer(passphrase, bl.Salt, bl.N, bl.R, bl.P)
	if err != nil {
		return nil, blob{}, err
	}
	return s, bl, nil
}

// seal encrypts raw into a JSON blob.
func (s *sealer) seal(raw []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	ct := s.aead.Seal(nil, nonce, raw, s.salt)

	return json.Marshal(blob{
		V:      keystoreFormatVersion,
		Salt:   s.salt,
		N:      s.n,
		R:      s.r,
		P:      s.p,
		Nonce:  nonce,
		Cipher: ct,
	})
}

// open decrypts a blob produced by seal.
func (s *sealer) open(bl blob) ([]byte, error) {
	if len(bl.Nonce) != s.aead.NonceSize() {
		return nil, errWrongPassphrase
	}
	pt, err := s.aead.Open(nil, bl.Nonce, bl.Cipher, bl.Salt)
	if err != nil {
		return nil, errWrongPassphrase
	}
	return pt, nil
}

// Tunables for scrypt key derivation.
func scryptParamsDefault() (N, r, p int) { return 1 << 15, 8, 1 }
