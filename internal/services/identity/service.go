package identity

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"
	"unicode"

	"walletconnect/internal/crypto"
	"walletconnect/internal/protocol/relayauth"
)

const (
	// minPassphraseLength defines the minimum number of characters required for a passphrase.
	minPassphraseLength = 12
)

var (
	// ErrWeakPassphrase is returned when the passphrase fails the strength policy.
	ErrWeakPassphrase = fmt.Errorf(
		"passphrase is too weak (must be at least %d characters and include upper, lower, "+
			"number, and symbol)",
		minPassphraseLength,
	)

	errNotEd25519 = errors.New("identity: client key is not ed25519")
)

// SigningKeySource hands out the client's Ed25519 key, creating it on first
// use. The key manager implements it.
type SigningKeySource interface {
	ClientSigningKey() (ed25519.PrivateKey, error)
}

// Service exposes the client identity presented to the relay.
//
// The identity is a single Ed25519 key pair. Its public half, encoded as a
// did:key, is the client id; the private half signs relay auth tokens.
type Service struct {
	keys SigningKeySource
	now  func() time.Time
}

// New returns an identity service over keys.
func New(keys SigningKeySource) *Service { return &Service{keys: keys, now: time.Now} }

// ClientID returns the did:key of the client signing key.
func (s *Service) ClientID() (string, error) {
	pub, err := s.publicKey()
	if err != nil {
		return "", err
	}
	return relayauth.EncodeDIDKey(pub), nil
}

// Fingerprint returns a short fingerprint of the client public key.
func (s *Service) Fingerprint() (string, error) {
	pub, err := s.publicKey()
	if err != nil {
		return "", err
	}
	return crypto.Fingerprint(pub), nil
}

// AuthToken issues a relay auth token for aud.
func (s *Service) AuthToken(aud string) (string, error) {
	priv, err := s.keys.ClientSigningKey()
	if err != nil {
		return "", err
	}
	return relayauth.SignJWT(priv, aud, relayauth.DefaultTTL, s.now())
}

// SigningKey returns the client signing key.
func (s *Service) SigningKey() (ed25519.PrivateKey, error) { return s.keys.ClientSigningKey() }

func (s *Service) publicKey() (ed25519.PublicKey, error) {
	priv, err := s.keys.ClientSigningKey()
	if err != nil {
		return nil, err
	}
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return nil, errNotEd25519
	}
	return pub, nil
}

// ValidatePassphrase enforces the keychain passphrase policy.
func ValidatePassphrase(passphrase string) error {
	if !isSecurePassphrase(passphrase) {
		return ErrWeakPassphrase
	}
	return nil
}

// isSecurePassphrase enforces a basic strength policy.
func isSecurePassphrase(passphrase string) bool {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	if len(passphrase) < minPassphraseLength {
		return false
	}
	for _, r := range passphrase {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	return hasUpper && hasLower && hasDigit && hasSymbol
}
