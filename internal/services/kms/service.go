package kms

import (
	"crypto/ed25519"
	"fmt"

	"walletconnect/internal/crypto"
	"walletconnect/internal/domain"
	domaintypes "walletconnect/internal/domain/types"
	"walletconnect/internal/util/memzero"
)

// Keychain entry prefixes.
const (
	prefixSymmetric  = "sym:"   // topic -> symmetric key
	prefixAgreement  = "agree:" // topic -> our public key used for the agreement
	prefixPrivate    = "priv:"  // public key hex -> private key
	prefixPublic     = "pub:"   // topic -> public key bound for type1 receive
	clientSigningKey = "client:ed25519"
)

var (
	// ErrKeyNotFound is returned when an operation needs key material that
	// is not in the keychain.
	ErrKeyNotFound = domaintypes.NewError(domaintypes.KindCrypto, "key not found")
	// ErrCorruptKey is returned when a stored entry has the wrong length.
	ErrCorruptKey = domaintypes.NewError(domaintypes.KindCrypto, "stored key is corrupt")
)

// Service implements domain.KeyManager.
type Service struct {
	keychain domain.KeychainStore
}

// New returns a key management service backed by keychain.
func New(keychain domain.KeychainStore) *Service { return &Service{keychain: keychain} }

// CreateX25519KeyPair generates a key pair, stores the private half under
// its public key and returns the public key.
func (s *Service) CreateX25519KeyPair() (domain.X25519Public, error) {
	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.X25519Public{}, err
	}
	defer memzero.Zero(priv[:])
	if err := s.keychain.SetSecret(prefixPrivate+pub.Hex(), priv[:]); err != nil {
		return domain.X25519Public{}, err
	}
	return pub, nil
}

// PerformKeyAgreement derives the shared key between our key pair self and
// the peer's public key. The result is not stored; see SetAgreementSecret.
func (s *Service) PerformKeyAgreement(self domain.X25519Public, peerHex string) (domain.AgreementKeys, error) {
	peer, err := domaintypes.ParseX25519Public(peerHex)
	if err != nil {
		return domain.AgreementKeys{}, err
	}
	priv, err := s.privateKey(self)
	if err != nil {
		return domain.AgreementKeys{}, err
	}
	defer memzero.Zero(priv[:])

	shared, err := crypto.DeriveSharedKey(priv, peer)
	if err != nil {
		return domain.AgreementKeys{}, fmt.Errorf("key agreement: %w", err)
	}
	return domain.AgreementKeys{SharedKey: shared, PublicKey: self, Topic: crypto.TopicFromKey(shared)}, nil
}

// CreateSymmetricKey generates and installs a random key for topic.
func (s *Service) CreateSymmetricKey(topic domain.Topic) (domain.SymmetricKey, error) {
	key, err := crypto.RandomSymmetricKey()
	if err != nil {
		return domain.SymmetricKey{}, err
	}
	if err := s.SetSymmetricKey(key, topic); err != nil {
		return domain.SymmetricKey{}, err
	}
	return key, nil
}

// SetSymmetricKey installs key for topic, replacing any previous key or
// agreement secret.
func (s *Service) SetSymmetricKey(key domain.SymmetricKey, topic domain.Topic) error {
	if err := s.keychain.SetSecret(prefixSymmetric+topic, key[:]); err != nil {
		return err
	}
	return s.keychain.DeleteSecret(prefixAgreement + topic)
}

// GetSymmetricKey returns the active key for topic.
func (s *Service) GetSymmetricKey(topic domain.Topic) (domain.SymmetricKey, bool, error) {
	var key domain.SymmetricKey
	ok, err := s.load(prefixSymmetric+topic, key[:])
	return key, ok, err
}

// SetAgreementSecret installs keys.SharedKey as the active key for topic
// and remembers which of our public keys produced it.
func (s *Service) SetAgreementSecret(keys domain.AgreementKeys, topic domain.Topic) error {
	if err := s.keychain.SetSecret(prefixSymmetric+topic, keys.SharedKey[:]); err != nil {
		return err
	}
	return s.keychain.SetSecret(prefixAgreement+topic, keys.PublicKey[:])
}

// GetAgreementSecret returns the active key for topic. PublicKey is zero
// when the key was installed with SetSymmetricKey.
func (s *Service) GetAgreementSecret(topic domain.Topic) (domain.AgreementKeys, bool, error) {
	key, ok, err := s.GetSymmetricKey(topic)
	if err != nil || !ok {
		return domain.AgreementKeys{}, ok, err
	}
	out := domain.AgreementKeys{SharedKey: key, Topic: crypto.TopicFromKey(key)}
	if _, err := s.load(prefixAgreement+topic, out.PublicKey[:]); err != nil {
		return domain.AgreementKeys{}, false, err
	}
	return out, true, nil
}

// SetPublicKey binds one of our public keys to topic so type1 envelopes
// arriving there can be opened.
func (s *Service) SetPublicKey(pub domain.X25519Public, topic domain.Topic) error {
	return s.keychain.SetSecret(prefixPublic+topic, pub[:])
}

// GetPublicKey returns the public key bound to topic.
func (s *Service) GetPublicKey(topic domain.Topic) (domain.X25519Public, bool, error) {
	var pub domain.X25519Public
	ok, err := s.load(prefixPublic+topic, pub[:])
	return pub, ok, err
}

// DeleteSymmetricKey removes the key for topic. Absent keys are ignored.
func (s *Service) DeleteSymmetricKey(topic domain.Topic) error {
	if err := s.keychain.DeleteSecret(prefixSymmetric + topic); err != nil {
		return err
	}
	return s.keychain.DeleteSecret(prefixAgreement + topic)
}

// DeletePrivateKey removes the private key stored under pubHex.
func (s *Service) DeletePrivateKey(pubHex string) error {
	return s.keychain.DeleteSecret(prefixPrivate + pubHex)
}

// DeletePublicKey removes the public key bound to topic.
func (s *Service) DeletePublicKey(topic domain.Topic) error {
	return s.keychain.DeleteSecret(prefixPublic + topic)
}

// ClientSigningKey returns the Ed25519 key identifying this client to the
// relay, creating it on first use.
func (s *Service) ClientSigningKey() (ed25519.PrivateKey, error) {
	seed, ok, err := s.keychain.GetSecret(clientSigningKey)
	if err != nil {
		return nil, err
	}
	if ok {
		defer memzero.Zero(seed)
		if len(seed) != ed25519.SeedSize {
			return nil, ErrCorruptKey
		}
		return crypto.Ed25519FromSeed(seed), nil
	}

	priv, _, err := crypto.GenerateEd25519()
	if err != nil {
		return nil, err
	}
	if err := s.keychain.SetSecret(clientSigningKey, priv.Seed()); err != nil {
		return nil, err
	}
	return priv, nil
}

func (s *Service) privateKey(pub domain.X25519Public) (domain.X25519Private, error) {
	var priv domain.X25519Private
	ok, err := s.load(prefixPrivate+pub.Hex(), priv[:])
	if err != nil {
		return priv, err
	}
	if !ok {
		return priv, fmt.Errorf("%w: private key for %s", ErrKeyNotFound, pub.Hex())
	}
	return priv, nil
}

// load copies the entry name into dst, which must have the stored length.
func (s *Service) load(name string, dst []byte) (bool, error) {
	b, ok, err := s.keychain.GetSecret(name)
	if err != nil || !ok {
		return false, err
	}
	defer memzero.Zero(b)
	if len(b) != len(dst) {
		return false, fmt.Errorf("%w: %s", ErrCorruptKey, name)
	}
	copy(dst, b)
	return true, nil
}

// Compile-time assertion that Service implements domain.KeyManager.
var _ domain.KeyManager = (*Service)(nil)
