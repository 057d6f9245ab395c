package store

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"

	"walletconnect/internal/domain"
	"walletconnect/internal/util/memzero"
)

const keychainFilename = "keychain.json.enc"

// ErrPassphraseRequired is returned when an on-disk keychain is opened
// without a passphrase.
var ErrPassphraseRequired = errors.New("keychain passphrase required")

// KeychainFileStore holds secret material, encrypted at rest under a
// passphrase. The decrypted map is cached; every mutation rewrites the file.
type KeychainFileStore struct {
	path    string
	mu      sync.Mutex
	sealer  *sealer
	secrets map[string][]byte
}

// NewMemoryKeychain returns a keychain that never touches disk.
func NewMemoryKeychain() *KeychainFileStore {
	return &KeychainFileStore{secrets: make(map[string][]byte)}
}

// OpenKeychainFileStore opens (or creates) the keychain under dir.
func OpenKeychainFileStore(dir, passphrase string) (*KeychainFileStore, error) {
	if passphrase == "" {
		return nil, ErrPassphraseRequired
	}
	s := &KeychainFileStore{
		path:    filepath.Join(dir, keychainFilename),
		secrets: make(map[string][]byte),
	}

	b, err := readFile(s.path)
	if err != nil {
		return nil, err
	}
	if b == nil {
		N, r, p := scryptParamsDefault()
		if s.sealer, err = newSealer(passphrase, nil, N, r, p); err != nil {
			return nil, err
		}
		return s, nil
	}

	sl, bl, err := sealerFor(passphrase, b)
	if err != nil {
		return nil, err
	}
	pt, err := sl.open(bl)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(pt)
	if err := json.Unmarshal(pt, &s.secrets); err != nil {
		return nil, err
	}
	s.sealer = sl
	return s, nil
}

// SetSecret stores a copy of secret under name, replacing any previous value.
func (s *KeychainFileStore) SetSecret(name string, secret []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.secrets[name]; ok {
		memzero.Zero(old)
	}
	s.secrets[name] = append([]byte(nil), secret...)
	return s.flush()
}

// GetSecret returns a copy of the secret stored under name.
func (s *KeychainFileStore) GetSecret(name string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.secrets[name]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// DeleteSecret removes name. Deleting an absent name is a no-op.
func (s *KeychainFileStore) DeleteSecret(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.secrets[name]
	if !ok {
		return nil
	}
	memzero.Zero(v)
	delete(s.secrets, name)
	return s.flush()
}

func (s *KeychainFileStore) flush() error {
	if s.path == "" {
		return nil
	}
	raw, err := json.Marshal(s.secrets)
	if err != nil {
		return err
	}
	defer memzero.Zero(raw)
	b, err := s.sealer.seal(raw)
	if err != nil {
		return err
	}
	return writeFile(s.path, b, 0o600)
}

// Compile-time assertion that KeychainFileStore implements domain.KeychainStore.
var _ domain.KeychainStore = (*KeychainFileStore)(nil)
