package store

import (
	"fmt"
	"os"

	"walletconnect/internal/domain"
)

// Stores groups the persistence backends used by one client.
type Stores struct {
	Keychain domain.KeychainStore
	Pairings domain.PairingStore
	Sessions domain.SessionStore
	History  domain.HistoryStore
}

// Open returns file-backed stores under dir, creating it if needed. An empty
// dir returns in-memory stores and ignores passphrase.
func Open(dir, passphrase string) (*Stores, error) {
	if dir == "" {
		return &Stores{
			Keychain: NewMemoryKeychain(),
			Pairings: NewPairingFileStore(""),
			Sessions: NewSessionFileStore(""),
			History:  NewHistoryFileStore(""),
		}, nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	kc, err := OpenKeychainFileStore(dir, passphrase)
	if err != nil {
		return nil, fmt.Errorf("open keychain: %w", err)
	}
	return &Stores{
		Keychain: kc,
		Pairings: NewPairingFileStore(dir),
		Sessions: NewSessionFileStore(dir),
		History:  NewHistoryFileStore(dir),
	}, nil
}
