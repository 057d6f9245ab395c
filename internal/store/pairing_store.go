package store

import (
	"path/filepath"
	"sort"

	"walletconnect/internal/domain"
)

const pairingsFilename = "pairings.json"

// PairingFileStore persists pairings keyed by topic.
type PairingFileStore struct {
	t table[domain.Topic, domain.Pairing]
}

// NewPairingFileStore returns a PairingFileStore rooted at dir. An empty dir
// keeps pairings in memory.
func NewPairingFileStore(dir string) *PairingFileStore {
	s := &PairingFileStore{}
	if dir != "" {
		s.t.path = filepath.Join(dir, pairingsFilename)
	}
	return s
}

// SavePairing inserts or replaces the pairing for its topic.
func (s *PairingFileStore) SavePairing(p domain.Pairing) error {
	return s.t.put(p.Topic, p)
}

// LoadPairing retrieves the pairing for topic.
func (s *PairingFileStore) LoadPairing(topic domain.Topic) (domain.Pairing, bool, error) {
	return s.t.get(topic)
}

// DeletePairing removes the pairing for topic, if any.
func (s *PairingFileStore) DeletePairing(topic domain.Topic) error {
	return s.t.del(topic)
}

// ListPairings returns all pairings ordered by topic.
func (s *PairingFileStore) ListPairings() ([]domain.Pairing, error) {
	ps, err := s.t.list()
	if err != nil {
		return nil, err
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].Topic < ps[j].Topic })
	return ps, nil
}

// Compile-time assertion that PairingFileStore implements domain.PairingStore.
var _ domain.PairingStore = (*PairingFileStore)(nil)
