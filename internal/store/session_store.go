package store

import (
	"path/filepath"
	"sort"

	"walletconnect/internal/domain"
)

const sessionsFilename = "sessions.json"

// SessionFileStore persists settled sessions keyed by topic.
type SessionFileStore struct {
	t table[domain.Topic, domain.Session]
}

// NewSessionFileStore returns a SessionFileStore rooted at dir. An empty dir
// keeps sessions in memory.
func NewSessionFileStore(dir string) *SessionFileStore {
	s := &SessionFileStore{}
	if dir != "" {
		s.t.path = filepath.Join(dir, sessionsFilename)
	}
	return s
}

// SaveSession inserts or replaces the session for its topic. Namespaces are
// copied so callers cannot alias stored state.
func (s *SessionFileStore) SaveSession(session domain.Session) error {
	session.Namespaces = session.Namespaces.Clone()
	return s.t.put(session.Topic, session)
}

// LoadSession retrieves the session for topic.
func (s *SessionFileStore) LoadSession(topic domain.Topic) (domain.Session, bool, error) {
	session, ok, err := s.t.get(topic)
	if ok {
		session.Namespaces = session.Namespaces.Clone()
	}
	return session, ok, err
}

// DeleteSession removes the session for topic, if any.
func (s *SessionFileStore) DeleteSession(topic domain.Topic) error {
	return s.t.del(topic)
}

// ListSessions returns all sessions ordered by topic.
func (s *SessionFileStore) ListSessions() ([]domain.Session, error) {
	ss, err := s.t.list()
	if err != nil {
		return nil, err
	}
	for i := range ss {
		ss[i].Namespaces = ss[i].Namespaces.Clone()
	}
	sort.Slice(ss, func(i, j int) bool { return ss[i].Topic < ss[j].Topic })
	return ss, nil
}

// Compile-time assertion that SessionFileStore implements domain.SessionStore.
var _ domain.SessionStore = (*SessionFileStore)(nil)
