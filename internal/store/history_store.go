package store

import (
	"path/filepath"
	"sort"

	"walletconnect/internal/domain"
)

const historyFilename = "history.json"

// HistoryFileStore persists RPC records keyed by request id.
type HistoryFileStore struct {
	t table[int64, domain.RPCRecord]
}

// NewHistoryFileStore returns a HistoryFileStore rooted at dir. An empty dir
// keeps records in memory.
func NewHistoryFileStore(dir string) *HistoryFileStore {
	s := &HistoryFileStore{}
	if dir != "" {
		s.t.path = filepath.Join(dir, historyFilename)
	}
	return s
}

// SaveRecord inserts or replaces the record for its id.
func (s *HistoryFileStore) SaveRecord(r domain.RPCRecord) error {
	return s.t.put(r.ID, r)
}

// LoadRecord retrieves the record for id.
func (s *HistoryFileStore) LoadRecord(id int64) (domain.RPCRecord, bool, error) {
	return s.t.get(id)
}

// ListRecords returns all records ordered by id.
func (s *HistoryFileStore) ListRecords() ([]domain.RPCRecord, error) {
	rs, err := s.t.list()
	if err != nil {
		return nil, err
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].ID < rs[j].ID })
	return rs, nil
}

// DeleteRecords removes the records for ids.
func (s *HistoryFileStore) DeleteRecords(ids []int64) error {
	return s.t.del(ids...)
}

// Compile-time assertion that HistoryFileStore implements domain.HistoryStore.
var _ domain.HistoryStore = (*HistoryFileStore)(nil)
