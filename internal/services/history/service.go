package history

import (
	"fmt"
	"sync"
	"time"

	"walletconnect/internal/domain"
	domaintypes "walletconnect/internal/domain/types"
	"walletconnect/internal/protocol/jsonrpc"
)

// DefaultMaxAge is how long records are kept before RemoveOutdated drops them.
const DefaultMaxAge = 30 * 24 * time.Hour

var (
	ErrDuplicateRequest  = domaintypes.NewError(domaintypes.KindHistory, "history: duplicate request id")
	ErrRequestNotFound   = domaintypes.NewError(domaintypes.KindHistory, "history: no request for response id")
	ErrDuplicateResponse = domaintypes.NewError(domaintypes.KindHistory, "history: response already recorded")
)

// Service implements domain.RPCHistory. Mutations are linearized by one
// mutex so check-then-write sequences cannot interleave.
type Service struct {
	mu    sync.Mutex
	store domain.HistoryStore
	now   func() time.Time
}

// New returns a history service persisting to store.
func New(store domain.HistoryStore) *Service {
	return &Service{store: store, now: time.Now}
}

// Set records request under its id. A second Set for the same id fails with
// ErrDuplicateRequest and leaves the first record untouched.
func (s *Service) Set(request jsonrpc.Request, topic domain.Topic, origin domain.Origin) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok, err := s.store.LoadRecord(request.ID)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%w: %d", ErrDuplicateRequest, request.ID)
	}
	return s.store.SaveRecord(domain.RPCRecord{
		ID:        request.ID,
		Topic:     topic,
		Origin:    origin,
		Request:   request,
		CreatedAt: s.now().Unix(),
	})
}

// Resolve attaches response to its request and returns the completed record.
func (s *Service) Resolve(response jsonrpc.Response) (domain.RPCRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok, err := s.store.LoadRecord(response.ID)
	if err != nil {
		return domain.RPCRecord{}, err
	}
	if !ok {
		return domain.RPCRecord{}, fmt.Errorf("%w: %d", ErrRequestNotFound, response.ID)
	}
	if rec.Response != nil {
		return domain.RPCRecord{}, fmt.Errorf("%w: %d", ErrDuplicateResponse, response.ID)
	}
	resp := response
	rec.Response = &resp
	if err := s.store.SaveRecord(rec); err != nil {
		return domain.RPCRecord{}, err
	}
	return rec, nil
}

// Get returns the record for id.
func (s *Service) Get(id int64) (domain.RPCRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.LoadRecord(id)
}

// GetPending returns records still awaiting a response, oldest first.
func (s *Service) GetPending() ([]domain.RPCRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.store.ListRecords()
	if err != nil {
		return nil, err
	}
	var out []domain.RPCRecord
	for _, r := range all {
		if r.Pending() {
			out = append(out, r)
		}
	}
	return out, nil
}

// DeleteAll drops every record on topic.
func (s *Service) DeleteAll(topic domain.Topic) error {
	return s.deleteWhere(func(r domain.RPCRecord) bool { return r.Topic == topic })
}

// RemoveOutdated drops records created more than maxAge ago.
func (s *Service) RemoveOutdated(maxAge time.Duration) error {
	cutoff := s.now().Add(-maxAge).Unix()
	return s.deleteWhere(func(r domain.RPCRecord) bool { return r.CreatedAt < cutoff })
}

func (s *Service) deleteWhere(match func(domain.RPCRecord) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.store.ListRecords()
	if err != nil {
		return err
	}
	var ids []int64
	for _, r := range all {
		if match(r) {
			ids = append(ids, r.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return s.store.DeleteRecords(ids)
}

// Compile-time assertion that Service implements domain.RPCHistory.
var _ domain.RPCHistory = (*Service)(nil)
