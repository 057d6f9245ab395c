// Package resubscribe restores relay subscriptions after a reconnect.
//
// The relay forgets a client's subscriptions when the socket drops. On every
// transition to connected, the service snapshots the pairing and session
// topics in storage and subscribes to all of them in one batch.
package resubscribe

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"walletconnect/internal/domain"
	"walletconnect/internal/metrics"
)

const batchTimeout = 30 * time.Second

// Service listens for connection status changes on a relay client.
type Service struct {
	relay    domain.RelayClient
	pairings domain.PairingStore
	sessions domain.SessionStore
	log      zerolog.Logger

	// runMu serializes resubscribe rounds so overlapping reconnects do not
	// race each other.
	runMu  sync.Mutex
	cancel func()
}

// New registers the service on relay's status stream.
func New(relay domain.RelayClient, pairings domain.PairingStore, sessions domain.SessionStore, log zerolog.Logger) *Service {
	s := &Service{relay: relay, pairings: pairings, sessions: sessions, log: log}
	s.cancel = relay.OnConnectionStatus(func(st domain.ConnectionStatus) {
		if st != domain.Connected {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
		defer cancel()
		if err := s.Resubscribe(ctx); err != nil {
			s.log.Warn().Err(err).Msg("resubscribe failed")
		}
	})
	return s
}

// Close stops listening for reconnects.
func (s *Service) Close() { s.cancel() }

// Resubscribe subscribes to every stored pairing and session topic with a
// single batch call. Store locks are released before the network round trip.
func (s *Service) Resubscribe(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	topics, err := s.snapshot()
	if err != nil {
		return err
	}
	if len(topics) == 0 {
		return nil
	}
	if _, err := s.relay.BatchSubscribe(ctx, topics); err != nil {
		return err
	}
	metrics.RecordResubscribe(len(topics))
	s.log.Info().Int("topics", len(topics)).Msg("resubscribed")
	return nil
}

// snapshot returns the deduplicated, sorted set of stored topics.
func (s *Service) snapshot() ([]domain.Topic, error) {
	pairings, err := s.pairings.ListPairings()
	if err != nil {
		return nil, err
	}
	sessions, err := s.sessions.ListSessions()
	if err != nil {
		return nil, err
	}

	seen := make(map[domain.Topic]struct{}, len(pairings)+len(sessions))
	for _, p := range pairings {
		seen[p.Topic] = struct{}{}
	}
	for _, ss := range sessions {
		seen[ss.Topic] = struct{}{}
	}
	topics := make([]domain.Topic, 0, len(seen))
	for t := range seen {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics, nil
}
