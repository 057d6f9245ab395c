package pairing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"walletconnect/internal/crypto"
	"walletconnect/internal/domain"
	domaintypes "walletconnect/internal/domain/types"
	"walletconnect/internal/events"
	"walletconnect/internal/protocol/methods"
	"walletconnect/internal/protocol/uri"
)

const teardownTimeout = 10 * time.Second

var (
	ErrPairingAlreadyExists = domaintypes.NewError(domaintypes.KindProtocol, "pairing already exists")
	ErrNoPairingForTopic    = domaintypes.NewError(domaintypes.KindProtocol, "no pairing for topic")
	ErrPairingExpired       = domaintypes.NewError(domaintypes.KindProtocol, "pairing expired")
	ErrInvalidExpiry        = domaintypes.NewError(domaintypes.KindProtocol, "invalid pairing expiry")
)

// Service is the pairing engine.
type Service struct {
	pairings domain.PairingStore
	kms      domain.KeyManager
	net      domain.Networking
	history  domain.RPCHistory
	relay    domain.RelayProtocolOptions
	log      zerolog.Logger
	now      func() time.Time

	// mu linearizes read-modify-write cycles on the pairing store.
	mu sync.Mutex

	pinged  events.Stream[domain.Topic]
	deleted events.Stream[domain.Topic]
	expired events.Stream[domain.Pairing]

	cancels []func()
}

// New returns a pairing engine and registers its peer request handlers on
// net.
func New(
	pairings domain.PairingStore,
	kms domain.KeyManager,
	net domain.Networking,
	hist domain.RPCHistory,
	log zerolog.Logger,
) *Service {
	s := &Service{
		pairings: pairings,
		kms:      kms,
		net:      net,
		history:  hist,
		relay:    domain.RelayProtocolOptions{Protocol: domaintypes.DefaultRelayProtocol},
		log:      log,
		now:      time.Now,
	}
	s.cancels = []func(){
		net.OnRequest(methods.PairingPing, s.handlePing),
		net.OnRequest(methods.PairingDelete, s.handleDelete),
		net.OnResponse(methods.PairingPing, s.handlePingResponse),
	}
	return s
}

// Close detaches the engine from the networking layer.
func (s *Service) Close() {
	for _, c := range s.cancels {
		c()
	}
}

// OnPing fires when a peer answers our ping successfully.
func (s *Service) OnPing(fn func(domain.Topic)) (cancel func()) { return s.pinged.On(fn) }

// OnDelete fires when the peer deletes a pairing.
func (s *Service) OnDelete(fn func(domain.Topic)) (cancel func()) { return s.deleted.On(fn) }

// OnExpired fires when an expired pairing is purged.
func (s *Service) OnExpired(fn func(domain.Pairing)) (cancel func()) { return s.expired.On(fn) }

// Create starts a new pairing and returns the URI to hand to the peer.
//
// Steps:
//  1. Generate a random topic and install a fresh symmetric key for it.
//  2. Store an inactive pairing with the short lifetime.
//  3. Subscribe to the topic.
func (s *Service) Create(ctx context.Context, registered ...string) (uri.URI, error) {
	topic, err := crypto.RandomTopic()
	if err != nil {
		return uri.URI{}, err
	}
	key, err := s.kms.CreateSymmetricKey(topic)
	if err != nil {
		return uri.URI{}, err
	}
	p := domaintypes.NewPairing(topic, s.relay, registered, s.now())
	if err := s.pairings.SavePairing(p); err != nil {
		_ = s.kms.DeleteSymmetricKey(topic)
		return uri.URI{}, err
	}
	if err := s.net.Subscribe(ctx, topic); err != nil {
		s.purge(topic)
		return uri.URI{}, fmt.Errorf("subscribe pairing: %w", err)
	}
	s.log.Info().Str("topic", topic).Msg("pairing created")
	return uri.URI{
		Topic:           topic,
		SymKey:          key,
		Relay:           p.Relay,
		Methods:         p.RegisteredMethods,
		ExpiryTimestamp: p.Expiry,
	}, nil
}

// Pair joins the pairing described by u.
func (s *Service) Pair(ctx context.Context, u uri.URI) (domain.Pairing, error) {
	now := s.now()
	if u.ExpiryTimestamp > 0 && !now.Before(time.Unix(u.ExpiryTimestamp, 0)) {
		return domain.Pairing{}, ErrPairingExpired
	}

	// Purge an expired pairing on the same topic before the existence check.
	if _, _, err := s.Get(u.Topic); err != nil {
		return domain.Pairing{}, err
	}

	s.mu.Lock()
	if _, ok, err := s.pairings.LoadPairing(u.Topic); err != nil {
		s.mu.Unlock()
		return domain.Pairing{}, err
	} else if ok {
		s.mu.Unlock()
		return domain.Pairing{}, fmt.Errorf("%w: %s", ErrPairingAlreadyExists, u.Topic)
	}
	if err := s.kms.SetSymmetricKey(u.SymKey, u.Topic); err != nil {
		s.mu.Unlock()
		return domain.Pairing{}, err
	}
	relay := u.Relay
	if relay.Protocol == "" {
		relay = s.relay
	}
	p := domaintypes.NewPairing(u.Topic, relay, u.Methods, now)
	if u.ExpiryTimestamp > 0 {
		p.Expiry = u.ExpiryTimestamp
	}
	err := s.pairings.SavePairing(p)
	s.mu.Unlock()
	if err != nil {
		_ = s.kms.DeleteSymmetricKey(u.Topic)
		return domain.Pairing{}, err
	}

	if err := s.net.Subscribe(ctx, u.Topic); err != nil {
		s.purge(u.Topic)
		return domain.Pairing{}, fmt.Errorf("subscribe pairing: %w", err)
	}
	s.log.Info().Str("topic", u.Topic).Msg("paired")
	return p, nil
}

// Activate marks the pairing active and extends its lifetime.
func (s *Service) Activate(topic domain.Topic) error {
	return s.mutate(topic, func(p *domain.Pairing) error {
		p.Activate(s.now())
		return nil
	})
}

// UpdateExpiry sets the pairing to expire ttl from now. ttl may not exceed
// the active lifetime.
func (s *Service) UpdateExpiry(topic domain.Topic, ttl time.Duration) error {
	if ttl <= 0 || ttl > domaintypes.PairingActiveTTL {
		return fmt.Errorf("%w: %s", ErrInvalidExpiry, ttl)
	}
	return s.mutate(topic, func(p *domain.Pairing) error {
		p.Expiry = s.now().Add(ttl).Unix()
		return nil
	})
}

// UpdateMetadata records the peer's app metadata.
func (s *Service) UpdateMetadata(topic domain.Topic, meta domain.AppMetadata) error {
	return s.mutate(topic, func(p *domain.Pairing) error {
		p.PeerMetadata = &meta
		return nil
	})
}

// Ping sends wc_pairingPing. OnPing fires when the peer answers.
func (s *Service) Ping(ctx context.Context, topic domain.Topic) error {
	if _, ok, err := s.Get(topic); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("%w: %s", ErrNoPairingForTopic, topic)
	}
	_, err := s.net.Request(ctx, topic, methods.PairingPing, struct{}{})
	return err
}

// Delete notifies the peer and tears the pairing down. Local state is
// removed even when the notification cannot be sent; the send error is
// returned.
func (s *Service) Delete(ctx context.Context, topic domain.Topic) error {
	if _, ok, err := s.Get(topic); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("%w: %s", ErrNoPairingForTopic, topic)
	}
	_, sendErr := s.net.Request(ctx, topic, methods.PairingDelete, domaintypes.ReasonUserDisconnected)
	if sendErr != nil {
		s.log.Warn().Err(sendErr).Str("topic", topic).Msg("pairing delete not delivered")
	}
	if err := s.teardown(ctx, topic); err != nil {
		return err
	}
	s.log.Info().Str("topic", topic).Msg("pairing deleted")
	return sendErr
}

// Get returns the pairing for topic. An expired pairing is purged and
// reported as absent.
func (s *Service) Get(topic domain.Topic) (domain.Pairing, bool, error) {
	s.mu.Lock()
	p, ok, err := s.pairings.LoadPairing(topic)
	s.mu.Unlock()
	if err != nil || !ok {
		return domain.Pairing{}, false, err
	}
	if p.IsExpired(s.now()) {
		s.expire(p)
		return domain.Pairing{}, false, nil
	}
	return p, true, nil
}

// List returns the live pairings, purging expired ones.
func (s *Service) List() ([]domain.Pairing, error) {
	all, err := s.pairings.ListPairings()
	if err != nil {
		return nil, err
	}
	now := s.now()
	live := all[:0]
	for _, p := range all {
		if p.IsExpired(now) {
			s.expire(p)
			continue
		}
		live = append(live, p)
	}
	return live, nil
}

// Sweep purges every expired pairing.
func (s *Service) Sweep() error {
	_, err := s.List()
	return err
}

func (s *Service) mutate(topic domain.Topic, fn func(*domain.Pairing) error) error {
	s.mu.Lock()
	p, ok, err := s.pairings.LoadPairing(topic)
	expired := ok && p.IsExpired(s.now())
	if err == nil && ok && !expired {
		if err = fn(&p); err == nil {
			err = s.pairings.SavePairing(p)
		}
	}
	s.mu.Unlock()

	if expired {
		s.expire(p)
	}
	if err != nil {
		return err
	}
	if !ok || expired {
		return fmt.Errorf("%w: %s", ErrNoPairingForTopic, topic)
	}
	return nil
}

// expire purges p if it is still stored and expired, then fires OnExpired.
// Concurrent readers racing on the same pairing fire the event once.
func (s *Service) expire(p domain.Pairing) {
	s.mu.Lock()
	cur, ok, err := s.pairings.LoadPairing(p.Topic)
	if err != nil || !ok || !cur.IsExpired(s.now()) {
		s.mu.Unlock()
		return
	}
	s.purge(p.Topic)
	s.mu.Unlock()

	s.log.Info().Str("topic", p.Topic).Msg("pairing expired")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		defer cancel()
		if err := s.net.Unsubscribe(ctx, p.Topic); err != nil {
			s.log.Debug().Err(err).Str("topic", p.Topic).Msg("unsubscribe expired pairing")
		}
	}()
	s.expired.Emit(cur)
}

// purge removes local state for topic without touching the relay.
func (s *Service) purge(topic domain.Topic) {
	err := errors.Join(
		s.pairings.DeletePairing(topic),
		s.kms.DeleteSymmetricKey(topic),
		s.history.DeleteAll(topic),
	)
	if err != nil {
		s.log.Error().Err(err).Str("topic", topic).Msg("purge pairing")
	}
}

func (s *Service) teardown(ctx context.Context, topic domain.Topic) error {
	if err := s.net.Unsubscribe(ctx, topic); err != nil {
		s.log.Debug().Err(err).Str("topic", topic).Msg("unsubscribe pairing")
	}
	return errors.Join(
		s.pairings.DeletePairing(topic),
		s.kms.DeleteSymmetricKey(topic),
		s.history.DeleteAll(topic),
	)
}

func (s *Service) handlePing(r domain.InboundRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()

	if _, ok, err := s.Get(r.Topic); err != nil || !ok {
		s.respondError(ctx, r, methods.PairingPing, domaintypes.ReasonNoPairingForTopic)
		return
	}
	if err := s.Activate(r.Topic); err != nil {
		s.log.Warn().Err(err).Str("topic", r.Topic).Msg("activate pairing")
	}
	if err := s.net.RespondSuccess(ctx, r.Topic, r.Request.ID, methods.PairingPing); err != nil {
		s.log.Warn().Err(err).Str("topic", r.Topic).Msg("ping response failed")
	}
}

func (s *Service) handlePingResponse(r domain.InboundResponse) {
	if r.Response.IsError() {
		s.log.Warn().Str("topic", r.Topic).Int("code", r.Response.Error.Code).Msg("ping rejected")
		return
	}
	if err := s.Activate(r.Topic); err != nil {
		s.log.Warn().Err(err).Str("topic", r.Topic).Msg("activate pairing")
	}
	s.pinged.Emit(r.Topic)
}

func (s *Service) handleDelete(r domain.InboundRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()

	if _, ok, err := s.Get(r.Topic); err != nil || !ok {
		s.respondError(ctx, r, methods.PairingDelete, domaintypes.ReasonNoPairingForTopic)
		return
	}
	var reason domain.Reason
	if err := r.Request.Params.Decode(&reason); err != nil {
		s.respondError(ctx, r, methods.PairingDelete, domaintypes.ReasonInvalidParams)
		return
	}
	if err := s.net.RespondSuccess(ctx, r.Topic, r.Request.ID, methods.PairingDelete); err != nil {
		s.log.Warn().Err(err).Str("topic", r.Topic).Msg("delete response failed")
	}
	if err := s.teardown(ctx, r.Topic); err != nil {
		s.log.Error().Err(err).Str("topic", r.Topic).Msg("teardown pairing")
	}
	s.log.Info().Str("topic", r.Topic).Int("code", reason.Code).Msg("pairing deleted by peer")
	s.deleted.Emit(r.Topic)
}

func (s *Service) respondError(ctx context.Context, r domain.InboundRequest, m methods.Method, reason domain.Reason) {
	if err := s.net.RespondError(ctx, r.Topic, r.Request.ID, m, reason); err != nil {
		s.log.Debug().Err(err).Str("topic", r.Topic).Msg("error response failed")
	}
}
