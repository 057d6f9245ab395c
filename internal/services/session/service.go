package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"walletconnect/internal/domain"
	domaintypes "walletconnect/internal/domain/types"
	"walletconnect/internal/events"
	"walletconnect/internal/protocol/methods"
	"walletconnect/internal/protocol/namespaces"
)

const handlerTimeout = 30 * time.Second

var (
	ErrNoSessionForTopic   = domaintypes.NewError(domaintypes.KindProtocol, "no session for topic")
	ErrSessionExists       = domaintypes.NewError(domaintypes.KindProtocol, "session already exists")
	ErrInvalidSession      = domaintypes.NewError(domaintypes.KindProtocol, "invalid session")
	ErrMissingKey          = domaintypes.NewError(domaintypes.KindCrypto, "no symmetric key for session topic")
	ErrUnauthorizedUpdate  = domaintypes.NewError(domaintypes.KindProtocol, "only the controller may update namespaces")
	ErrUnauthorizedExtend  = domaintypes.NewError(domaintypes.KindProtocol, "only the controller may extend the session")
	ErrInvalidNamespaces   = domaintypes.NewError(domaintypes.KindProtocol, "invalid namespaces")
	ErrInvalidExtendExpiry = domaintypes.NewError(domaintypes.KindProtocol, "invalid extend expiry")
)

// PairingActivator activates the pairing a session was settled over.
type PairingActivator interface {
	Activate(topic domain.Topic) error
}

// UpdateEvent reports committed namespaces.
type UpdateEvent struct {
	Topic      domain.Topic
	Namespaces domain.Namespaces
}

// ExtendEvent reports a new session expiry.
type ExtendEvent struct {
	Topic  domain.Topic
	Expiry time.Time
}

// DeleteEvent reports a session removed by the peer.
type DeleteEvent struct {
	Topic  domain.Topic
	Reason domain.Reason
}

type updateParams struct {
	Namespaces domain.Namespaces `json:"namespaces"`
}

type extendParams struct {
	Expiry int64 `json:"expiry"`
}

// Service is the session engine.
type Service struct {
	sessions domain.SessionStore
	kms      domain.KeyManager
	net      domain.Networking
	history  domain.RPCHistory
	pairings PairingActivator
	log      zerolog.Logger
	now      func() time.Time

	// mu linearizes read-modify-write cycles on the session store.
	mu sync.Mutex

	updated  events.Stream[UpdateEvent]
	extended events.Stream[ExtendEvent]
	deleted  events.Stream[DeleteEvent]
	pinged   events.Stream[domain.Topic]
	expired  events.Stream[domain.Session]

	cancels []func()
}

// New returns a session engine and registers its handlers on net. pairings
// may be nil.
func New(
	sessions domain.SessionStore,
	kms domain.KeyManager,
	net domain.Networking,
	hist domain.RPCHistory,
	pairings PairingActivator,
	log zerolog.Logger,
) *Service {
	s := &Service{
		sessions: sessions,
		kms:      kms,
		net:      net,
		history:  hist,
		pairings: pairings,
		log:      log,
		now:      time.Now,
	}
	s.cancels = []func(){
		net.OnRequest(methods.SessionUpdate, s.handleUpdate),
		net.OnRequest(methods.SessionExtend, s.handleExtend),
		net.OnRequest(methods.SessionDelete, s.handleDelete),
		net.OnRequest(methods.SessionPing, s.handlePing),
		net.OnResponse(methods.SessionUpdate, s.handleUpdateResponse),
		net.OnResponse(methods.SessionExtend, s.handleExtendResponse),
		net.OnResponse(methods.SessionPing, s.handlePingResponse),
	}
	return s
}

// Close detaches the engine from the networking layer.
func (s *Service) Close() {
	for _, c := range s.cancels {
		c()
	}
}

// OnUpdate fires when namespaces change, on either side.
func (s *Service) OnUpdate(fn func(UpdateEvent)) (cancel func()) { return s.updated.On(fn) }

// OnExtend fires when the expiry moves: on the controller once the peer
// accepts, on the non-controller when it applies the request.
func (s *Service) OnExtend(fn func(ExtendEvent)) (cancel func()) { return s.extended.On(fn) }

// OnDelete fires when the peer deletes a session.
func (s *Service) OnDelete(fn func(DeleteEvent)) (cancel func()) { return s.deleted.On(fn) }

// OnPing fires when the peer answers our ping.
func (s *Service) OnPing(fn func(domain.Topic)) (cancel func()) { return s.pinged.On(fn) }

// OnExpired fires when an expired session is purged.
func (s *Service) OnExpired(fn func(domain.Session)) (cancel func()) { return s.expired.On(fn) }

// Settle stores a session agreed through the proposal handshake and
// subscribes to its topic. The topic's symmetric key must already be
// installed. A zero Expiry gets the default lifetime. When the subscription
// fails the session is not kept, so Settle may be retried; the key stays
// installed.
func (s *Service) Settle(ctx context.Context, session domain.Session) error {
	if !domaintypes.IsValidTopic(session.Topic) {
		return fmt.Errorf("%w: topic %q", ErrInvalidSession, session.Topic)
	}
	if err := resolveController(&session); err != nil {
		return err
	}
	if err := namespaces.Validate(session.Namespaces); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidNamespaces, err)
	}
	if _, ok, err := s.kms.GetSymmetricKey(session.Topic); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("%w: %s", ErrMissingKey, session.Topic)
	}
	if session.Expiry == 0 {
		session.Expiry = s.now().Add(domaintypes.SessionDefaultTTL).Unix()
	}

	s.mu.Lock()
	_, exists, err := s.sessions.LoadSession(session.Topic)
	if err == nil && exists {
		err = fmt.Errorf("%w: %s", ErrSessionExists, session.Topic)
	}
	if err == nil {
		err = s.sessions.SaveSession(session)
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if err := s.net.Subscribe(ctx, session.Topic); err != nil {
		s.mu.Lock()
		if derr := s.sessions.DeleteSession(session.Topic); derr != nil {
			s.log.Error().Err(derr).Str("topic", session.Topic).Msg("drop unsubscribed session")
		}
		s.mu.Unlock()
		return fmt.Errorf("subscribe session: %w", err)
	}
	if s.pairings != nil && session.PairingTopic != "" {
		if err := s.pairings.Activate(session.PairingTopic); err != nil {
			s.log.Debug().Err(err).Str("pairing", session.PairingTopic).Msg("activate pairing")
		}
	}
	s.log.Info().Str("topic", session.Topic).Bool("controller", session.SelfIsController).Msg("session settled")
	return nil
}

// Update asks the peer to accept ns. The local session changes only when the
// peer answers with success.
func (s *Service) Update(ctx context.Context, topic domain.Topic, ns domain.Namespaces) error {
	session, err := s.mustGet(topic)
	if err != nil {
		return err
	}
	if !session.SelfIsController {
		return fmt.Errorf("%w: %s", ErrUnauthorizedUpdate, topic)
	}
	if err := namespaces.Validate(ns); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidNamespaces, err)
	}
	_, err = s.net.Request(ctx, topic, methods.SessionUpdate, updateParams{Namespaces: ns})
	return err
}

// Extend moves the expiry to ttl from now. The new expiry may not be earlier
// than the current one nor later than the maximum session lifetime. It is
// committed as soon as the relay accepts the request; OnExtend fires when the
// peer confirms.
func (s *Service) Extend(ctx context.Context, topic domain.Topic, ttl time.Duration) error {
	session, err := s.mustGet(topic)
	if err != nil {
		return err
	}
	if !session.SelfIsController {
		return fmt.Errorf("%w: %s", ErrUnauthorizedExtend, topic)
	}
	now := s.now()
	expiry := now.Add(ttl).Unix()
	if !validExpiry(session, expiry, now) {
		return fmt.Errorf("%w: %s", ErrInvalidExtendExpiry, ttl)
	}
	if _, err := s.net.Request(ctx, topic, methods.SessionExtend, extendParams{Expiry: expiry}); err != nil {
		return err
	}
	return s.mutate(topic, func(ss *domain.Session) bool {
		if expiry < ss.Expiry {
			return false
		}
		ss.Expiry = expiry
		return true
	})
}

// Ping sends wc_sessionPing. OnPing fires when the peer answers.
func (s *Service) Ping(ctx context.Context, topic domain.Topic) error {
	if _, err := s.mustGet(topic); err != nil {
		return err
	}
	_, err := s.net.Request(ctx, topic, methods.SessionPing, struct{}{})
	return err
}

// Disconnect notifies the peer and removes the session. Local state is
// removed even when the notification cannot be sent; the send error is
// returned.
func (s *Service) Disconnect(ctx context.Context, topic domain.Topic) error {
	session, err := s.mustGet(topic)
	if err != nil {
		return err
	}
	_, sendErr := s.net.Request(ctx, topic, methods.SessionDelete, domaintypes.ReasonUserDisconnected)
	if sendErr != nil {
		s.log.Warn().Err(sendErr).Str("topic", topic).Msg("session delete not delivered")
	}
	if err := s.teardown(ctx, session); err != nil {
		return err
	}
	s.log.Info().Str("topic", topic).Msg("session disconnected")
	return sendErr
}

// Get returns the session for topic. An expired session is purged and
// reported as absent.
func (s *Service) Get(topic domain.Topic) (domain.Session, bool, error) {
	s.mu.Lock()
	session, ok, err := s.sessions.LoadSession(topic)
	s.mu.Unlock()
	if err != nil || !ok {
		return domain.Session{}, false, err
	}
	if session.IsExpired(s.now()) {
		s.expire(session)
		return domain.Session{}, false, nil
	}
	return session, true, nil
}

// List returns the live sessions, purging expired ones.
func (s *Service) List() ([]domain.Session, error) {
	all, err := s.sessions.ListSessions()
	if err != nil {
		return nil, err
	}
	now := s.now()
	live := all[:0]
	for _, session := range all {
		if session.IsExpired(now) {
			s.expire(session)
			continue
		}
		live = append(live, session)
	}
	return live, nil
}

// Sweep purges every expired session.
func (s *Service) Sweep() error {
	_, err := s.List()
	return err
}

func (s *Service) mustGet(topic domain.Topic) (domain.Session, error) {
	session, ok, err := s.Get(topic)
	if err != nil {
		return domain.Session{}, err
	}
	if !ok {
		return domain.Session{}, fmt.Errorf("%w: %s", ErrNoSessionForTopic, topic)
	}
	return session, nil
}

// mutate applies fn to the stored session under the lock. fn reports whether
// it changed anything; unchanged sessions are not written back.
func (s *Service) mutate(topic domain.Topic, fn func(*domain.Session) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok, err := s.sessions.LoadSession(topic)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSessionForTopic, topic)
	}
	if !fn(&session) {
		return nil
	}
	return s.sessions.SaveSession(session)
}

func (s *Service) expire(session domain.Session) {
	s.mu.Lock()
	cur, ok, err := s.sessions.LoadSession(session.Topic)
	if err != nil || !ok || !cur.IsExpired(s.now()) {
		s.mu.Unlock()
		return
	}
	s.purge(cur)
	s.mu.Unlock()

	s.log.Info().Str("topic", cur.Topic).Msg("session expired")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()
		if err := s.net.Unsubscribe(ctx, cur.Topic); err != nil {
			s.log.Debug().Err(err).Str("topic", cur.Topic).Msg("unsubscribe expired session")
		}
	}()
	s.expired.Emit(cur)
}

// purge removes local state for session without touching the relay.
func (s *Service) purge(session domain.Session) {
	if err := s.deleteLocal(session); err != nil {
		s.log.Error().Err(err).Str("topic", session.Topic).Msg("purge session")
	}
}

func (s *Service) deleteLocal(session domain.Session) error {
	errs := []error{
		s.sessions.DeleteSession(session.Topic),
		s.kms.DeleteSymmetricKey(session.Topic),
		s.history.DeleteAll(session.Topic),
	}
	if session.Self.PublicKey != "" {
		errs = append(errs, s.kms.DeletePrivateKey(session.Self.PublicKey))
	}
	return errors.Join(errs...)
}

func (s *Service) teardown(ctx context.Context, session domain.Session) error {
	if err := s.net.Unsubscribe(ctx, session.Topic); err != nil {
		s.log.Debug().Err(err).Str("topic", session.Topic).Msg("unsubscribe session")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocal(session)
}

// resolveController reconciles Controller with SelfIsController. A set
// Controller must name one of the participants and wins; an empty one is
// filled in from SelfIsController.
func resolveController(session *domain.Session) error {
	switch session.Controller {
	case "":
		if session.SelfIsController {
			session.Controller = session.Self.PublicKey
		} else {
			session.Controller = session.Peer.PublicKey
		}
	case session.Self.PublicKey:
		session.SelfIsController = true
	case session.Peer.PublicKey:
		session.SelfIsController = false
	default:
		return fmt.Errorf("%w: controller %q is not a participant", ErrInvalidSession, session.Controller)
	}
	return nil
}

// validExpiry reports whether expiry may replace the session's current one.
func validExpiry(session domain.Session, expiry int64, now time.Time) bool {
	return expiry >= session.Expiry && expiry <= now.Add(domaintypes.SessionMaxTTL).Unix()
}
