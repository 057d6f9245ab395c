package networking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"walletconnect/internal/domain"
	domaintypes "walletconnect/internal/domain/types"
	"walletconnect/internal/events"
	"walletconnect/internal/metrics"
	"walletconnect/internal/protocol/jsonrpc"
	"walletconnect/internal/protocol/methods"
	"walletconnect/internal/services/history"
)

const (
	// unknownMethodTTL is the relay TTL for error responses to methods
	// missing from the registry.
	unknownMethodTTL = 5 * 60
	respondTimeout   = 30 * time.Second
)

// Service implements domain.Networking.
type Service struct {
	relay      domain.RelayClient
	serializer domain.Serializer
	history    domain.RPCHistory
	registry   *methods.Registry
	log        zerolog.Logger

	mu        sync.Mutex
	requests  map[string]*events.Stream[domain.InboundRequest]
	responses map[string]*events.Stream[domain.InboundResponse]

	cancel func()
}

// New wires the interactor to relay's message stream. Close detaches it.
func New(
	relay domain.RelayClient,
	serializer domain.Serializer,
	hist domain.RPCHistory,
	registry *methods.Registry,
	log zerolog.Logger,
) *Service {
	s := &Service{
		relay:      relay,
		serializer: serializer,
		history:    hist,
		registry:   registry,
		log:        log,
		requests:   make(map[string]*events.Stream[domain.InboundRequest]),
		responses:  make(map[string]*events.Stream[domain.InboundResponse]),
	}
	s.cancel = relay.OnMessage(s.handleMessage)
	return s
}

// Close stops routing inbound messages.
func (s *Service) Close() { s.cancel() }

func (s *Service) Subscribe(ctx context.Context, topic domain.Topic) error {
	_, err := s.relay.Subscribe(ctx, topic)
	return err
}

func (s *Service) Unsubscribe(ctx context.Context, topic domain.Topic) error {
	return s.relay.Unsubscribe(ctx, topic)
}

// Request sends method on topic and returns once the relay has accepted the
// envelope. The peer's answer arrives through OnResponse.
//
// Steps:
//  1. Build the request with a fresh timestamped id.
//  2. Record it in the history so the response can be matched.
//  3. Seal it with the topic's symmetric key.
//  4. Publish with the method's request tag.
func (s *Service) Request(ctx context.Context, topic domain.Topic, method methods.Method, params any) (jsonrpc.Request, error) {
	req, err := jsonrpc.NewRequest(method.Name, params)
	if err != nil {
		return jsonrpc.Request{}, err
	}
	if err := s.history.Set(req, topic, domain.OriginLocal); err != nil {
		return jsonrpc.Request{}, err
	}
	msg, err := s.serializer.Serialize(topic, req, domain.SerializeOptions{Type: domain.EnvelopeType0})
	if err != nil {
		return jsonrpc.Request{}, err
	}
	if err := s.publish(ctx, topic, msg, method.TTL, method.RequestTag, method.Prompt); err != nil {
		return jsonrpc.Request{}, fmt.Errorf("%s: %w", method.Name, err)
	}
	s.log.Debug().Str("topic", topic).Str("method", method.Name).Int64("id", req.ID).Msg("request sent")
	return req, nil
}

// Respond answers a peer request on topic. Each request is answered at most
// once; a second answer fails with history.ErrDuplicateResponse.
func (s *Service) Respond(ctx context.Context, topic domain.Topic, method methods.Method, resp jsonrpc.Response) error {
	if _, err := s.history.Resolve(resp); err != nil {
		if !errors.Is(err, history.ErrRequestNotFound) {
			return err
		}
		// Pruned or never recorded; answer anyway.
		s.log.Debug().Int64("id", resp.ID).Msg("responding to unrecorded request")
	}
	msg, err := s.serializer.Serialize(topic, resp, domain.SerializeOptions{Type: domain.EnvelopeType0})
	if err != nil {
		return err
	}
	if err := s.publish(ctx, topic, msg, method.TTL, method.ResponseTag, false); err != nil {
		return fmt.Errorf("%s response: %w", method.Name, err)
	}
	return nil
}

// RespondSuccess answers id with result true.
func (s *Service) RespondSuccess(ctx context.Context, topic domain.Topic, id int64, method methods.Method) error {
	resp, err := jsonrpc.NewResult(id, true)
	if err != nil {
		return err
	}
	return s.Respond(ctx, topic, method, resp)
}

// RespondError answers id with reason.
func (s *Service) RespondError(ctx context.Context, topic domain.Topic, id int64, method methods.Method, reason domain.Reason) error {
	metrics.RecordErrorSent(method.Name, reason.Code)
	s.log.Warn().
		Str("topic", topic).
		Str("method", method.Name).
		Int("code", reason.Code).
		Msg("rejecting peer request")
	return s.Respond(ctx, topic, method, jsonrpc.NewErrorResponse(id, reason.Code, reason.Message))
}

// OnRequest registers fn for inbound requests of method.
func (s *Service) OnRequest(method methods.Method, fn func(domain.InboundRequest)) (cancel func()) {
	s.mu.Lock()
	st, ok := s.requests[method.Name]
	if !ok {
		st = &events.Stream[domain.InboundRequest]{}
		s.requests[method.Name] = st
	}
	s.mu.Unlock()
	return st.On(fn)
}

// OnResponse registers fn for peer responses to our requests of method.
func (s *Service) OnResponse(method methods.Method, fn func(domain.InboundResponse)) (cancel func()) {
	s.mu.Lock()
	st, ok := s.responses[method.Name]
	if !ok {
		st = &events.Stream[domain.InboundResponse]{}
		s.responses[method.Name] = st
	}
	s.mu.Unlock()
	return st.On(fn)
}

func (s *Service) publish(ctx context.Context, topic domain.Topic, msg string, ttl, tag int, prompt bool) error {
	if err := s.relay.Publish(ctx, topic, msg, domain.PublishOptions{TTL: ttl, Tag: tag, Prompt: prompt}); err != nil {
		return err
	}
	metrics.RecordPublish(tag)
	return nil
}

// handleMessage runs on the relay's delivery goroutine, one message at a
// time per client.
func (s *Service) handleMessage(m domain.RelayMessage) {
	var raw json.RawMessage
	if _, err := s.serializer.Deserialize(m.Topic, m.Message, &raw); err != nil {
		metrics.RecordInbound(metrics.OutcomeUndecodable)
		s.log.Debug().Err(err).Str("topic", m.Topic).Msg("dropping envelope")
		return
	}
	req, resp, err := jsonrpc.Parse(raw)
	if err != nil {
		metrics.RecordInbound(metrics.OutcomeUndecodable)
		s.log.Debug().Err(err).Str("topic", m.Topic).Msg("dropping non-rpc payload")
		return
	}
	if req != nil {
		s.handleRequest(m, *req)
		return
	}
	s.handleResponse(m, *resp)
}

func (s *Service) handleRequest(m domain.RelayMessage, req jsonrpc.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), respondTimeout)
	defer cancel()

	method, known := s.registry.ByName(req.Method)
	if !known {
		method = methods.Method{Name: req.Method, TTL: unknownMethodTTL}
	}

	if err := s.history.Set(req, m.Topic, domain.OriginRemote); err != nil {
		if errors.Is(err, history.ErrDuplicateRequest) {
			metrics.RecordInbound(metrics.OutcomeDuplicate)
			s.log.Debug().Int64("id", req.ID).Msg("dropping redelivered request")
			return
		}
		// An unrecorded request cannot be answered later.
		s.log.Error().Err(err).Int64("id", req.ID).Msg("record inbound request")
		if err := s.RespondError(ctx, m.Topic, req.ID, method, domaintypes.ReasonInternalError); err != nil {
			s.log.Debug().Err(err).Msg("internal-error response failed")
		}
		return
	}
	metrics.RecordInbound(metrics.OutcomeRequest)
	s.mu.Lock()
	st := s.requests[req.Method]
	s.mu.Unlock()
	if !known || st == nil || st.Len() == 0 {
		if err := s.RespondError(ctx, m.Topic, req.ID, method, domaintypes.ReasonMethodNotFound); err != nil {
			s.log.Debug().Err(err).Msg("method-not-found response failed")
		}
		return
	}
	st.Emit(domain.InboundRequest{
		Topic:       m.Topic,
		Request:     req,
		PublishedAt: m.PublishedAt,
		Tag:         m.Tag,
	})
}

func (s *Service) handleResponse(m domain.RelayMessage, resp jsonrpc.Response) {
	rec, err := s.history.Resolve(resp)
	if err != nil {
		metrics.RecordInbound(metrics.OutcomeUnmatched)
		s.log.Debug().Err(err).Int64("id", resp.ID).Msg("dropping response")
		return
	}
	metrics.RecordInbound(metrics.OutcomeResponse)

	s.mu.Lock()
	st := s.responses[rec.Request.Method]
	s.mu.Unlock()
	if st == nil {
		return
	}
	st.Emit(domain.InboundResponse{
		Topic:       m.Topic,
		Request:     rec.Request,
		Response:    resp,
		PublishedAt: m.PublishedAt,
	})
}

// Compile-time assertion that Service implements domain.Networking.
var _ domain.Networking = (*Service)(nil)
