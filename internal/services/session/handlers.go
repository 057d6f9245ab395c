package session

import (
	"context"
	"errors"
	"time"

	"walletconnect/internal/domain"
	domaintypes "walletconnect/internal/domain/types"
	"walletconnect/internal/protocol/jsonrpc"
	"walletconnect/internal/protocol/methods"
	"walletconnect/internal/protocol/namespaces"
)

// Every handler below sends exactly one response per request.

// handleUpdate runs on the non-controller.
//
// Steps:
//  1. Check the namespaces grammar.
//  2. Check that the peer is the controller.
//  3. Drop updates older than the last applied one, still answering success.
//  4. Store the namespaces and answer success.
func (s *Service) handleUpdate(r domain.InboundRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	m := methods.SessionUpdate

	session, ok, err := s.Get(r.Topic)
	if err != nil || !ok {
		s.reject(ctx, r, m, domaintypes.ReasonNoSessionForTopic)
		return
	}
	var p updateParams
	if err := r.Request.Params.Decode(&p); err != nil {
		s.reject(ctx, r, m, domaintypes.ReasonInvalidUpdateRequest)
		return
	}
	if err := namespaces.Validate(p.Namespaces); err != nil {
		s.log.Debug().Err(err).Str("topic", r.Topic).Msg("invalid namespaces from peer")
		s.reject(ctx, r, m, domaintypes.ReasonInvalidUpdateRequest)
		return
	}
	if !session.PeerIsController() {
		s.reject(ctx, r, m, domaintypes.ReasonUnauthorizedUpdateRequest)
		return
	}

	applied, err := s.applyNamespaces(r.Topic, jsonrpc.Timestamp(r.Request.ID), p.Namespaces)
	if err != nil {
		s.rejectErr(ctx, r, m, err)
		return
	}
	if !applied {
		s.log.Debug().Str("topic", r.Topic).Int64("id", r.Request.ID).Msg("ignoring stale update")
	}
	s.accept(ctx, r, m)
	if applied {
		s.updated.Emit(UpdateEvent{Topic: r.Topic, Namespaces: p.Namespaces.Clone()})
	}
}

// handleExtend runs on the non-controller.
func (s *Service) handleExtend(r domain.InboundRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	m := methods.SessionExtend

	session, ok, err := s.Get(r.Topic)
	if err != nil || !ok {
		s.reject(ctx, r, m, domaintypes.ReasonNoSessionForTopic)
		return
	}
	var p extendParams
	if err := r.Request.Params.Decode(&p); err != nil {
		s.reject(ctx, r, m, domaintypes.ReasonInvalidExtendRequest)
		return
	}
	if !session.PeerIsController() {
		s.reject(ctx, r, m, domaintypes.ReasonUnauthorizedExtendRequest)
		return
	}
	now := s.now()
	if !validExpiry(session, p.Expiry, now) {
		s.reject(ctx, r, m, domaintypes.ReasonInvalidExtendRequest)
		return
	}

	valid := true
	err = s.mutate(r.Topic, func(ss *domain.Session) bool {
		if !validExpiry(*ss, p.Expiry, now) {
			valid = false
			return false
		}
		ss.Expiry = p.Expiry
		return true
	})
	if err != nil {
		s.rejectErr(ctx, r, m, err)
		return
	}
	if !valid {
		s.reject(ctx, r, m, domaintypes.ReasonInvalidExtendRequest)
		return
	}
	s.accept(ctx, r, m)
	s.extended.Emit(ExtendEvent{Topic: r.Topic, Expiry: time.Unix(p.Expiry, 0)})
}

func (s *Service) handleDelete(r domain.InboundRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	m := methods.SessionDelete

	session, ok, err := s.Get(r.Topic)
	if err != nil || !ok {
		s.reject(ctx, r, m, domaintypes.ReasonNoSessionForTopic)
		return
	}
	var reason domain.Reason
	if err := r.Request.Params.Decode(&reason); err != nil {
		s.reject(ctx, r, m, domaintypes.ReasonInvalidParams)
		return
	}
	s.accept(ctx, r, m)
	if err := s.teardown(ctx, session); err != nil {
		s.log.Error().Err(err).Str("topic", r.Topic).Msg("teardown session")
	}
	s.log.Info().Str("topic", r.Topic).Int("code", reason.Code).Msg("session deleted by peer")
	s.deleted.Emit(DeleteEvent{Topic: r.Topic, Reason: reason})
}

func (s *Service) handlePing(r domain.InboundRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if _, ok, err := s.Get(r.Topic); err != nil || !ok {
		s.reject(ctx, r, methods.SessionPing, domaintypes.ReasonNoSessionForTopic)
		return
	}
	s.accept(ctx, r, methods.SessionPing)
}

// handleUpdateResponse runs on the controller and commits the namespaces
// the peer accepted.
func (s *Service) handleUpdateResponse(r domain.InboundResponse) {
	if r.Response.IsError() {
		s.log.Warn().Str("topic", r.Topic).Int("code", r.Response.Error.Code).Msg("update rejected by peer")
		return
	}
	var p updateParams
	if err := r.Request.Params.Decode(&p); err != nil {
		s.log.Error().Err(err).Int64("id", r.Request.ID).Msg("decode own update request")
		return
	}
	applied, err := s.applyNamespaces(r.Topic, jsonrpc.Timestamp(r.Request.ID), p.Namespaces)
	if err != nil {
		s.log.Warn().Err(err).Str("topic", r.Topic).Msg("commit update")
		return
	}
	if applied {
		s.updated.Emit(UpdateEvent{Topic: r.Topic, Namespaces: p.Namespaces.Clone()})
	}
}

func (s *Service) handleExtendResponse(r domain.InboundResponse) {
	if r.Response.IsError() {
		s.log.Warn().Str("topic", r.Topic).Int("code", r.Response.Error.Code).Msg("extend rejected by peer")
		return
	}
	var p extendParams
	if err := r.Request.Params.Decode(&p); err != nil {
		s.log.Error().Err(err).Int64("id", r.Request.ID).Msg("decode own extend request")
		return
	}
	s.extended.Emit(ExtendEvent{Topic: r.Topic, Expiry: time.Unix(p.Expiry, 0)})
}

func (s *Service) handlePingResponse(r domain.InboundResponse) {
	if r.Response.IsError() {
		s.log.Warn().Str("topic", r.Topic).Int("code", r.Response.Error.Code).Msg("ping rejected by peer")
		return
	}
	s.pinged.Emit(r.Topic)
}

// applyNamespaces stores ns unless a newer update has already been applied.
// Updates with the same timestamp as the stored one are applied.
func (s *Service) applyNamespaces(topic domain.Topic, ts int64, ns domain.Namespaces) (bool, error) {
	applied := false
	err := s.mutate(topic, func(ss *domain.Session) bool {
		if ts < ss.Timestamp {
			return false
		}
		ss.Namespaces = ns.Clone()
		ss.Timestamp = ts
		applied = true
		return true
	})
	return applied, err
}

func (s *Service) accept(ctx context.Context, r domain.InboundRequest, m methods.Method) {
	if err := s.net.RespondSuccess(ctx, r.Topic, r.Request.ID, m); err != nil {
		s.log.Warn().Err(err).Str("topic", r.Topic).Str("method", m.Name).Msg("success response failed")
	}
}

func (s *Service) reject(ctx context.Context, r domain.InboundRequest, m methods.Method, reason domain.Reason) {
	if err := s.net.RespondError(ctx, r.Topic, r.Request.ID, m, reason); err != nil {
		s.log.Debug().Err(err).Str("topic", r.Topic).Str("method", m.Name).Msg("error response failed")
	}
}

func (s *Service) rejectErr(ctx context.Context, r domain.InboundRequest, m methods.Method, err error) {
	if errors.Is(err, ErrNoSessionForTopic) {
		s.reject(ctx, r, m, domaintypes.ReasonNoSessionForTopic)
		return
	}
	s.log.Error().Err(err).Str("topic", r.Topic).Str("method", m.Name).Msg("apply peer request")
	s.reject(ctx, r, m, domaintypes.ReasonInternalError)
}
