// Package relayserver is an in-memory irn relay for development and tests.
//
// Clients connect over websocket and speak irn JSON-RPC: subscribe, batch
// subscribe, unsubscribe and publish. A published message is pushed with
// irn_subscription to every other subscriber of the topic. When nobody else
// is subscribed, the message waits in the topic's mailbox until its TTL
// expires or a subscriber arrives.
//
// All state is held in memory and lost on process exit. The relay never
// sees plaintext or private keys; it only routes ciphertext.
package relayserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"walletconnect/internal/domain"
	domaintypes "walletconnect/internal/domain/types"
	"walletconnect/internal/metrics"
	"walletconnect/internal/protocol/jsonrpc"
	"walletconnect/internal/protocol/relayauth"
	"walletconnect/internal/relay"
)

const (
	sendBuffer   = 256
	writeWait    = 10 * time.Second
	maxTTL       = 30 * 24 * 60 * 60
	maxFrameSize = 1 << 20
)

// Config tunes a Server.
type Config struct {
	// VerifyAuth requires a valid relay auth token in the "auth" query
	// parameter.
	VerifyAuth bool
	Logger     zerolog.Logger
	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// Server is an http.Handler serving the irn websocket protocol.
type Server struct {
	cfg      Config
	log      zerolog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	topics  map[domain.Topic]map[*conn]string // topic -> subscriber -> subscription id
	mailbox map[domain.Topic][]held
}

type held struct {
	from    *conn
	data    relay.SubscriptionData
	expires time.Time
}

// New returns a relay with no clients.
func New(cfg Config) *Server {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Server{
		cfg: cfg,
		log: cfg.Logger.With().Str("component", "relayserver").Logger(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		topics:  make(map[domain.Topic]map[*conn]string),
		mailbox: make(map[domain.Topic][]held),
	}
}

// ServeHTTP upgrades the request and serves one client until it disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.cfg.VerifyAuth {
		scheme := "ws"
		if r.TLS != nil {
			scheme = "wss"
		}
		aud := scheme + "://" + r.Host
		claims, err := relayauth.VerifyJWT(r.URL.Query().Get("auth"), aud, s.cfg.Now())
		if err != nil {
			s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("rejecting client")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		s.log.Debug().Str("client", claims.Issuer).Msg("client authenticated")
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("upgrade failed")
		return
	}
	c := &conn{srv: s, ws: ws, send: make(chan []byte, sendBuffer), done: make(chan struct{})}
	metrics.AddRelayConnections(1)
	go c.writeLoop()
	c.readLoop()

	s.drop(c)
	metrics.AddRelayConnections(-1)
}

// Sweep drops mailbox messages whose TTL has passed.
func (s *Server) Sweep() {
	now := s.cfg.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(now)
}

func (s *Server) sweepLocked(now time.Time) {
	total := 0
	for topic, msgs := range s.mailbox {
		kept := msgs[:0]
		for _, m := range msgs {
			if now.Before(m.expires) {
				kept = append(kept, m)
			}
		}
		if len(kept) == 0 {
			delete(s.mailbox, topic)
			continue
		}
		s.mailbox[topic] = kept
		total += len(kept)
	}
	metrics.SetRelayMailbox(total)
}

// Subscribers returns the number of connections subscribed to topic.
func (s *Server) Subscribers(topic domain.Topic) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.topics[topic])
}

// subscribe registers c on topic and returns the subscription id plus the
// mailbox messages now owed to c. The caller pushes them after the ack.
func (s *Server) subscribe(c *conn, topic domain.Topic) (string, []held) {
	s.mu.Lock()
	subs, ok := s.topics[topic]
	if !ok {
		subs = make(map[*conn]string)
		s.topics[topic] = subs
	}
	id, ok := subs[c]
	if !ok {
		id = uuid.NewString()
		subs[c] = id
	}

	s.sweepLocked(s.cfg.Now())
	var flush, keep []held
	for _, m := range s.mailbox[topic] {
		if m.from == c {
			keep = append(keep, m)
			continue
		}
		flush = append(flush, m)
	}
	if len(keep) == 0 {
		delete(s.mailbox, topic)
	} else {
		s.mailbox[topic] = keep
	}
	s.mu.Unlock()
	return id, flush
}

func (s *Server) unsubscribe(c *conn, topic domain.Topic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if subs, ok := s.topics[topic]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(s.topics, topic)
		}
	}
}

func (s *Server) publish(from *conn, p relay.PublishParams) {
	now := s.cfg.Now()
	data := relay.SubscriptionData{
		Topic:       p.Topic,
		Message:     p.Message,
		PublishedAt: now.UnixMilli(),
		Tag:         p.Tag,
	}

	type target struct {
		c  *conn
		id string
	}
	var targets []target
	s.mu.Lock()
	for c, id := range s.topics[p.Topic] {
		if c != from {
			targets = append(targets, target{c, id})
		}
	}
	if len(targets) == 0 {
		s.mailbox[p.Topic] = append(s.mailbox[p.Topic], held{
			from:    from,
			data:    data,
			expires: now.Add(time.Duration(p.TTL) * time.Second),
		})
	}
	s.sweepLocked(now)
	s.mu.Unlock()

	for _, t := range targets {
		t.c.push(t.id, data)
	}
}

func (s *Server) drop(c *conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for topic, subs := range s.topics {
		delete(subs, c)
		if len(subs) == 0 {
			delete(s.topics, topic)
		}
	}
	for topic, msgs := range s.mailbox {
		for i := range msgs {
			if msgs[i].from == c {
				msgs[i].from = nil
			}
		}
		s.mailbox[topic] = msgs
	}
}

// conn is one client socket. Only writeLoop writes to ws.
type conn struct {
	srv  *Server
	ws   *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func (c *conn) readLoop() {
	defer c.close()
	c.ws.SetReadLimit(maxFrameSize)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		req, _, err := jsonrpc.Parse(data)
		if err != nil {
			c.reply(jsonrpc.NewErrorResponse(0, jsonrpc.CodeParseError, "parse error"))
			continue
		}
		if req == nil {
			// ack of an irn_subscription push
			continue
		}
		c.handle(*req)
	}
}

func (c *conn) handle(req jsonrpc.Request) {
	s := c.srv
	ok := true
	defer func() { metrics.RecordRelayRequest(req.Method, ok) }()

	invalid := func(msg string) {
		ok = false
		c.reply(jsonrpc.NewErrorResponse(req.ID, jsonrpc.CodeInvalidParams, msg))
	}

	switch req.Method {
	case relay.MethodSubscribe:
		var p relay.SubscribeParams
		if err := req.Params.Decode(&p); err != nil || !domaintypes.IsValidTopic(p.Topic) {
			invalid("invalid topic")
			return
		}
		id, owed := s.subscribe(c, p.Topic)
		c.result(req.ID, id)
		c.deliver(id, owed)

	case relay.MethodBatchSubscribe:
		var p relay.BatchSubscribeParams
		if err := req.Params.Decode(&p); err != nil || len(p.Topics) == 0 || len(p.Topics) > relay.MaxBatchTopics {
			invalid("invalid topics")
			return
		}
		for _, t := range p.Topics {
			if !domaintypes.IsValidTopic(t) {
				invalid("invalid topic")
				return
			}
		}
		ids := make([]string, len(p.Topics))
		owed := make([][]held, len(p.Topics))
		for i, t := range p.Topics {
			ids[i], owed[i] = s.subscribe(c, t)
		}
		c.result(req.ID, ids)
		for i := range ids {
			c.deliver(ids[i], owed[i])
		}

	case relay.MethodUnsubscribe:
		var p relay.UnsubscribeParams
		if err := req.Params.Decode(&p); err != nil || !domaintypes.IsValidTopic(p.Topic) {
			invalid("invalid topic")
			return
		}
		s.unsubscribe(c, p.Topic)
		c.result(req.ID, true)

	case relay.MethodPublish:
		var p relay.PublishParams
		if err := req.Params.Decode(&p); err != nil || !domaintypes.IsValidTopic(p.Topic) || p.Message == "" {
			invalid("invalid publish")
			return
		}
		if p.TTL <= 0 || p.TTL > maxTTL {
			invalid("invalid ttl")
			return
		}
		c.result(req.ID, true)
		s.publish(c, p)

	default:
		ok = false
		c.reply(jsonrpc.NewErrorResponse(req.ID, jsonrpc.CodeMethodNotFound, "method not found"))
	}
}

func (c *conn) deliver(subID string, msgs []held) {
	for _, m := range msgs {
		c.push(subID, m.data)
	}
}

func (c *conn) push(subID string, data relay.SubscriptionData) {
	req, err := jsonrpc.NewRequest(relay.MethodSubscription, relay.SubscriptionParams{ID: subID, Data: data})
	if err != nil {
		return
	}
	b, err := json.Marshal(req)
	if err != nil {
		return
	}
	if c.enqueue(b) {
		metrics.RecordRelayDelivery()
	}
}

func (c *conn) result(id int64, v any) {
	resp, err := jsonrpc.NewResult(id, v)
	if err != nil {
		c.reply(jsonrpc.NewErrorResponse(id, jsonrpc.CodeInternalError, err.Error()))
		return
	}
	c.reply(resp)
}

func (c *conn) reply(resp jsonrpc.Response) {
	b, err := json.Marshal(resp)
	if err != nil {
		return
	}
	c.enqueue(b)
}

// enqueue hands b to the writer. A client that cannot keep up is dropped.
func (c *conn) enqueue(b []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- b:
		return true
	case <-c.done:
		return false
	default:
		c.srv.log.Warn().Msg("client send buffer full; closing")
		c.close()
		return false
	}
}

func (c *conn) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case b := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
				c.close()
				return
			}
		}
	}
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}
