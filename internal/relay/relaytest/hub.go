// Package relaytest provides an in-memory relay for engine tests.
//
// A Hub routes published messages to every other Peer subscribed to the
// topic. Each Peer delivers on its own goroutine in publish order, like the
// real dispatcher, so handlers may publish without re-entering the sender.
package relaytest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"walletconnect/internal/domain"
	"walletconnect/internal/events"
	"walletconnect/internal/relay"
)

// Hub is a shared in-memory relay.
type Hub struct {
	mu    sync.Mutex
	peers []*Peer
}

func NewHub() *Hub { return &Hub{} }

// Published is one message seen by the hub.
type Published struct {
	From    *Peer
	Topic   domain.Topic
	Message string
	Opts    domain.PublishOptions
}

// Peer is one client connection to the hub. It implements domain.RelayClient.
type Peer struct {
	hub  *Hub
	name string

	mu        sync.Mutex
	connected bool
	subs      map[domain.Topic]string
	next      int
	batches   [][]domain.Topic
	published []Published

	inbox    chan domain.RelayMessage
	done     chan struct{}
	messages events.Stream[domain.RelayMessage]
	status   events.Stream[domain.ConnectionStatus]
}

// Peer adds a connected peer to the hub.
func (h *Hub) Peer(name string) *Peer {
	p := &Peer{
		hub:       h,
		name:      name,
		connected: true,
		subs:      make(map[domain.Topic]string),
		inbox:     make(chan domain.RelayMessage, 1024),
		done:      make(chan struct{}),
	}
	go p.deliver()
	h.mu.Lock()
	h.peers = append(h.peers, p)
	h.mu.Unlock()
	return p
}

func (p *Peer) String() string { return p.name }

// Close stops delivery.
func (p *Peer) Close() { close(p.done) }

func (p *Peer) deliver() {
	for {
		select {
		case <-p.done:
			return
		case m := <-p.inbox:
			p.messages.Emit(m)
		}
	}
}

// SetConnected changes the peer's connection and emits the status. Calls
// fail with relay.ErrNotConnected while disconnected. Reconnecting drops
// all subscriptions, as a real relay would.
func (p *Peer) SetConnected(connected bool) {
	p.mu.Lock()
	p.connected = connected
	if connected {
		p.subs = make(map[domain.Topic]string)
	}
	p.mu.Unlock()
	if connected {
		p.status.Emit(domain.Connected)
		return
	}
	p.status.Emit(domain.Disconnected)
}

func (p *Peer) Publish(_ context.Context, topic domain.Topic, message string, opts domain.PublishOptions) error {
	p.mu.Lock()
	if !p.connected {
		p.mu.Unlock()
		return relay.ErrNotConnected
	}
	p.published = append(p.published, Published{From: p, Topic: topic, Message: message, Opts: opts})
	p.mu.Unlock()

	msg := domain.RelayMessage{Topic: topic, Message: message, PublishedAt: time.Now(), Tag: opts.Tag}
	p.hub.mu.Lock()
	peers := append([]*Peer(nil), p.hub.peers...)
	p.hub.mu.Unlock()
	for _, other := range peers {
		if other == p {
			continue
		}
		if id, ok := other.subscription(topic); ok {
			m := msg
			m.SubscriptionID = id
			other.inbox <- m
		}
	}
	return nil
}

func (p *Peer) subscription(topic domain.Topic) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.subs[topic]
	return id, ok && p.connected
}

func (p *Peer) Subscribe(_ context.Context, topic domain.Topic) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return "", relay.ErrNotConnected
	}
	return p.subscribeLocked(topic), nil
}

func (p *Peer) subscribeLocked(topic domain.Topic) string {
	if id, ok := p.subs[topic]; ok {
		return id
	}
	p.next++
	id := fmt.Sprintf("%s-%d", p.name, p.next)
	p.subs[topic] = id
	return id
}

func (p *Peer) Unsubscribe(_ context.Context, topic domain.Topic) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return relay.ErrNotConnected
	}
	delete(p.subs, topic)
	return nil
}

func (p *Peer) BatchSubscribe(_ context.Context, topics []domain.Topic) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return nil, relay.ErrNotConnected
	}
	p.batches = append(p.batches, append([]domain.Topic(nil), topics...))
	ids := make([]string, len(topics))
	for i, t := range topics {
		ids[i] = p.subscribeLocked(t)
	}
	return ids, nil
}

func (p *Peer) OnMessage(fn func(domain.RelayMessage)) (cancel func()) {
	return p.messages.On(fn)
}

func (p *Peer) OnConnectionStatus(fn func(domain.ConnectionStatus)) (cancel func()) {
	return p.status.On(fn)
}

// Subscribed reports whether the peer is subscribed to topic.
func (p *Peer) Subscribed(topic domain.Topic) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.subs[topic]
	return ok
}

// Batches returns every BatchSubscribe call's topics.
func (p *Peer) Batches() [][]domain.Topic {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]domain.Topic, len(p.batches))
	copy(out, p.batches)
	return out
}

// Published returns everything this peer published.
func (p *Peer) Published() []Published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Published(nil), p.published...)
}

// Inject delivers a raw message to this peer as if the relay pushed it.
func (p *Peer) Inject(topic domain.Topic, message string) {
	p.inbox <- domain.RelayMessage{Topic: topic, Message: message, PublishedAt: time.Now()}
}

// Compile-time assertion that Peer implements domain.RelayClient.
var _ domain.RelayClient = (*Peer)(nil)
