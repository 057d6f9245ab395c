package relay

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"walletconnect/internal/domain"
	"walletconnect/internal/events"
	"walletconnect/internal/protocol/jsonrpc"
	"walletconnect/internal/protocol/relayauth"
)

// Options configure a Client built by Dial.
type Options struct {
	URL          string // ws:// or wss:// relay endpoint
	ProjectID    string
	SigningKey   ed25519.PrivateKey // nil disables the auth token
	Manual       bool               // Manual strategy instead of Automatic
	PingInterval time.Duration
	AckTimeout   time.Duration
	Logger       zerolog.Logger
}

// Client implements domain.RelayClient over a Dispatcher.
type Client struct {
	d        *Dispatcher
	strategy ConnectionStrategy
	log      zerolog.Logger

	mu   sync.Mutex
	subs map[domain.Topic]string // topic -> subscription id

	messages events.Stream[domain.RelayMessage]
	cancel   func()
}

// Dial builds the websocket transport for opts and returns a client. With the
// Automatic strategy the client starts connecting in the background.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	if _, err := url.Parse(opts.URL); err != nil {
		return nil, fmt.Errorf("relay url: %w", err)
	}
	sock := NewWebSocket(AuthURL(opts.URL, opts.ProjectID, opts.SigningKey), opts.PingInterval, opts.Logger)
	d := NewDispatcher(sock, opts.AckTimeout, opts.Logger)

	var strategy ConnectionStrategy
	if opts.Manual {
		strategy = NewManual(sock)
	} else {
		auto := NewAutomatic(sock, d, opts.Logger)
		auto.Start(ctx)
		strategy = auto
	}
	return NewClient(d, strategy, opts.Logger), nil
}

// AuthURL returns a URLFunc that appends a fresh relay auth token and the
// project id to base on every call.
func AuthURL(base, projectID string, key ed25519.PrivateKey) URLFunc {
	return func() (string, error) {
		u, err := url.Parse(base)
		if err != nil {
			return "", err
		}
		q := u.Query()
		if projectID != "" {
			q.Set("projectId", projectID)
		}
		if key != nil {
			aud := (&url.URL{Scheme: u.Scheme, Host: u.Host}).String()
			tok, err := relayauth.SignJWT(key, aud, relayauth.DefaultTTL, time.Now())
			if err != nil {
				return "", err
			}
			q.Set("auth", tok)
		}
		u.RawQuery = q.Encode()
		return u.String(), nil
	}
}

// NewClient returns a client over d. Connection changes go through strategy.
func NewClient(d *Dispatcher, strategy ConnectionStrategy, log zerolog.Logger) *Client {
	c := &Client{
		d:        d,
		strategy: strategy,
		log:      log,
		subs:     make(map[domain.Topic]string),
	}
	c.cancel = d.OnRequest(c.handleRequest)
	return c
}

// Connect opens the socket. Forbidden under the Automatic strategy.
func (c *Client) Connect(ctx context.Context) error { return c.strategy.HandleConnect(ctx) }

// Disconnect closes the socket. Forbidden under the Automatic strategy.
func (c *Client) Disconnect() error { return c.strategy.HandleDisconnect() }

// Strategy exposes the connection strategy for lifecycle signals.
func (c *Client) Strategy() ConnectionStrategy { return c.strategy }

// IsConnected reports whether the socket is open.
func (c *Client) IsConnected() bool { return c.d.IsConnected() }

// Close stops background work and closes the socket.
func (c *Client) Close() error {
	c.cancel()
	err := c.strategy.Close()
	c.d.Close()
	return err
}

// Publish sends message on topic and waits for the relay ack.
func (c *Client) Publish(ctx context.Context, topic domain.Topic, message string, opts domain.PublishOptions) error {
	var ok bool
	return c.d.Call(ctx, MethodPublish, PublishParams{
		Topic:   topic,
		Message: message,
		TTL:     opts.TTL,
		Prompt:  opts.Prompt,
		Tag:     opts.Tag,
	}, &ok)
}

// Subscribe subscribes to topic and returns the relay's subscription id.
func (c *Client) Subscribe(ctx context.Context, topic domain.Topic) (string, error) {
	var id string
	if err := c.d.Call(ctx, MethodSubscribe, SubscribeParams{Topic: topic}, &id); err != nil {
		return "", err
	}
	c.mu.Lock()
	c.subs[topic] = id
	c.mu.Unlock()
	return id, nil
}

// Unsubscribe drops the subscription for topic. Unknown topics are a no-op.
func (c *Client) Unsubscribe(ctx context.Context, topic domain.Topic) error {
	c.mu.Lock()
	id, ok := c.subs[topic]
	c.mu.Unlock()
	if !ok {
		return nil
	}
	var done bool
	if err := c.d.Call(ctx, MethodUnsubscribe, UnsubscribeParams{Topic: topic, ID: id}, &done); err != nil {
		return err
	}
	c.mu.Lock()
	if c.subs[topic] == id {
		delete(c.subs, topic)
	}
	c.mu.Unlock()
	return nil
}

// BatchSubscribe subscribes to topics in chunks of MaxBatchTopics, sent
// concurrently. The returned ids are in topic order.
func (c *Client) BatchSubscribe(ctx context.Context, topics []domain.Topic) ([]string, error) {
	if len(topics) == 0 {
		return nil, nil
	}
	var chunks [][]domain.Topic
	for start := 0; start < len(topics); start += MaxBatchTopics {
		end := min(start+MaxBatchTopics, len(topics))
		chunks = append(chunks, topics[start:end])
	}

	results := make([][]string, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		g.Go(func() error {
			var ids []string
			if err := c.d.Call(gctx, MethodBatchSubscribe, BatchSubscribeParams{Topics: chunk}, &ids); err != nil {
				return err
			}
			if len(ids) != len(chunk) {
				return fmt.Errorf("%s: got %d ids for %d topics", MethodBatchSubscribe, len(ids), len(chunk))
			}
			results[i] = ids
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(topics))
	c.mu.Lock()
	for i, chunk := range chunks {
		for j, topic := range chunk {
			c.subs[topic] = results[i][j]
		}
		out = append(out, results[i]...)
	}
	c.mu.Unlock()
	return out, nil
}

// OnMessage registers a handler for messages pushed on subscribed topics.
func (c *Client) OnMessage(fn func(domain.RelayMessage)) (cancel func()) {
	return c.messages.On(fn)
}

// OnConnectionStatus registers a handler for connection changes.
func (c *Client) OnConnectionStatus(fn func(domain.ConnectionStatus)) (cancel func()) {
	return c.d.OnConnectionStatus(fn)
}

// handleRequest runs on the dispatch goroutine. Pushes are acked before
// listeners see them.
func (c *Client) handleRequest(req jsonrpc.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()

	if req.Method != MethodSubscription {
		resp := jsonrpc.NewErrorResponse(req.ID, jsonrpc.CodeMethodNotFound, "unsupported method "+req.Method)
		if err := c.d.Respond(ctx, resp); err != nil {
			c.log.Debug().Err(err).Msg("relay error response failed")
		}
		return
	}

	var p SubscriptionParams
	if err := req.Params.Decode(&p); err != nil {
		resp := jsonrpc.NewErrorResponse(req.ID, jsonrpc.CodeInvalidParams, err.Error())
		_ = c.d.Respond(ctx, resp)
		return
	}
	ack, _ := jsonrpc.NewResult(req.ID, true)
	if err := c.d.Respond(ctx, ack); err != nil {
		c.log.Debug().Err(err).Str("topic", p.Data.Topic).Msg("relay ack failed")
	}

	c.messages.Emit(domain.RelayMessage{
		SubscriptionID: p.ID,
		Topic:          p.Data.Topic,
		Message:        p.Data.Message,
		PublishedAt:    time.UnixMilli(p.Data.PublishedAt),
		Tag:            p.Data.Tag,
		Attestation:    p.Data.Attestation,
	})
}

// Compile-time assertion that Client implements domain.RelayClient.
var _ domain.RelayClient = (*Client)(nil)
