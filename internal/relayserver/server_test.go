package relayserver_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"walletconnect/internal/crypto"
	"walletconnect/internal/domain"
	"walletconnect/internal/relay"
	"walletconnect/internal/relayserver"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func serve(t *testing.T, cfg relayserver.Config) (*relayserver.Server, string) {
	t.Helper()
	cfg.Logger = zerolog.Nop()
	srv := relayserver.New(cfg)
	hs := httptest.NewServer(srv)
	t.Cleanup(hs.Close)
	return srv, "ws" + strings.TrimPrefix(hs.URL, "http")
}

func connect(t *testing.T, opts relay.Options) (*relay.Client, error) {
	t.Helper()
	opts.Manual = true
	opts.Logger = zerolog.Nop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := relay.Dial(ctx, opts)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, c.Connect(ctx)
}

func topic(t *testing.T) domain.Topic {
	t.Helper()
	tp, err := crypto.RandomTopic()
	if err != nil {
		t.Fatalf("RandomTopic: %v", err)
	}
	return tp
}

func TestMailbox_FlushedOnSubscribe(t *testing.T) {
	_, url := serve(t, relayserver.Config{})
	alice, err := connect(t, relay.Options{URL: url})
	if err != nil {
		t.Fatalf("connect alice: %v", err)
	}
	bob, err := connect(t, relay.Options{URL: url})
	if err != nil {
		t.Fatalf("connect bob: %v", err)
	}

	tp := topic(t)
	ctx := context.Background()
	for _, msg := range []string{"01", "02"} {
		if err := alice.Publish(ctx, tp, msg, domain.PublishOptions{TTL: 300}); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	got := make(chan string, 2)
	bob.OnMessage(func(m domain.RelayMessage) { got <- m.Message })
	if _, err := bob.Subscribe(ctx, tp); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	for _, want := range []string{"01", "02"} {
		select {
		case m := <-got:
			if m != want {
				t.Fatalf("want %s, got %s", want, m)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("mailbox message %s not delivered", want)
		}
	}
}

func TestMailbox_NotEchoedToSender(t *testing.T) {
	srv, url := serve(t, relayserver.Config{})
	alice, err := connect(t, relay.Options{URL: url})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	tp := topic(t)
	ctx := context.Background()

	got := make(chan string, 1)
	alice.OnMessage(func(m domain.RelayMessage) { got <- m.Message })
	if err := alice.Publish(ctx, tp, "01", domain.PublishOptions{TTL: 300}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if _, err := alice.Subscribe(ctx, tp); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	select {
	case m := <-got:
		t.Fatalf("sender received its own message %s", m)
	case <-time.After(200 * time.Millisecond):
	}
	if srv.Subscribers(tp) != 1 {
		t.Fatalf("want 1 subscriber, got %d", srv.Subscribers(tp))
	}
}

func TestMailbox_ExpiresAfterTTL(t *testing.T) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	_, url := serve(t, relayserver.Config{Now: clk.Now})
	alice, err := connect(t, relay.Options{URL: url})
	if err != nil {
		t.Fatalf("connect alice: %v", err)
	}
	bob, err := connect(t, relay.Options{URL: url})
	if err != nil {
		t.Fatalf("connect bob: %v", err)
	}

	tp := topic(t)
	ctx := context.Background()
	if err := alice.Publish(ctx, tp, "01", domain.PublishOptions{TTL: 30}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	clk.Advance(31 * time.Second)

	got := make(chan string, 1)
	bob.OnMessage(func(m domain.RelayMessage) { got <- m.Message })
	if _, err := bob.Subscribe(ctx, tp); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	select {
	case m := <-got:
		t.Fatalf("expired message delivered: %s", m)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestPublish_RejectsInvalidParams(t *testing.T) {
	_, url := serve(t, relayserver.Config{})
	c, err := connect(t, relay.Options{URL: url})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	ctx := context.Background()
	if err := c.Publish(ctx, "not-a-topic", "01", domain.PublishOptions{TTL: 30}); err == nil {
		t.Fatal("want error for invalid topic")
	}
	if err := c.Publish(ctx, topic(t), "01", domain.PublishOptions{TTL: 0}); err == nil {
		t.Fatal("want error for zero ttl")
	}
}

func TestAuth_RequiresToken(t *testing.T) {
	_, url := serve(t, relayserver.Config{VerifyAuth: true})

	if _, err := connect(t, relay.Options{URL: url}); err == nil {
		t.Fatal("want connect without token to fail")
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if _, err := connect(t, relay.Options{URL: url, ProjectID: "demo", SigningKey: priv}); err != nil {
		t.Fatalf("connect with token: %v", err)
	}
}
