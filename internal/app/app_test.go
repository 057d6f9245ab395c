package app_test

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"walletconnect/internal/app"
	"walletconnect/internal/crypto"
	"walletconnect/internal/domain"
	"walletconnect/internal/relayserver"
	"walletconnect/internal/services/session"
)

func startRelay(t *testing.T) (*relayserver.Server, string) {
	t.Helper()
	srv := relayserver.New(relayserver.Config{VerifyAuth: true, Logger: zerolog.Nop()})
	hs := httptest.NewServer(srv)
	t.Cleanup(hs.Close)
	return srv, "ws" + strings.TrimPrefix(hs.URL, "http")
}

func openWire(t *testing.T, url string) *app.Wire {
	t.Helper()
	cfg := app.DefaultConfig()
	cfg.DataDir = ""
	cfg.RelayURL = url
	cfg.Manual = true
	cfg.AckTimeout = 5 * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	w, err := app.NewWire(ctx, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewWire: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return w
}

func wait[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
	var zero T
	return zero
}

func TestPairingOverRelay(t *testing.T) {
	_, url := startRelay(t)
	dapp, wallet := openWire(t, url), openWire(t, url)
	ctx := context.Background()

	u, err := dapp.Pairings.Create(ctx)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	p, err := wallet.Pairings.Pair(ctx, u)
	if err != nil {
		t.Fatalf("Pair: %v", err)
	}

	pinged := make(chan domain.Topic, 1)
	wallet.Pairings.OnPing(func(tp domain.Topic) { pinged <- tp })
	if err := wallet.Pairings.Ping(ctx, p.Topic); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if tp := wait(t, pinged, "pairing ping"); tp != p.Topic {
		t.Fatalf("ping for %s, want %s", tp, p.Topic)
	}
}

func TestSessionSurvivesReconnect(t *testing.T) {
	srv, url := startRelay(t)
	dapp, wallet := openWire(t, url), openWire(t, url)
	ctx := context.Background()

	key, err := crypto.RandomSymmetricKey()
	if err != nil {
		t.Fatalf("RandomSymmetricKey: %v", err)
	}
	topic := crypto.TopicFromKey(key)
	ns := domain.Namespaces{"eip155": {
		Chains:   []string{"eip155:1"},
		Accounts: []string{"eip155:1:0xab16a96d359ec26a11e2c2b3d8f8b8942d5bfcdb"},
		Methods:  []string{"personal_sign"},
		Events:   []string{"accountsChanged"},
	}}
	for _, w := range []*app.Wire{dapp, wallet} {
		if err := w.KMS.SetSymmetricKey(key, topic); err != nil {
			t.Fatalf("SetSymmetricKey: %v", err)
		}
		if err := w.Sessions.Settle(ctx, domain.Session{
			Topic:            topic,
			Namespaces:       ns,
			Acknowledged:     true,
			SelfIsController: w == wallet,
		}); err != nil {
			t.Fatalf("Settle: %v", err)
		}
	}

	if err := wallet.Relay.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if err := wallet.Relay.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for srv.Subscribers(topic) < 2 {
		if time.Now().After(deadline) {
			t.Fatal("session topic not resubscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	updated := make(chan session.UpdateEvent, 1)
	dapp.Sessions.OnUpdate(func(e session.UpdateEvent) { updated <- e })
	next := ns.Clone()
	n := next["eip155"]
	n.Accounts = append(n.Accounts, "eip155:1:0x0000000000000000000000000000000000000001")
	next["eip155"] = n
	if err := wallet.Sessions.Update(ctx, topic, next); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if e := wait(t, updated, "update"); len(e.Namespaces["eip155"].Accounts) != 2 {
		t.Fatalf("unexpected namespaces %+v", e.Namespaces)
	}
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "walletconnect.toml")
	body := `
relay_url = "ws://127.0.0.1:8080"
project_id = "abc123"
manual = true
ack_timeout = "5s"
passphrase = "Correct-Horse-42"

[metadata]
name = "test wallet"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := app.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	def := app.DefaultConfig()
	if cfg.RelayURL != "ws://127.0.0.1:8080" || cfg.ProjectID != "abc123" || !cfg.Manual {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.AckTimeout != 5*time.Second || cfg.PingInterval != def.PingInterval {
		t.Fatalf("durations: ack=%s ping=%s", cfg.AckTimeout, cfg.PingInterval)
	}
	if cfg.Metadata.Name != "test wallet" || cfg.Metadata.URL != def.Metadata.URL {
		t.Fatalf("metadata: %+v", cfg.Metadata)
	}
}

func TestConfigValidate(t *testing.T) {
	base := app.DefaultConfig()
	base.Passphrase = "Correct-Horse-42"
	if err := base.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	cases := map[string]func(*app.Config){
		"http relay":      func(c *app.Config) { c.RelayURL = "http://relay" },
		"weak passphrase": func(c *app.Config) { c.Passphrase = "password" },
		"no passphrase":   func(c *app.Config) { c.Passphrase = "" },
		"bad level":       func(c *app.Config) { c.LogLevel = "loud" },
		"zero ack":        func(c *app.Config) { c.AckTimeout = 0 },
	}
	for name, mutate := range cases {
		cfg := base
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: want error", name)
		}
	}

	mem := base
	mem.DataDir = ""
	mem.Passphrase = ""
	if err := mem.Validate(); err != nil {
		t.Fatalf("in-memory config without passphrase: %v", err)
	}
}
