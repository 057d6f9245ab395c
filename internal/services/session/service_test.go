package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"walletconnect/internal/crypto"
	"walletconnect/internal/domain"
	domaintypes "walletconnect/internal/domain/types"
	"walletconnect/internal/protocol/jsonrpc"
	"walletconnect/internal/protocol/methods"
	"walletconnect/internal/relay"
	"walletconnect/internal/relay/relaytest"
	"walletconnect/internal/services/history"
	"walletconnect/internal/services/kms"
	"walletconnect/internal/services/networking"
	"walletconnect/internal/services/serializer"
	"walletconnect/internal/services/session"
	"walletconnect/internal/store"
)

type node struct {
	peer     *relaytest.Peer
	kms      *kms.Service
	ser      *serializer.Service
	net      *networking.Service
	sessions *session.Service
}

func newNode(t *testing.T, hub *relaytest.Hub, name string) *node {
	t.Helper()
	peer := hub.Peer(name)
	k := kms.New(store.NewMemoryKeychain())
	ser := serializer.New(k)
	hist := history.New(store.NewHistoryFileStore(""))
	net := networking.New(peer, ser, hist, methods.Default(), zerolog.Nop())
	svc := session.New(store.NewSessionFileStore(""), k, net, hist, nil, zerolog.Nop())
	t.Cleanup(func() {
		svc.Close()
		net.Close()
		peer.Close()
	})
	return &node{peer: peer, kms: k, ser: ser, net: net, sessions: svc}
}

func evmNamespaces(accounts ...string) domain.Namespaces {
	return domain.Namespaces{
		"eip155": {
			Chains:   []string{"eip155:1", "eip155:137"},
			Accounts: accounts,
			Methods:  []string{"eth_sendTransaction", "personal_sign"},
			Events:   []string{"accountsChanged", "chainChanged"},
		},
	}
}

// settle installs one session between a controller and a non-controller
// expiring in an hour.
func settle(t *testing.T, controller, other *node) domain.Topic {
	t.Helper()
	key, err := crypto.RandomSymmetricKey()
	if err != nil {
		t.Fatalf("RandomSymmetricKey: %v", err)
	}
	topic := crypto.TopicFromKey(key)
	expiry := time.Now().Add(time.Hour).Unix()
	ns := evmNamespaces("eip155:1:0xab16a96d359ec26a11e2c2b3d8f8b8942d5bfcdb")

	for _, n := range []*node{controller, other} {
		if err := n.kms.SetSymmetricKey(key, topic); err != nil {
			t.Fatalf("SetSymmetricKey: %v", err)
		}
		err := n.sessions.Settle(context.Background(), domain.Session{
			Topic:            topic,
			Relay:            domain.RelayProtocolOptions{Protocol: "irn"},
			Namespaces:       ns,
			Expiry:           expiry,
			Acknowledged:     true,
			SelfIsController: n == controller,
		})
		if err != nil {
			t.Fatalf("Settle: %v", err)
		}
	}
	return topic
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

func near(got, want time.Time) bool {
	d := got.Sub(want)
	return d > -5*time.Second && d < 5*time.Second
}

func TestExtend_EndToEnd(t *testing.T) {
	hub := relaytest.NewHub()
	wallet, app := newNode(t, hub, "wallet"), newNode(t, hub, "app")
	topic := settle(t, wallet, app)

	appExtended := make(chan session.ExtendEvent, 1)
	app.sessions.OnExtend(func(e session.ExtendEvent) { appExtended <- e })
	walletExtended := make(chan session.ExtendEvent, 1)
	wallet.sessions.OnExtend(func(e session.ExtendEvent) { walletExtended <- e })

	want := time.Now().Add(86400 * time.Second)
	if err := wallet.sessions.Extend(context.Background(), topic, 86400*time.Second); err != nil {
		t.Fatalf("Extend: %v", err)
	}

	if e := wait(t, appExtended, "non-controller extend"); e.Topic != topic || !near(e.Expiry, want) {
		t.Fatalf("non-controller event %+v, want expiry near %s", e, want)
	}
	if e := wait(t, walletExtended, "controller extend callback"); e.Topic != topic || !near(e.Expiry, want) {
		t.Fatalf("controller event %+v, want expiry near %s", e, want)
	}
	for name, n := range map[string]*node{"wallet": wallet, "app": app} {
		s, ok, err := n.sessions.Get(topic)
		if err != nil || !ok {
			t.Fatalf("%s Get: ok=%v err=%v", name, ok, err)
		}
		if !near(s.ExpiryDate(), want) {
			t.Fatalf("%s expiry %s, want near %s", name, s.ExpiryDate(), want)
		}
	}
}

func TestUpdate_EndToEnd(t *testing.T) {
	hub := relaytest.NewHub()
	wallet, app := newNode(t, hub, "wallet"), newNode(t, hub, "app")
	topic := settle(t, wallet, app)

	appUpdated := make(chan session.UpdateEvent, 1)
	app.sessions.OnUpdate(func(e session.UpdateEvent) { appUpdated <- e })
	walletUpdated := make(chan session.UpdateEvent, 1)
	wallet.sessions.OnUpdate(func(e session.UpdateEvent) { walletUpdated <- e })

	ns := evmNamespaces("eip155:1:0xab16a96d359ec26a11e2c2b3d8f8b8942d5bfcdb", "eip155:137:0x0000000000000000000000000000000000000001")
	if err := wallet.sessions.Update(context.Background(), topic, ns); err != nil {
		t.Fatalf("Update: %v", err)
	}
	// Nothing is committed on the controller before the peer answers.
	wait(t, appUpdated, "non-controller update")
	wait(t, walletUpdated, "controller commit")

	for name, n := range map[string]*node{"wallet": wallet, "app": app} {
		s, _, _ := n.sessions.Get(topic)
		if !reflect.DeepEqual(s.Namespaces, ns) {
			t.Fatalf("%s namespaces %+v, want %+v", name, s.Namespaces, ns)
		}
		if s.Timestamp == 0 {
			t.Fatalf("%s timestamp not recorded", name)
		}
	}
}

// rpcError sends method from n with params and returns the peer's error
// code, or 0 for success.
func rpcError(t *testing.T, n *node, topic domain.Topic, m methods.Method, params any) int {
	t.Helper()
	got := make(chan jsonrpc.Response, 1)
	cancel := n.net.OnResponse(m, func(r domain.InboundResponse) { got <- r.Response })
	defer cancel()
	if _, err := n.net.Request(context.Background(), topic, m, params); err != nil {
		t.Fatalf("Request: %v", err)
	}
	resp := wait(t, got, "response")
	if !resp.IsError() {
		return 0
	}
	return resp.Error.Code
}

func TestUpdate_FromNonControllerRejected(t *testing.T) {
	hub := relaytest.NewHub()
	wallet, app := newNode(t, hub, "wallet"), newNode(t, hub, "app")
	topic := settle(t, wallet, app)

	if err := app.sessions.Update(context.Background(), topic, evmNamespaces("eip155:1:0x01")); !errors.Is(err, session.ErrUnauthorizedUpdate) {
		t.Fatalf("local Update: want ErrUnauthorizedUpdate, got %v", err)
	}

	// Bypass the local check and send the request anyway.
	code := rpcError(t, app, topic, methods.SessionUpdate, map[string]any{"namespaces": evmNamespaces("eip155:1:0x01")})
	if code != domaintypes.ReasonUnauthorizedUpdateRequest.Code {
		t.Fatalf("want code %d, got %d", domaintypes.ReasonUnauthorizedUpdateRequest.Code, code)
	}

	code = rpcError(t, app, topic, methods.SessionExtend, map[string]any{"expiry": time.Now().Add(2 * time.Hour).Unix()})
	if code != domaintypes.ReasonUnauthorizedExtendRequest.Code {
		t.Fatalf("want code %d, got %d", domaintypes.ReasonUnauthorizedExtendRequest.Code, code)
	}

	s, _, _ := wallet.sessions.Get(topic)
	if len(s.Namespaces["eip155"].Accounts) != 1 || s.Namespaces["eip155"].Accounts[0] == "eip155:1:0x01" {
		t.Fatalf("controller session changed: %+v", s.Namespaces)
	}
}

func TestUpdate_InvalidNamespacesRejected(t *testing.T) {
	hub := relaytest.NewHub()
	wallet, app := newNode(t, hub, "wallet"), newNode(t, hub, "app")
	topic := settle(t, wallet, app)

	bad := domain.Namespaces{"eip155": {Methods: []string{"eth_sign"}, Events: []string{}}}
	if err := wallet.sessions.Update(context.Background(), topic, bad); !errors.Is(err, session.ErrInvalidNamespaces) {
		t.Fatalf("local Update: want ErrInvalidNamespaces, got %v", err)
	}

	cases := map[string]any{
		"no accounts":    map[string]any{"namespaces": bad},
		"bad account":    map[string]any{"namespaces": evmNamespaces("eip155:1")},
		"missing params": map[string]any{},
	}
	for name, params := range cases {
		if code := rpcError(t, wallet, topic, methods.SessionUpdate, params); code != domaintypes.ReasonInvalidUpdateRequest.Code {
			t.Fatalf("%s: want code %d, got %d", name, domaintypes.ReasonInvalidUpdateRequest.Code, code)
		}
	}
}

func TestExtend_InvalidExpiryRejected(t *testing.T) {
	hub := relaytest.NewHub()
	wallet, app := newNode(t, hub, "wallet"), newNode(t, hub, "app")
	topic := settle(t, wallet, app)
	ctx := context.Background()

	if err := wallet.sessions.Extend(ctx, topic, 8*24*time.Hour); !errors.Is(err, session.ErrInvalidExtendExpiry) {
		t.Fatalf("want ErrInvalidExtendExpiry, got %v", err)
	}
	if err := wallet.sessions.Extend(ctx, topic, time.Minute); !errors.Is(err, session.ErrInvalidExtendExpiry) {
		t.Fatalf("shortening: want ErrInvalidExtendExpiry, got %v", err)
	}
	if err := app.sessions.Extend(ctx, topic, time.Hour); !errors.Is(err, session.ErrUnauthorizedExtend) {
		t.Fatalf("want ErrUnauthorizedExtend, got %v", err)
	}

	tooFar := time.Now().Add(8 * 24 * time.Hour).Unix()
	if code := rpcError(t, wallet, topic, methods.SessionExtend, map[string]any{"expiry": tooFar}); code != domaintypes.ReasonInvalidExtendRequest.Code {
		t.Fatalf("want code %d, got %d", domaintypes.ReasonInvalidExtendRequest.Code, code)
	}
}

func TestUpdate_StaleTimestampIgnored(t *testing.T) {
	hub := relaytest.NewHub()
	wallet, app := newNode(t, hub, "wallet"), newNode(t, hub, "app")
	topic := settle(t, wallet, app)

	var mu sync.Mutex
	var events []session.UpdateEvent
	app.sessions.OnUpdate(func(e session.UpdateEvent) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	fresh := evmNamespaces("eip155:1:0x0000000000000000000000000000000000000002")
	if code := rpcError(t, wallet, topic, methods.SessionUpdate, map[string]any{"namespaces": fresh}); code != 0 {
		t.Fatalf("fresh update rejected with %d", code)
	}
	before, _, _ := app.sessions.Get(topic)

	stale := jsonrpc.Request{
		JSONRPC: jsonrpc.Version,
		ID:      jsonrpc.IDAt(time.Now().Add(-time.Hour)),
		Method:  methods.SessionUpdate.Name,
		Params:  jsonrpc.MustValue(map[string]any{"namespaces": evmNamespaces("eip155:1:0x0000000000000000000000000000000000000003")}),
	}
	msg, err := wallet.ser.Serialize(topic, stale, domain.SerializeOptions{Type: domain.EnvelopeType0})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	published := len(app.peer.Published())
	app.peer.Inject(topic, msg)

	deadline := time.Now().Add(5 * time.Second)
	for len(app.peer.Published()) == published {
		if time.Now().After(deadline) {
			t.Fatal("stale update got no response")
		}
		time.Sleep(5 * time.Millisecond)
	}
	out := app.peer.Published()[published]
	var raw json.RawMessage
	if _, err := app.ser.Deserialize(topic, out.Message, &raw); err != nil {
		t.Fatalf("Deserialize response: %v", err)
	}
	_, resp, err := jsonrpc.Parse(raw)
	if err != nil || resp == nil || resp.ID != stale.ID || resp.IsError() {
		t.Fatalf("want success response to stale update, got %+v err=%v", resp, err)
	}

	time.Sleep(50 * time.Millisecond)
	after, _, _ := app.sessions.Get(topic)
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("stale update changed the session:\nbefore %+v\nafter  %+v", before, after)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 {
		t.Fatalf("want exactly one update event, got %d", len(events))
	}
}

func TestPingAndDisconnect(t *testing.T) {
	hub := relaytest.NewHub()
	wallet, app := newNode(t, hub, "wallet"), newNode(t, hub, "app")
	topic := settle(t, wallet, app)
	ctx := context.Background()

	pinged := make(chan domain.Topic, 1)
	app.sessions.OnPing(func(tp domain.Topic) { pinged <- tp })
	if err := app.sessions.Ping(ctx, topic); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if tp := wait(t, pinged, "ping"); tp != topic {
		t.Fatalf("ping for %s", tp)
	}

	deleted := make(chan session.DeleteEvent, 1)
	wallet.sessions.OnDelete(func(e session.DeleteEvent) { deleted <- e })
	if err := app.sessions.Disconnect(ctx, topic); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	e := wait(t, deleted, "delete")
	if e.Topic != topic || e.Reason.Code != domaintypes.ReasonUserDisconnected.Code {
		t.Fatalf("unexpected delete event %+v", e)
	}
	for name, n := range map[string]*node{"wallet": wallet, "app": app} {
		if _, ok, _ := n.sessions.Get(topic); ok {
			t.Fatalf("%s still has the session", name)
		}
		if _, ok, _ := n.kms.GetSymmetricKey(topic); ok {
			t.Fatalf("%s still has the key", name)
		}
	}
	if err := app.sessions.Ping(ctx, topic); !errors.Is(err, session.ErrNoSessionForTopic) {
		t.Fatalf("want ErrNoSessionForTopic, got %v", err)
	}
}

func TestExpiry_LazyPurge(t *testing.T) {
	hub := relaytest.NewHub()
	wallet, app := newNode(t, hub, "wallet"), newNode(t, hub, "app")
	topic := settle(t, wallet, app)

	expired := make(chan domain.Session, 1)
	app.sessions.OnExpired(func(s domain.Session) { expired <- s })
	app.sessions.SetClock(func() time.Time { return time.Now().Add(2 * time.Hour) })

	list, err := app.sessions.List()
	if err != nil || len(list) != 0 {
		t.Fatalf("List: %v %v", list, err)
	}
	if s := wait(t, expired, "expiry"); s.Topic != topic {
		t.Fatalf("expired %s", s.Topic)
	}
	if _, ok, _ := app.kms.GetSymmetricKey(topic); ok {
		t.Fatal("key survived expiry")
	}
}

func TestSettle_RequiresKeyAndValidNamespaces(t *testing.T) {
	hub := relaytest.NewHub()
	n := newNode(t, hub, "wallet")
	topic, err := crypto.RandomTopic()
	if err != nil {
		t.Fatalf("RandomTopic: %v", err)
	}
	s := domain.Session{Topic: topic, Namespaces: evmNamespaces("eip155:1:0xab")}
	if err := n.sessions.Settle(context.Background(), s); !errors.Is(err, session.ErrMissingKey) {
		t.Fatalf("want ErrMissingKey, got %v", err)
	}
	if _, err := n.kms.CreateSymmetricKey(topic); err != nil {
		t.Fatalf("CreateSymmetricKey: %v", err)
	}
	s.Namespaces = domain.Namespaces{}
	if err := n.sessions.Settle(context.Background(), s); !errors.Is(err, session.ErrInvalidNamespaces) {
		t.Fatalf("want ErrInvalidNamespaces, got %v", err)
	}
}

func TestSettle_ControllerKeyDecidesRole(t *testing.T) {
	hub := relaytest.NewHub()
	wallet, app := newNode(t, hub, "wallet"), newNode(t, hub, "app")
	key, err := crypto.RandomSymmetricKey()
	if err != nil {
		t.Fatalf("RandomSymmetricKey: %v", err)
	}
	topic := crypto.TopicFromKey(key)
	walletKey, appKey := strings.Repeat("a1", 32), strings.Repeat("b2", 32)

	// The flags are deliberately wrong; Controller must win.
	sides := []struct {
		n         *node
		self      string
		peer      string
		flag      bool
		wantOwner bool
	}{
		{wallet, walletKey, appKey, false, true},
		{app, appKey, walletKey, true, false},
	}
	for _, side := range sides {
		if err := side.n.kms.SetSymmetricKey(key, topic); err != nil {
			t.Fatalf("SetSymmetricKey: %v", err)
		}
		err := side.n.sessions.Settle(context.Background(), domain.Session{
			Topic:            topic,
			Self:             domain.Participant{PublicKey: side.self},
			Peer:             domain.Participant{PublicKey: side.peer},
			Controller:       walletKey,
			Namespaces:       evmNamespaces("eip155:1:0xab16a96d359ec26a11e2c2b3d8f8b8942d5bfcdb"),
			SelfIsController: side.flag,
		})
		if err != nil {
			t.Fatalf("Settle: %v", err)
		}
		got, ok, err := side.n.sessions.Get(topic)
		if err != nil || !ok {
			t.Fatalf("Get: ok=%v err=%v", ok, err)
		}
		if got.SelfIsController != side.wantOwner || got.PeerIsController() == side.wantOwner {
			t.Fatalf("self=%v peer=%v, want self controller %v", got.SelfIsController, got.PeerIsController(), side.wantOwner)
		}
	}

	if err := app.sessions.Update(context.Background(), topic, evmNamespaces("eip155:1:0x01")); !errors.Is(err, session.ErrUnauthorizedUpdate) {
		t.Fatalf("app Update: want ErrUnauthorizedUpdate, got %v", err)
	}

	other, err := crypto.RandomTopic()
	if err != nil {
		t.Fatalf("RandomTopic: %v", err)
	}
	if _, err := wallet.kms.CreateSymmetricKey(other); err != nil {
		t.Fatalf("CreateSymmetricKey: %v", err)
	}
	err = wallet.sessions.Settle(context.Background(), domain.Session{
		Topic:      other,
		Self:       domain.Participant{PublicKey: walletKey},
		Peer:       domain.Participant{PublicKey: appKey},
		Controller: strings.Repeat("c3", 32),
		Namespaces: evmNamespaces("eip155:1:0xab"),
	})
	if !errors.Is(err, session.ErrInvalidSession) {
		t.Fatalf("stranger controller: want ErrInvalidSession, got %v", err)
	}
}

func TestSettle_SubscribeFailureCanRetry(t *testing.T) {
	hub := relaytest.NewHub()
	n := newNode(t, hub, "wallet")
	topic, err := crypto.RandomTopic()
	if err != nil {
		t.Fatalf("RandomTopic: %v", err)
	}
	if _, err := n.kms.CreateSymmetricKey(topic); err != nil {
		t.Fatalf("CreateSymmetricKey: %v", err)
	}
	s := domain.Session{Topic: topic, Namespaces: evmNamespaces("eip155:1:0xab"), SelfIsController: true}

	n.peer.SetConnected(false)
	if err := n.sessions.Settle(context.Background(), s); !errors.Is(err, relay.ErrNotConnected) {
		t.Fatalf("offline Settle: want ErrNotConnected, got %v", err)
	}
	if _, ok, err := n.sessions.Get(topic); err != nil || ok {
		t.Fatalf("session kept after failed subscribe: ok=%v err=%v", ok, err)
	}

	n.peer.SetConnected(true)
	if err := n.sessions.Settle(context.Background(), s); err != nil {
		t.Fatalf("retry Settle: %v", err)
	}
	if _, ok, err := n.sessions.Get(topic); err != nil || !ok {
		t.Fatalf("Get after retry: ok=%v err=%v", ok, err)
	}
}
