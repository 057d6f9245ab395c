package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"walletconnect/internal/domain"
	"walletconnect/internal/logging"
	"walletconnect/internal/protocol/methods"
	"walletconnect/internal/relay"
	"walletconnect/internal/services/history"
	"walletconnect/internal/services/identity"
	"walletconnect/internal/services/kms"
	"walletconnect/internal/services/networking"
	"walletconnect/internal/services/pairing"
	"walletconnect/internal/services/resubscribe"
	"walletconnect/internal/services/serializer"
	"walletconnect/internal/services/session"
	"walletconnect/internal/store"
)

// Wire bundles all stores, services, and clients for the CLI.
type Wire struct {
	Config   Config
	Log      zerolog.Logger
	Stores   *store.Stores
	KMS      *kms.Service
	Identity *identity.Service
	History  *history.Service
	Relay    *relay.Client

	Networking  *networking.Service
	Resubscribe *resubscribe.Service
	Pairings    *pairing.Service
	Sessions    *session.Service
}

// NewWire constructs the dependency graph from cfg. Nothing touches the
// network until Start, except that the Automatic strategy begins connecting
// as soon as the relay client is built.
func NewWire(ctx context.Context, cfg Config, log zerolog.Logger) (*Wire, error) {
	stores, err := store.Open(cfg.DataDir, cfg.Passphrase)
	if err != nil {
		return nil, err
	}

	keys := kms.New(stores.Keychain)
	ids := identity.New(keys)
	signingKey, err := ids.SigningKey()
	if err != nil {
		return nil, fmt.Errorf("client key: %w", err)
	}
	hist := history.New(stores.History)

	rc, err := relay.Dial(ctx, relay.Options{
		URL:          cfg.RelayURL,
		ProjectID:    cfg.ProjectID,
		SigningKey:   signingKey,
		Manual:       cfg.Manual,
		PingInterval: cfg.PingInterval,
		AckTimeout:   cfg.AckTimeout,
		Logger:       logging.Component(log, "relay"),
	})
	if err != nil {
		return nil, err
	}

	net := networking.New(rc, serializer.New(keys), hist, methods.Default(), logging.Component(log, "networking"))
	resub := resubscribe.New(rc, stores.Pairings, stores.Sessions, logging.Component(log, "resubscribe"))
	pairings := pairing.New(stores.Pairings, keys, net, hist, logging.Component(log, "pairing"))
	sessions := session.New(stores.Sessions, keys, net, hist, pairings, logging.Component(log, "session"))

	return &Wire{
		Config:      cfg,
		Log:         log,
		Stores:      stores,
		KMS:         keys,
		Identity:    ids,
		History:     hist,
		Relay:       rc,
		Networking:  net,
		Resubscribe: resub,
		Pairings:    pairings,
		Sessions:    sessions,
	}, nil
}

// Start drops stale history and expired state, then connects when the
// relay is driven manually. Resubscription follows the connection.
func (w *Wire) Start(ctx context.Context) error {
	if err := w.History.RemoveOutdated(w.Config.HistoryMaxAge); err != nil {
		w.Log.Warn().Err(err).Msg("prune history")
	}
	if err := errors.Join(w.Pairings.Sweep(), w.Sessions.Sweep()); err != nil {
		w.Log.Warn().Err(err).Msg("sweep expired state")
	}
	if w.Config.Manual {
		if err := w.Relay.Connect(ctx); err != nil {
			return fmt.Errorf("connect relay: %w", err)
		}
	}
	return nil
}

// WaitConnected blocks until the relay socket is up or ctx is done.
func (w *Wire) WaitConnected(ctx context.Context) error {
	up := make(chan struct{}, 1)
	cancel := w.Relay.OnConnectionStatus(func(s domain.ConnectionStatus) {
		if s == domain.Connected {
			select {
			case up <- struct{}{}:
			default:
			}
		}
	})
	defer cancel()
	if w.Relay.IsConnected() {
		return nil
	}
	select {
	case <-up:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for relay: %w", ctx.Err())
	}
}

// Close stops every service and the relay client.
func (w *Wire) Close() error {
	w.Sessions.Close()
	w.Pairings.Close()
	w.Resubscribe.Close()
	w.Networking.Close()
	return w.Relay.Close()
}
