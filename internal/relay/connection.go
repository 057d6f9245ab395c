package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	domaintypes "walletconnect/internal/domain/types"
)

// DefaultBackgroundGrace is how long the Automatic strategy keeps the socket
// open after the app moves to the background.
const DefaultBackgroundGrace = 30 * time.Second

// ErrManualSocketConnectionForbidden is returned by explicit connect or
// disconnect calls under the Automatic strategy.
var ErrManualSocketConnectionForbidden = domaintypes.NewError(domaintypes.KindTransport,
	"relay: manual socket connection forbidden under automatic strategy")

var errPaused = errors.New("relay: connection paused")

// ConnectionStrategy decides when the socket connects.
type ConnectionStrategy interface {
	HandleConnect(ctx context.Context) error
	HandleDisconnect() error
	HandleNetworkSatisfied()
	HandleNetworkUnsatisfied()
	HandleForeground()
	HandleBackground()
	Close() error
}

// Manual connects and disconnects only on explicit calls. Lifecycle and
// network signals are ignored.
type Manual struct {
	socket Socket
}

func NewManual(socket Socket) *Manual { return &Manual{socket: socket} }

func (m *Manual) HandleConnect(ctx context.Context) error { return m.socket.Connect(ctx) }
func (m *Manual) HandleDisconnect() error                 { return m.socket.Disconnect() }
func (m *Manual) HandleNetworkSatisfied()                 {}
func (m *Manual) HandleNetworkUnsatisfied()               {}
func (m *Manual) HandleForeground()                       {}
func (m *Manual) HandleBackground()                       {}
func (m *Manual) Close() error                            { return m.socket.Disconnect() }

// Automatic keeps the socket connected while the app is in the foreground
// and the network is reachable, reconnecting with exponential backoff after
// unexpected drops. Explicit connect and disconnect are forbidden.
type Automatic struct {
	socket Socket
	log    zerolog.Logger
	grace  time.Duration

	// NewBackOff builds the reconnect schedule; replaceable in tests.
	NewBackOff func() backoff.BackOff

	mu           sync.Mutex
	ctx          context.Context
	cancel       context.CancelFunc
	background   bool
	offline      bool
	reconnecting bool
	graceTimer   *time.Timer
	unsubscribe  func()
}

// NewAutomatic returns an idle strategy; call Start to begin connecting.
func NewAutomatic(socket Socket, d *Dispatcher, log zerolog.Logger) *Automatic {
	a := &Automatic{
		socket: socket,
		log:    log,
		grace:  DefaultBackgroundGrace,
		NewBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = 30 * time.Second
			b.MaxElapsedTime = 0
			return b
		},
	}
	a.unsubscribe = d.onSocketClosed(a.socketClosed)
	return a
}

// Start begins connecting in the background. ctx bounds the strategy's
// lifetime.
func (a *Automatic) Start(ctx context.Context) {
	a.mu.Lock()
	a.ctx, a.cancel = context.WithCancel(ctx)
	a.mu.Unlock()
	a.reconnect()
}

func (a *Automatic) HandleConnect(context.Context) error { return ErrManualSocketConnectionForbidden }
func (a *Automatic) HandleDisconnect() error             { return ErrManualSocketConnectionForbidden }

func (a *Automatic) HandleNetworkSatisfied() {
	a.mu.Lock()
	a.offline = false
	a.mu.Unlock()
	a.reconnect()
}

func (a *Automatic) HandleNetworkUnsatisfied() {
	a.mu.Lock()
	a.offline = true
	a.mu.Unlock()
	_ = a.socket.Disconnect()
}

func (a *Automatic) HandleForeground() {
	a.mu.Lock()
	a.background = false
	if a.graceTimer != nil {
		a.graceTimer.Stop()
		a.graceTimer = nil
	}
	a.mu.Unlock()
	a.reconnect()
}

// HandleBackground disconnects once the grace period passes without a
// return to the foreground.
func (a *Automatic) HandleBackground() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.background = true
	if a.graceTimer != nil {
		return
	}
	a.graceTimer = time.AfterFunc(a.grace, func() {
		a.mu.Lock()
		still := a.background
		a.graceTimer = nil
		a.mu.Unlock()
		if still {
			a.log.Debug().Msg("background grace elapsed; disconnecting relay")
			_ = a.socket.Disconnect()
		}
	})
}

// Close stops reconnecting and disconnects.
func (a *Automatic) Close() error {
	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
	}
	if a.graceTimer != nil {
		a.graceTimer.Stop()
		a.graceTimer = nil
	}
	unsubscribe := a.unsubscribe
	a.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
	return a.socket.Disconnect()
}

func (a *Automatic) shouldConnect() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ctx != nil && a.ctx.Err() == nil && !a.background && !a.offline
}

func (a *Automatic) socketClosed(err error) {
	if err == nil {
		return
	}
	a.log.Warn().Err(err).Msg("relay connection lost")
	a.reconnect()
}

// reconnect starts at most one backoff loop.
func (a *Automatic) reconnect() {
	if !a.shouldConnect() || a.socket.IsConnected() {
		return
	}
	a.mu.Lock()
	if a.reconnecting {
		a.mu.Unlock()
		return
	}
	a.reconnecting = true
	ctx := a.ctx
	b := a.NewBackOff()
	a.mu.Unlock()

	go func() {
		defer func() {
			a.mu.Lock()
			a.reconnecting = false
			a.mu.Unlock()
		}()
		op := func() error {
			if !a.shouldConnect() {
				return backoff.Permanent(errPaused)
			}
			dialCtx, cancel := context.WithTimeout(ctx, writeWait)
			defer cancel()
			return a.socket.Connect(dialCtx)
		}
		notify := func(err error, next time.Duration) {
			a.log.Debug().Err(err).Dur("retry_in", next).Msg("relay connect failed")
		}
		if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil && !errors.Is(err, errPaused) {
			a.log.Debug().Err(err).Msg("relay reconnect stopped")
		}
	}()
}

// Compile-time assertions for both strategies.
var (
	_ ConnectionStrategy = (*Manual)(nil)
	_ ConnectionStrategy = (*Automatic)(nil)
)
