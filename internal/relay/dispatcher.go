package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"walletconnect/internal/domain"
	domaintypes "walletconnect/internal/domain/types"
	"walletconnect/internal/events"
	"walletconnect/internal/metrics"
	"walletconnect/internal/protocol/jsonrpc"
)

// DefaultAckTimeout bounds how long a call waits for the relay ack when the
// caller's context has no deadline.
const DefaultAckTimeout = 30 * time.Second

var (
	ErrNotConnected = domaintypes.NewError(domaintypes.KindTransport, "relay: not connected")
	ErrAckTimeout   = domaintypes.NewError(domaintypes.KindTransport, "relay: ack timeout")
	ErrRejected     = domaintypes.NewError(domaintypes.KindTransport, "relay: request rejected")
)

// Dispatcher frames irn JSON-RPC over a Socket.
//
// Relay acknowledgements are matched to calls through the pending map.
// Relay-initiated requests and connection status changes are queued and
// delivered in arrival order by one goroutine, so a handler may issue calls
// of its own without stalling the read loop.
type Dispatcher struct {
	socket     Socket
	ackTimeout time.Duration
	log        zerolog.Logger

	mu      sync.Mutex
	pending map[int64]chan jsonrpc.Response

	queue    *queue
	requests events.Stream[jsonrpc.Request]
	status   events.Stream[domain.ConnectionStatus]
	onClose  events.Stream[error]

	stopOnce sync.Once
}

// NewDispatcher wires itself to socket's handlers and starts the dispatch
// goroutine. ackTimeout <= 0 selects DefaultAckTimeout.
func NewDispatcher(socket Socket, ackTimeout time.Duration, log zerolog.Logger) *Dispatcher {
	if ackTimeout <= 0 {
		ackTimeout = DefaultAckTimeout
	}
	d := &Dispatcher{
		socket:     socket,
		ackTimeout: ackTimeout,
		log:        log,
		pending:    make(map[int64]chan jsonrpc.Response),
		queue:      newQueue(),
	}
	socket.SetHandlers(SocketHandlers{
		OnOpen:  func() { d.queue.push(domain.Connected) },
		OnText:  d.handleText,
		OnClose: d.handleClose,
	})
	go d.run()
	return d
}

// Close stops the dispatch goroutine. It does not close the socket.
func (d *Dispatcher) Close() {
	d.stopOnce.Do(d.queue.close)
}

// IsConnected reports whether the socket is open.
func (d *Dispatcher) IsConnected() bool { return d.socket.IsConnected() }

// Call sends method with params and waits for the relay's response. A
// non-nil out receives the decoded result.
func (d *Dispatcher) Call(ctx context.Context, method string, params, out any) error {
	if !d.socket.IsConnected() {
		return ErrNotConnected
	}
	req, err := jsonrpc.NewRequest(method, params)
	if err != nil {
		return err
	}
	b, err := json.Marshal(req)
	if err != nil {
		return err
	}

	ch := make(chan jsonrpc.Response, 1)
	d.mu.Lock()
	d.pending[req.ID] = ch
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		delete(d.pending, req.ID)
		d.mu.Unlock()
	}()

	if err := d.socket.Send(ctx, b); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}

	timer := time.NewTimer(d.ackTimeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return fmt.Errorf("%w: %s: %v", ErrRejected, method, resp.Error)
		}
		if out != nil && resp.Result != nil {
			if err := resp.Result.Decode(out); err != nil {
				return fmt.Errorf("%s result: %w", method, err)
			}
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w: %s", ErrAckTimeout, method)
	}
}

// Respond answers a relay-initiated request.
func (d *Dispatcher) Respond(ctx context.Context, resp jsonrpc.Response) error {
	b, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return d.socket.Send(ctx, b)
}

// OnRequest registers a handler for relay-initiated requests.
func (d *Dispatcher) OnRequest(fn func(jsonrpc.Request)) (cancel func()) {
	return d.requests.On(fn)
}

// OnConnectionStatus registers a handler for socket open/close.
func (d *Dispatcher) OnConnectionStatus(fn func(domain.ConnectionStatus)) (cancel func()) {
	return d.status.On(fn)
}

// onSocketClosed registers a handler called from the read loop when the
// socket drops; err is nil for a requested disconnect.
func (d *Dispatcher) onSocketClosed(fn func(error)) (cancel func()) {
	return d.onClose.On(fn)
}

func (d *Dispatcher) handleText(data []byte) {
	req, resp, err := jsonrpc.Parse(data)
	if err != nil {
		d.log.Debug().Err(err).Msg("dropping undecodable relay frame")
		return
	}
	if resp != nil {
		d.mu.Lock()
		ch, ok := d.pending[resp.ID]
		d.mu.Unlock()
		if !ok {
			d.log.Debug().Int64("id", resp.ID).Msg("relay ack for unknown request")
			return
		}
		select {
		case ch <- *resp:
		default:
		}
		return
	}
	d.queue.push(*req)
}

func (d *Dispatcher) handleClose(err error) {
	d.onClose.Emit(err)
	d.queue.push(domain.Disconnected)
}

func (d *Dispatcher) run() {
	for {
		item, ok := d.queue.pop()
		if !ok {
			return
		}
		switch v := item.(type) {
		case jsonrpc.Request:
			d.requests.Emit(v)
		case domain.ConnectionStatus:
			metrics.SetRelayConnected(v == domain.Connected)
			d.log.Info().Str("status", v.String()).Msg("relay connection")
			d.status.Emit(v)
		}
	}
}

// queue is an unbounded FIFO. The read loop never blocks on it.
type queue struct {
	mu     sync.Mutex
	items  []any
	closed bool
	notify chan struct{}
}

func newQueue() *queue {
	return &queue{notify: make(chan struct{}, 1)}
}

func (q *queue) push(v any) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, v)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *queue) pop() (any, bool) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, false
		}
		if len(q.items) > 0 {
			v := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			return v, true
		}
		q.mu.Unlock()
		<-q.notify
	}
}

func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
