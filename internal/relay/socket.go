package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	defaultPingInterval = 20 * time.Second
	writeWait           = 10 * time.Second
)

// Socket is a message-oriented connection to the relay.
type Socket interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Send(ctx context.Context, data []byte) error
	IsConnected() bool
	SetHandlers(h SocketHandlers)
}

// SocketHandlers receive socket events. OnClose gets nil for a disconnect
// requested through Disconnect.
type SocketHandlers struct {
	OnOpen  func()
	OnText  func(data []byte)
	OnClose func(err error)
}

// URLFunc returns the URL to dial. It is called for every connect so auth
// tokens can be refreshed.
type URLFunc func() (string, error)

// WebSocket is a Socket over gorilla/websocket.
type WebSocket struct {
	url          URLFunc
	dialer       *websocket.Dialer
	pingInterval time.Duration
	log          zerolog.Logger

	mu       sync.Mutex
	cur      *link
	handlers SocketHandlers

	// gorilla allows one concurrent writer.
	writeMu sync.Mutex
}

// link is one dialed connection. closed is released once its read loop has
// delivered OnClose.
type link struct {
	conn      *websocket.Conn
	requested bool
	closed    chan struct{}
}

// NewWebSocket returns a disconnected socket. pingInterval <= 0 selects the
// default.
func NewWebSocket(url URLFunc, pingInterval time.Duration, log zerolog.Logger) *WebSocket {
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	return &WebSocket{
		url:          url,
		dialer:       websocket.DefaultDialer,
		pingInterval: pingInterval,
		log:          log,
	}
}

func (s *WebSocket) SetHandlers(h SocketHandlers) {
	s.mu.Lock()
	s.handlers = h
	s.mu.Unlock()
}

func (s *WebSocket) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur != nil
}

// Connect dials the relay. Connecting an open socket is a no-op.
func (s *WebSocket) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.cur != nil {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	u, err := s.url()
	if err != nil {
		return err
	}
	conn, _, err := s.dialer.DialContext(ctx, u, nil)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.cur != nil {
		// lost a race with a concurrent Connect
		s.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	l := &link{conn: conn, closed: make(chan struct{})}
	s.cur = l
	h := s.handlers
	s.mu.Unlock()

	pongWait := s.pingInterval * 2
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// OnOpen runs before the read loop so it is always observed before the
	// matching OnClose.
	if h.OnOpen != nil {
		h.OnOpen()
	}
	done := make(chan struct{})
	go s.readLoop(l, done)
	go s.pingLoop(conn, done)
	return nil
}

// Disconnect closes the socket gracefully and returns once OnClose has been
// delivered for it, so a following Connect dials a fresh connection. Closing a
// closed socket is a no-op.
func (s *WebSocket) Disconnect() error {
	s.mu.Lock()
	l := s.cur
	if l == nil {
		s.mu.Unlock()
		return nil
	}
	s.cur = nil
	l.requested = true
	s.mu.Unlock()

	s.writeMu.Lock()
	_ = l.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	s.writeMu.Unlock()
	err := l.conn.Close()

	select {
	case <-l.closed:
	case <-time.After(writeWait):
		s.log.Warn().Msg("relay read loop slow to stop")
	}
	return err
}

// Send writes one text frame.
func (s *WebSocket) Send(ctx context.Context, data []byte) error {
	s.mu.Lock()
	l := s.cur
	s.mu.Unlock()
	if l == nil {
		return ErrNotConnected
	}
	conn := l.conn

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(deadline)
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (s *WebSocket) readLoop(l *link, done chan struct{}) {
	defer close(l.closed)
	conn := l.conn
	var readErr error
	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			readErr = err
			break
		}
		if typ != websocket.TextMessage {
			continue
		}
		s.mu.Lock()
		onText := s.handlers.OnText
		s.mu.Unlock()
		if onText != nil {
			onText(data)
		}
	}
	close(done)
	_ = conn.Close()

	s.mu.Lock()
	if s.cur == l {
		s.cur = nil
	}
	requested := l.requested
	onClose := s.handlers.OnClose
	s.mu.Unlock()

	if requested {
		readErr = nil
	} else {
		s.log.Debug().Err(readErr).Msg("relay socket closed")
	}
	if onClose != nil {
		onClose(readErr)
	}
}

func (s *WebSocket) pingLoop(conn *websocket.Conn, done chan struct{}) {
	t := time.NewTicker(s.pingInterval)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			s.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			s.writeMu.Unlock()
			if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
				s.log.Debug().Err(err).Msg("relay ping failed")
				_ = conn.Close()
				return
			}
		}
	}
}

// Compile-time assertion that WebSocket implements Socket.
var _ Socket = (*WebSocket)(nil)
