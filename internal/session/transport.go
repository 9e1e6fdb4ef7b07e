package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/onuvuti/resonance/internal/profile"
	"github.com/onuvuti/resonance/internal/protocol"
)

// Callbacks deliver transport events back to the session. All callbacks run
// on the transport's read goroutine.
type Callbacks struct {
	// OnPeerJoined fires for every peer-presence notification in the room.
	OnPeerJoined func(peer PeerProfile)
	// OnSignal fires for every relayed application payload.
	OnSignal func(body protocol.SignalBody)
	// OnFailure fires once when the connection is lost and reconnection
	// attempts are exhausted.
	OnFailure func(err error)
}

// Transport owns the live connection to the relay. Exactly one session uses
// a transport at a time.
type Transport interface {
	// SetCallbacks wires the session's event sinks. Must be called before
	// Connect.
	SetCallbacks(cb Callbacks)
	// Connect dials the relay and joins the room, retrying a bounded number
	// of times. It returns once the join frame is sent.
	Connect(ctx context.Context, roomID string, prof profile.Profile, displayName string) error
	// Send relays one application payload, best-effort.
	Send(body protocol.SignalBody) error
	// Close releases the connection synchronously. After Close returns no
	// callback fires until the next Connect.
	Close() error
}

const (
	dialTimeout  = 10 * time.Second
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
)

// WSTransport is the websocket transport. After an unexpected drop it
// re-dials with doubling backoff up to MaxAttempts and re-issues the join;
// exhaustion surfaces through Callbacks.OnFailure.
type WSTransport struct {
	log       *slog.Logger
	relayURL  string
	callbacks Callbacks

	maxAttempts int
	backoff     time.Duration

	mu      sync.Mutex
	conn    *websocket.Conn
	closed  bool
	roomID  string
	prof    profile.Profile
	display string
	gen     int // connection generation, bumps on Close
}

func NewWSTransport(log *slog.Logger, relayURL string, maxAttempts int, backoff time.Duration) *WSTransport {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &WSTransport{
		log:         log,
		relayURL:    relayURL,
		maxAttempts: maxAttempts,
		backoff:     backoff,
	}
}

func (t *WSTransport) SetCallbacks(cb Callbacks) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.callbacks = cb
}

func (t *WSTransport) Connect(ctx context.Context, roomID string, prof profile.Profile, displayName string) error {
	t.mu.Lock()
	if t.conn != nil {
		t.mu.Unlock()
		return fmt.Errorf("transport: already connected")
	}
	t.closed = false
	t.roomID = roomID
	t.prof = prof
	t.display = displayName
	gen := t.gen
	t.mu.Unlock()

	conn, err := t.dialAndJoin(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if t.closed || t.gen != gen {
		t.mu.Unlock()
		conn.Close()
		return fmt.Errorf("transport: closed during connect")
	}
	t.conn = conn
	t.mu.Unlock()

	go t.readLoop(conn, gen)
	return nil
}

func (t *WSTransport) Send(body protocol.SignalBody) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("transport: not connected")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("transport: encode signal: %w", err)
	}
	frame := protocol.Frame{
		Type:    protocol.FrameTypeSignal,
		Kind:    body.Kind,
		Payload: payload,
	}
	return t.writeJSON(conn, frame)
}

func (t *WSTransport) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.closed = true
	t.gen++
	t.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (t *WSTransport) dialAndJoin(ctx context.Context) (*websocket.Conn, error) {
	url := fmt.Sprintf("%s/ws/rooms/%s", t.relayURL, t.roomID)

	var lastErr error
	for attempt := 0; attempt < t.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := t.backoff << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
		conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, url, nil)
		cancel()
		if err != nil {
			lastErr = err
			t.log.Debug("transport: dial failed", "attempt", attempt+1, "error", err)
			continue
		}

		prof := t.prof
		join := protocol.Frame{
			Type:        protocol.FrameTypeJoin,
			Profile:     &prof,
			DisplayName: t.display,
		}
		if err := t.writeJSON(conn, join); err != nil {
			conn.Close()
			lastErr = err
			continue
		}
		return conn, nil
	}
	return nil, fmt.Errorf("transport: connect to %s: %w", url, lastErr)
}

func (t *WSTransport) readLoop(conn *websocket.Conn, gen int) {
	conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeTimeout))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if t.stale(gen) {
				return
			}
			t.log.Debug("transport: connection dropped", "error", err)
			next, rerr := t.reconnect(gen)
			if rerr != nil {
				if !t.stale(gen) && t.callbacks.OnFailure != nil {
					t.callbacks.OnFailure(rerr)
				}
				return
			}
			conn = next
			conn.SetReadDeadline(time.Now().Add(pongTimeout))
			continue
		}
		conn.SetReadDeadline(time.Now().Add(pongTimeout))

		var frame protocol.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			t.log.Debug("transport: bad frame", "error", err)
			continue
		}
		t.dispatch(frame)
	}
}

func (t *WSTransport) dispatch(frame protocol.Frame) {
	switch frame.Type {
	case protocol.FrameTypePeerJoined:
		if t.callbacks.OnPeerJoined == nil {
			return
		}
		peer := PeerProfile{ID: frame.From, DisplayName: frame.DisplayName}
		if frame.Profile != nil {
			peer.Profile = *frame.Profile
		}
		t.callbacks.OnPeerJoined(peer)
	case protocol.FrameTypeReceiveSignal:
		if t.callbacks.OnSignal == nil {
			return
		}
		var body protocol.SignalBody
		if len(frame.Payload) > 0 {
			if err := json.Unmarshal(frame.Payload, &body); err != nil {
				t.log.Debug("transport: bad signal payload", "error", err)
				return
			}
		}
		if body.Kind == "" {
			body.Kind = frame.Kind
		}
		t.callbacks.OnSignal(body)
	case protocol.FrameTypeJoined, protocol.FrameTypeError:
		// Join ack carries our member id; errors are informational only.
	}
}

// reconnect re-dials and re-joins after an unexpected drop.
func (t *WSTransport) reconnect(gen int) (*websocket.Conn, error) {
	t.mu.Lock()
	t.conn = nil
	t.mu.Unlock()

	conn, err := t.dialAndJoin(context.Background())
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	if t.closed || t.gen != gen {
		t.mu.Unlock()
		conn.Close()
		return nil, fmt.Errorf("transport: closed during reconnect")
	}
	t.conn = conn
	t.mu.Unlock()
	return conn, nil
}

func (t *WSTransport) stale(gen int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed || t.gen != gen
}

func (t *WSTransport) writeJSON(conn *websocket.Conn, frame protocol.Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("transport: encode frame: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}
