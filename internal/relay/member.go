package relay

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/onuvuti/resonance/internal/profile"
	"github.com/onuvuti/resonance/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	sendBufferSize = 256
)

// member is one websocket connection registered in a room.
type member struct {
	id          string
	displayName string
	prof        profile.Profile

	log  *slog.Logger
	conn *websocket.Conn
	send chan []byte
}

func newMember(id, displayName string, prof profile.Profile, conn *websocket.Conn, log *slog.Logger) *member {
	return &member{
		id:          id,
		displayName: displayName,
		prof:        prof,
		log:         log,
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
	}
}

// enqueue hands data to the write pump without blocking; a full buffer drops
// the frame for this member only.
func (m *member) enqueue(data []byte) {
	select {
	case m.send <- data:
	default:
		m.log.Warn("relay: send buffer full, dropping frame", "member", m.id)
	}
}

func (m *member) sendFrame(frame protocol.Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		m.log.Error("relay: encode frame", "error", err)
		return
	}
	m.enqueue(data)
}

// readPump consumes inbound frames until the connection drops, forwarding
// signal frames through the room. Cleanup runs exactly once on exit.
func (m *member) readPump(r *room, onLeave func(*member, *room)) {
	defer onLeave(m, r)

	m.conn.SetReadDeadline(time.Now().Add(pongWait))
	m.conn.SetPongHandler(func(string) error {
		m.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := m.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				m.log.Debug("relay: read error", "member", m.id, "error", err)
			}
			return
		}

		var frame protocol.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			m.log.Debug("relay: bad frame", "member", m.id, "error", err)
			continue
		}

		switch frame.Type {
		case protocol.FrameTypeSignal:
			r.broadcast(protocol.Frame{
				Type:    protocol.FrameTypeReceiveSignal,
				From:    m.id,
				RoomID:  r.id,
				Kind:    frame.Kind,
				Payload: frame.Payload,
			}, m.id)
		default:
			m.log.Debug("relay: unexpected frame type", "member", m.id, "type", frame.Type)
		}
	}
}

// writePump drains the send buffer and keeps the connection alive with
// pings.
func (m *member) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		m.conn.Close()
	}()

	for {
		select {
		case data, ok := <-m.send:
			m.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				m.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := m.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				m.log.Debug("relay: write error", "member", m.id, "error", err)
				return
			}
		case <-ticker.C:
			m.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := m.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
