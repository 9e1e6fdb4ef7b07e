// Package session owns the client side of a pairing: the transport
// connection, room membership, and the message log. It exposes the three
// user intents (start matching, send, disconnect) and publishes every state
// change on the event bus so the mediator, fan-out, and UI can react without
// reaching into it.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/onuvuti/resonance/internal/bus"
	"github.com/onuvuti/resonance/internal/profile"
	"github.com/onuvuti/resonance/internal/protocol"
)

// Session is the client connection state machine. One instance exists per
// client process.
//
// Invariant: status == connected exactly when peer != nil.
type Session struct {
	log       *slog.Logger
	bus       *bus.Bus
	transport Transport

	roomID      string
	localProf   profile.Profile
	displayName string

	mu       sync.Mutex
	status   Status
	peer     *PeerProfile
	messages []Message
}

func New(log *slog.Logger, b *bus.Bus, tr Transport, roomID string, prof profile.Profile, displayName string) *Session {
	s := &Session{
		log:         log,
		bus:         b,
		transport:   tr,
		roomID:      roomID,
		localProf:   prof,
		displayName: displayName,
		status:      StatusIdle,
	}
	tr.SetCallbacks(Callbacks{
		OnPeerJoined: s.handlePeerJoined,
		OnSignal:     s.handleSignal,
		OnFailure:    s.handleFailure,
	})
	return s
}

// StartMatching begins searching for a peer. Valid from idle and error; any
// other state is rejected.
func (s *Session) StartMatching(ctx context.Context) error {
	s.mu.Lock()
	if s.status != StatusIdle && s.status != StatusError {
		status := s.status
		s.mu.Unlock()
		return fmt.Errorf("session: start matching from %s", status)
	}
	s.peer = nil
	s.messages = nil
	s.status = StatusSearching
	s.mu.Unlock()

	s.publishStatus()

	if err := s.transport.Connect(ctx, s.roomID, s.localProf, s.displayName); err != nil {
		s.mu.Lock()
		s.status = StatusError
		s.mu.Unlock()
		s.publishStatus()
		return fmt.Errorf("session: %w", err)
	}
	return nil
}

// SendMessage appends the message to the local log immediately (optimistic
// echo) and relays it best-effort. Valid only while connected. A relay miss
// is never surfaced; the local echo is the sender's only confirmation.
func (s *Session) SendMessage(kind MessageKind, payload string) (Message, error) {
	s.mu.Lock()
	if s.status != StatusConnected {
		status := s.status
		s.mu.Unlock()
		return Message{}, fmt.Errorf("session: send while %s", status)
	}
	msg := Message{
		ID:        uuid.New().String(),
		Sender:    SenderLocal,
		Kind:      kind,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	s.bus.Publish(bus.InteractionTriggered{
		Source:      bus.SourceUserSignal,
		MessageKind: string(kind),
		Payload:     payload,
	})

	if err := s.transport.Send(protocol.SignalBody{Kind: string(kind), Payload: payload}); err != nil {
		s.log.Debug("session: relay miss", "error", err)
	}
	return msg, nil
}

// Disconnect tears down the transport and returns to idle. Valid from any
// non-idle state; idempotent.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.status == StatusIdle {
		s.mu.Unlock()
		return
	}
	s.peer = nil
	s.messages = nil
	s.status = StatusIdle
	s.mu.Unlock()

	if err := s.transport.Close(); err != nil {
		s.log.Debug("session: close transport", "error", err)
	}
	s.publishStatus()
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) Peer() *PeerProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.peer == nil {
		return nil
	}
	peer := *s.peer
	return &peer
}

// Messages returns a copy of the log in arrival order.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) handlePeerJoined(peer PeerProfile) {
	s.mu.Lock()
	if s.status != StatusSearching || s.peer != nil {
		// Already paired: a third joiner (or a duplicate presence frame) is
		// ignored; the first pairing wins.
		s.mu.Unlock()
		return
	}
	s.peer = &peer
	s.status = StatusConnected
	s.mu.Unlock()

	s.log.Info("session: paired", "peer", peer.ID)
	s.publishStatus()
}

func (s *Session) handleSignal(body protocol.SignalBody) {
	s.mu.Lock()
	if s.status != StatusConnected {
		s.mu.Unlock()
		return
	}
	msg := Message{
		ID:        uuid.New().String(),
		Sender:    SenderRemote,
		Kind:      MessageKind(body.Kind),
		Payload:   body.Payload,
		Timestamp: time.Now(),
	}
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	s.bus.Publish(bus.InteractionTriggered{
		Source:      bus.SourcePeerSignal,
		MessageKind: body.Kind,
		Payload:     body.Payload,
	})
}

func (s *Session) handleFailure(err error) {
	s.mu.Lock()
	if s.status == StatusIdle {
		s.mu.Unlock()
		return
	}
	s.peer = nil
	s.status = StatusError
	s.mu.Unlock()

	s.log.Warn("session: transport failed", "error", err)
	s.publishStatus()
}

func (s *Session) publishStatus() {
	s.mu.Lock()
	ev := bus.StatusChanged{Status: string(s.status)}
	if s.peer != nil {
		prof := s.peer.Profile
		ev.PeerID = s.peer.ID
		ev.PeerName = s.peer.DisplayName
		ev.PeerProfile = &prof
	}
	s.mu.Unlock()

	s.bus.Publish(ev)
}
