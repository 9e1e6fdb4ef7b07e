package session

import (
	"time"

	"github.com/onuvuti/resonance/internal/profile"
)

// Status is the connection state machine's state.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusSearching Status = "searching"
	StatusConnected Status = "connected"
	StatusError     Status = "error"
)

// Sender marks which side of the session produced a message.
type Sender string

const (
	SenderLocal  Sender = "local"
	SenderRemote Sender = "remote"
)

// MessageKind is the application-level payload kind.
type MessageKind string

const (
	KindText      MessageKind = "text"
	KindEmoji     MessageKind = "emoji"
	KindImageLink MessageKind = "image-link"
	KindAction    MessageKind = "action"
)

// Message is one entry in the session log. Messages are immutable once
// created and appended in arrival order; insertion order is authoritative,
// not the timestamp.
type Message struct {
	ID        string
	Sender    Sender
	Kind      MessageKind
	Payload   string
	Timestamp time.Time
}

// PeerProfile describes the remote participant for the lifetime of a
// pairing.
type PeerProfile struct {
	ID          string
	Profile     profile.Profile
	DisplayName string
}
