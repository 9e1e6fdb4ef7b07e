package protocol

import (
	"encoding/json"

	"github.com/onuvuti/resonance/internal/profile"
)

// FrameType identifies a relay wire frame.
type FrameType string

const (
	FrameTypeJoin          FrameType = "join"
	FrameTypeJoined        FrameType = "joined"
	FrameTypePeerJoined    FrameType = "peer_joined"
	FrameTypeSignal        FrameType = "signal"
	FrameTypeReceiveSignal FrameType = "receive_signal"
	FrameTypeError         FrameType = "error"
)

// Frame is the single envelope exchanged between clients and the relay.
// The relay never inspects Payload; it only routes on Type.
type Frame struct {
	Type        FrameType        `json:"type"`
	From        string           `json:"from,omitempty"`
	RoomID      string           `json:"roomId,omitempty"`
	Profile     *profile.Profile `json:"profile,omitempty"`
	DisplayName string           `json:"displayName,omitempty"`
	Kind        string           `json:"kind,omitempty"`
	Payload     json.RawMessage  `json:"payload,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// SignalBody is the application payload the clients exchange through the
// relay. The relay treats it as opaque bytes.
type SignalBody struct {
	Kind    string `json:"kind"`
	Payload string `json:"payload"`
}
