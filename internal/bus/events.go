package bus

import (
	"time"

	"github.com/onuvuti/resonance/internal/profile"
)

// Kind names one event family on the bus. The set is closed: every payload
// type below maps to exactly one kind, so producers and consumers agree at
// compile time on what a given subscription carries.
type Kind string

const (
	KindGestureDetected      Kind = "gesture_detected"
	KindExpressionDetected   Kind = "expression_detected"
	KindInteractionTriggered Kind = "interaction_triggered"
	KindStatusChanged        Kind = "status_changed"
	KindNudge                Kind = "nudge"
	KindEnergyImpulse        Kind = "energy_impulse"
)

// Event is implemented by every bus payload.
type Event interface {
	EventKind() Kind
}

// GestureDetected is raw classifier output for a hand gesture.
type GestureDetected struct {
	Category string
	Score    float64
	At       time.Time
}

func (GestureDetected) EventKind() Kind { return KindGestureDetected }

// ExpressionDetected is raw classifier output for a facial expression.
type ExpressionDetected struct {
	Category    string
	Probability float64
	At          time.Time
}

func (ExpressionDetected) EventKind() Kind { return KindExpressionDetected }

// Source distinguishes who caused an interaction.
type Source string

const (
	SourceUserSignal    Source = "user_signal"    // locally composed or sent
	SourcePeerSignal    Source = "peer_signal"    // relayed from the peer
	SourceIntent        Source = "intent"         // fired by the decision layer
	SourceMediatorNudge Source = "mediator_nudge" // injected by the mediator
)

// InteractionTriggered announces a discrete interaction: a message sent or
// received, a fired intent, or a mediator nudge. MessageKind and Payload are
// set for message-shaped interactions; Symbol for intents and nudges.
type InteractionTriggered struct {
	Source      Source
	Symbol      string
	MessageKind string
	Payload     string
}

func (InteractionTriggered) EventKind() Kind { return KindInteractionTriggered }

// StatusChanged is published by the connection session on every state
// transition. Peer fields are set only while connected.
type StatusChanged struct {
	Status      string
	PeerID      string
	PeerName    string
	PeerProfile *profile.Profile
}

func (StatusChanged) EventKind() Kind { return KindStatusChanged }

// NudgeKind names the mediator intervention that produced a nudge.
type NudgeKind string

const (
	NudgeBalance   NudgeKind = "balance"
	NudgeSilence   NudgeKind = "silence"
	NudgeStabilize NudgeKind = "stabilize"
)

// Nudge is a mediator hint intended to prompt renewed interaction.
type Nudge struct {
	Kind      NudgeKind
	Amplitude float64
}

func (Nudge) EventKind() Kind { return KindNudge }

// EnergyImpulse drives ambient visual energy; amplitude is in [0,1].
type EnergyImpulse struct {
	Amplitude float64
}

func (EnergyImpulse) EventKind() Kind { return KindEnergyImpulse }
