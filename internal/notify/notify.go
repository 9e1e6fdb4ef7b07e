// Package notify maps one incoming interaction onto the sensory channels the
// local participant can perceive. Planning is a pure function of the message
// and the accessibility profile; execution drives the capability interfaces
// and owns the single piece of transient state, the auto-clearing highlight.
package notify

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/onuvuti/resonance/internal/profile"
)

const (
	PulseDuration   = 1 * time.Second
	CaptionDuration = 3500 * time.Millisecond

	pingFrequency = 880.0
	pingDuration  = 0.15
	pingVolume    = 0.3
)

var (
	shortPattern    = []int{200}
	combinedPattern = []int{50, 50, 50}           // blind+deaf message arrival
	connectPattern  = []int{50, 100, 50, 100, 500} // blind+deaf connection established
)

// Incoming is the message-shaped input to the fan-out: a relayed peer message
// or a locally fired intent.
type Incoming struct {
	Kind    string // text, emoji, image-link, action
	Payload string
}

// Channel identifies one output channel of an activation.
type Channel string

const (
	ChannelSpeech    Channel = "speech"
	ChannelVibration Channel = "vibration"
	ChannelPulse     Channel = "pulse"
	ChannelCaption   Channel = "caption"
	ChannelTone      Channel = "tone"
)

// Activation is one planned channel firing.
type Activation struct {
	Channel Channel

	Text    string        // speech, caption
	Pattern []int         // vibration, milliseconds
	Hold    time.Duration // pulse, caption

	Frequency float64 // tone
	Waveform  string
	Duration  float64
	Volume    float64
}

// Plan computes the channel activations for msg under prof. It is pure: the
// same inputs always produce the same activation set.
func Plan(msg Incoming, prof profile.Profile) []Activation {
	var plan []Activation

	if prof.IsBlind() {
		plan = append(plan, Activation{
			Channel: ChannelSpeech,
			Text:    Describe(msg),
		})
	}

	if prof.IsDeaf() {
		plan = append(plan, Activation{Channel: ChannelPulse, Hold: PulseDuration})
		if msg.Kind == "text" {
			plan = append(plan, Activation{
				Channel: ChannelCaption,
				Text:    msg.Payload,
				Hold:    CaptionDuration,
			})
		}
		pattern := shortPattern
		if prof.IsBlindDeaf() {
			// Audio and visual are both unavailable; the haptic channel has
			// to be distinguishable on its own.
			pattern = combinedPattern
		}
		plan = append(plan, Activation{Channel: ChannelVibration, Pattern: pattern})
	}

	if !prof.IsBlind() && !prof.IsDeaf() {
		plan = append(plan, Activation{
			Channel:   ChannelTone,
			Frequency: pingFrequency,
			Waveform:  "sine",
			Duration:  pingDuration,
			Volume:    pingVolume,
		})
	}

	return plan
}

// Describe renders msg as a human-readable utterance. Non-text kinds get a
// fixed description rather than their raw payload.
func Describe(msg Incoming) string {
	switch msg.Kind {
	case "emoji":
		return fmt.Sprintf("Peer sent a %s emoji", msg.Payload)
	case "image-link":
		return "Peer shared a visual signal"
	case "action":
		return "Peer sent a reaction"
	default:
		return msg.Payload
	}
}

// Notifier executes activation plans against the local capabilities.
type Notifier struct {
	log  *slog.Logger
	prof profile.Profile

	speaker Speaker
	haptics Haptics
	tone    Tone
	visual  Visual

	mu             sync.Mutex
	highlighted    bool
	highlightTimer *time.Timer
}

// NewNotifier builds a notifier for prof. Any capability may be nil.
func NewNotifier(log *slog.Logger, prof profile.Profile, speaker Speaker, haptics Haptics, tone Tone, visual Visual) *Notifier {
	return &Notifier{
		log:     log,
		prof:    prof,
		speaker: speaker,
		haptics: haptics,
		tone:    tone,
		visual:  visual,
	}
}

// Notify plans and executes the fan-out for one incoming interaction.
func (n *Notifier) Notify(msg Incoming) {
	for _, act := range Plan(msg, n.prof) {
		n.execute(act)
	}
}

// NotifyIntent runs the fan-out for a locally fired intent symbol.
func (n *Notifier) NotifyIntent(symbol string) {
	n.Notify(Incoming{Kind: "action", Payload: symbol})
}

// NotifyNudge renders a mediator nudge at the given amplitude: haptic for
// deaf participants, a quiet tone for everyone else.
func (n *Notifier) NotifyNudge(amplitude float64) {
	if n.prof.IsDeaf() {
		n.vibrate([]int{int(amplitude * 400)})
		return
	}
	n.playTone(Activation{
		Frequency: 440 + 220*amplitude,
		Waveform:  "sine",
		Duration:  0.1,
		Volume:    amplitude * 0.4,
	})
}

// Connected announces an established session.
func (n *Notifier) Connected() {
	if n.prof.IsBlindDeaf() {
		n.vibrate(connectPattern)
		return
	}
	n.playTone(Activation{Frequency: 660, Waveform: "sine", Duration: 0.3, Volume: 0.4})
	n.speak("Resonance established")
}

// Highlighted reports whether the visual pulse is currently active.
func (n *Notifier) Highlighted() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.highlighted
}

// Close cancels the highlight timer. The notifier stays usable but any
// pending auto-clear is dropped.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.highlightTimer != nil {
		n.highlightTimer.Stop()
		n.highlightTimer = nil
	}
	n.highlighted = false
}

func (n *Notifier) execute(act Activation) {
	switch act.Channel {
	case ChannelSpeech:
		n.speak(act.Text)
	case ChannelVibration:
		n.vibrate(act.Pattern)
	case ChannelPulse:
		n.pulse(act.Hold)
	case ChannelCaption:
		if n.visual != nil {
			n.visual.Caption(act.Text, act.Hold)
		}
	case ChannelTone:
		n.playTone(act)
	}
}

func (n *Notifier) speak(text string) {
	if n.speaker == nil {
		return
	}
	n.speaker.Speak(text, 1.0, 1.0)
}

func (n *Notifier) vibrate(pattern []int) {
	if n.haptics == nil {
		return
	}
	n.haptics.Vibrate(pattern)
}

func (n *Notifier) playTone(act Activation) {
	if n.tone == nil {
		return
	}
	n.tone.Play(act.Frequency, act.Waveform, act.Duration, act.Volume)
}

func (n *Notifier) pulse(hold time.Duration) {
	n.mu.Lock()
	n.highlighted = true
	if n.highlightTimer != nil {
		n.highlightTimer.Stop()
	}
	n.highlightTimer = time.AfterFunc(hold, func() {
		n.mu.Lock()
		n.highlighted = false
		n.mu.Unlock()
	})
	n.mu.Unlock()

	if n.visual != nil {
		n.visual.Pulse(hold)
	}
}
