// Package mediator implements the interaction mediator: a small control loop
// that watches bus traffic and nudges the conversation when it drifts into
// imbalance, silence, or emotional churn. It never reads UI state; everything
// it knows arrives on the bus, and everything it does goes back out on it.
package mediator

import (
	"log/slog"
	"sync"
	"time"

	"github.com/onuvuti/resonance/internal/bus"
	"github.com/samber/lo"
)

const (
	DefaultSilenceWindow = 10 * time.Second

	// Three unanswered local signals in a row reads as monologuing.
	imbalanceThreshold = 3

	// The stabilize window: this many distinct expressions in a row reads
	// as confusion.
	emotionWindow = 3

	balanceAmplitude   = 0.4
	silenceAmplitude   = 0.2
	stabilizeAmplitude = 0.5
)

// Ambient energy per expression category; unknown categories get the default.
var intensities = map[string]float64{
	"happy":     0.6,
	"surprised": 0.8,
	"angry":     0.9,
	"sad":       0.3,
}

const defaultIntensity = 0.5

type Config struct {
	SilenceWindow time.Duration
}

// Agent is the mediator. Construct with New; it reacts only between Start
// and Stop.
type Agent struct {
	log *slog.Logger
	bus *bus.Bus
	cfg Config

	mu                     sync.Mutex
	running                bool
	consecutiveLocalSignal int
	recentEmotions         []string
	silenceTimer           *time.Timer
	cancels                []func()
}

func New(log *slog.Logger, b *bus.Bus, cfg Config) *Agent {
	if cfg.SilenceWindow <= 0 {
		cfg.SilenceWindow = DefaultSilenceWindow
	}
	return &Agent{log: log, bus: b, cfg: cfg}
}

// Start arms the silence deadline and begins reacting to bus traffic.
// Idempotent; a second Start changes nothing and leaks nothing.
func (a *Agent) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return
	}
	a.running = true
	a.cancels = []func(){
		a.bus.Subscribe(bus.KindGestureDetected, a.handleLocalDetection),
		a.bus.Subscribe(bus.KindExpressionDetected, a.handleLocalDetection),
		a.bus.Subscribe(bus.KindInteractionTriggered, a.handleInteraction),
		a.bus.Subscribe(bus.KindStatusChanged, a.handleStatus),
	}
	a.armSilenceLocked()
	a.log.Debug("mediator: active")
}

// Stop cancels the silence timer and detaches from the bus. Idempotent; no
// callback fires after Stop returns state to stopped.
func (a *Agent) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	if a.silenceTimer != nil {
		a.silenceTimer.Stop()
		a.silenceTimer = nil
	}
	cancels := a.cancels
	a.cancels = nil
	a.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// AmplifySignal feeds one observed expression category into the confusion
// window and always emits an ambient energy impulse for it. Three pairwise
// distinct categories in a row trigger a stabilize nudge and clear the
// window.
func (a *Agent) AmplifySignal(category string) {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.recentEmotions = append(a.recentEmotions, category)
	if len(a.recentEmotions) > emotionWindow {
		a.recentEmotions = a.recentEmotions[1:]
	}
	confused := len(a.recentEmotions) == emotionWindow &&
		len(lo.Uniq(a.recentEmotions)) == emotionWindow
	if confused {
		a.recentEmotions = nil
	}
	a.mu.Unlock()

	if confused {
		a.log.Debug("mediator: confusion detected, stabilizing")
		a.nudge(bus.NudgeStabilize, stabilizeAmplitude)
	}

	intensity, ok := intensities[category]
	if !ok {
		intensity = defaultIntensity
	}
	a.bus.Publish(bus.EnergyImpulse{Amplitude: intensity})
}

func (a *Agent) handleLocalDetection(bus.Event) {
	a.localSignal()
}

func (a *Agent) handleInteraction(e bus.Event) {
	ev, ok := e.(bus.InteractionTriggered)
	if !ok {
		return
	}
	switch ev.Source {
	case bus.SourceUserSignal:
		a.localSignal()
	case bus.SourcePeerSignal:
		a.mu.Lock()
		a.consecutiveLocalSignal = 0
		a.armSilenceLocked()
		a.mu.Unlock()
	case bus.SourceIntent:
		// Intents derive from detections already counted; only the silence
		// deadline moves.
		a.mu.Lock()
		a.armSilenceLocked()
		a.mu.Unlock()
	}
}

func (a *Agent) handleStatus(e bus.Event) {
	ev, ok := e.(bus.StatusChanged)
	if !ok || ev.Status == "connected" {
		return
	}
	a.mu.Lock()
	a.consecutiveLocalSignal = 0
	a.recentEmotions = nil
	a.mu.Unlock()
}

func (a *Agent) localSignal() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.consecutiveLocalSignal++
	imbalanced := a.consecutiveLocalSignal >= imbalanceThreshold
	if imbalanced {
		a.consecutiveLocalSignal = 0
	}
	a.armSilenceLocked()
	a.mu.Unlock()

	if imbalanced {
		a.log.Debug("mediator: imbalance detected, encouraging passive side")
		a.nudge(bus.NudgeBalance, balanceAmplitude)
	}
}

func (a *Agent) onSilence() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.armSilenceLocked()
	a.mu.Unlock()

	a.log.Debug("mediator: silence deadline reached")
	a.nudge(bus.NudgeSilence, silenceAmplitude)
}

// armSilenceLocked (re)arms the silence deadline. Caller holds a.mu.
func (a *Agent) armSilenceLocked() {
	if a.silenceTimer != nil {
		a.silenceTimer.Stop()
	}
	a.silenceTimer = time.AfterFunc(a.cfg.SilenceWindow, a.onSilence)
}

func (a *Agent) nudge(kind bus.NudgeKind, amplitude float64) {
	a.bus.Publish(bus.Nudge{Kind: kind, Amplitude: amplitude})
	a.bus.Publish(bus.EnergyImpulse{Amplitude: amplitude})
	a.bus.Publish(bus.InteractionTriggered{
		Source: bus.SourceMediatorNudge,
		Symbol: string(kind),
	})
}
