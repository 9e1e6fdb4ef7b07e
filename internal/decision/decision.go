// Package decision turns continuous, noisy detector output into sparse,
// user-meaningful intents. It subscribes to raw detection events on the bus,
// applies per-kind cooldowns and a confidence floor, and republishes the
// survivors as discrete intent symbols.
package decision

import (
	"log/slog"
	"sync"
	"time"

	"github.com/onuvuti/resonance/internal/bus"
)

const (
	DefaultGestureCooldown    = 1500 * time.Millisecond
	DefaultExpressionCooldown = 3 * time.Second

	// Expressions are continuous and noisier than gestures, so they carry a
	// confidence floor on top of the longer cooldown.
	expressionConfidenceFloor = 0.8
)

var gestureSymbols = map[string]string{
	"Thumb_Up":   "👍",
	"Thumb_Down": "👎",
	"Victory":    "✌️",
	"Open_Palm":  "👋",
	"ILoveYou":   "🤟",
}

var expressionSymbols = map[string]string{
	"happy":     "😊",
	"angry":     "😠",
	"surprised": "😮",
	"disgusted": "🤢",
	"sad":       "😢",
	"fearful":   "😨",
}

// IntentHandler receives every fired intent, independently of the bus
// publication, so callers can attach side effects (speech, vibration)
// without subscribing.
type IntentHandler func(symbol string)

type Config struct {
	GestureCooldown    time.Duration
	ExpressionCooldown time.Duration
}

func (c *Config) withDefaults() {
	if c.GestureCooldown <= 0 {
		c.GestureCooldown = DefaultGestureCooldown
	}
	if c.ExpressionCooldown <= 0 {
		c.ExpressionCooldown = DefaultExpressionCooldown
	}
}

// Layer is the decision layer. Construct with New, then Start.
type Layer struct {
	log      *slog.Logger
	bus      *bus.Bus
	cfg      Config
	onIntent IntentHandler

	now func() time.Time

	mu                 sync.Mutex
	lastGestureTime    time.Time
	lastExpressionTime time.Time
	current            string // currently displayed expression symbol
	cancels            []func()
}

func New(log *slog.Logger, b *bus.Bus, cfg Config) *Layer {
	cfg.withDefaults()
	return &Layer{
		log: log,
		bus: b,
		cfg: cfg,
		now: time.Now,
	}
}

// SetIntentHandler attaches the caller's side-effect hook. Pass nil to detach.
func (l *Layer) SetIntentHandler(h IntentHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onIntent = h
}

// Start subscribes to detection events. Calling Start on a started layer is
// a no-op.
func (l *Layer) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.cancels) > 0 {
		return
	}
	l.cancels = []func(){
		l.bus.Subscribe(bus.KindGestureDetected, l.handleGesture),
		l.bus.Subscribe(bus.KindExpressionDetected, l.handleExpression),
	}
}

// Stop detaches from the bus. Idempotent.
func (l *Layer) Stop() {
	l.mu.Lock()
	cancels := l.cancels
	l.cancels = nil
	l.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// Current returns the currently displayed expression symbol, or "" when the
// face is neutral or the last reading was too uncertain.
func (l *Layer) Current() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

func (l *Layer) handleGesture(e bus.Event) {
	ev, ok := e.(bus.GestureDetected)
	if !ok {
		return
	}
	symbol, mapped := gestureSymbols[ev.Category]
	if !mapped {
		return
	}

	l.mu.Lock()
	now := l.now()
	if now.Sub(l.lastGestureTime) <= l.cfg.GestureCooldown {
		l.mu.Unlock()
		return
	}
	l.lastGestureTime = now
	handler := l.onIntent
	l.mu.Unlock()

	l.fire(symbol, handler)
}

func (l *Layer) handleExpression(e bus.Event) {
	ev, ok := e.(bus.ExpressionDetected)
	if !ok {
		return
	}

	if ev.Category == "neutral" {
		l.mu.Lock()
		l.current = ""
		l.mu.Unlock()
		return
	}
	symbol, mapped := expressionSymbols[ev.Category]
	if !mapped {
		return
	}
	if ev.Probability <= expressionConfidenceFloor {
		// Uncertain: no intent, and the displayed expression decays.
		l.mu.Lock()
		l.current = ""
		l.mu.Unlock()
		return
	}

	l.mu.Lock()
	now := l.now()
	if now.Sub(l.lastExpressionTime) <= l.cfg.ExpressionCooldown {
		l.mu.Unlock()
		return
	}
	l.lastExpressionTime = now
	l.current = symbol
	handler := l.onIntent
	l.mu.Unlock()

	l.fire(symbol, handler)
}

func (l *Layer) fire(symbol string, handler IntentHandler) {
	l.log.Debug("decision: intent fired", "symbol", symbol)
	l.bus.Publish(bus.InteractionTriggered{
		Source: bus.SourceIntent,
		Symbol: symbol,
	})
	if handler != nil {
		handler(symbol)
	}
}
