package decision

import (
	"log/slog"
	"testing"
	"time"

	"github.com/onuvuti/resonance/internal/bus"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	bus     *bus.Bus
	layer   *Layer
	clock   time.Time
	intents []string
	onBus   []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		bus:   bus.New(slog.Default()),
		clock: time.Unix(1000, 0),
	}
	f.layer = New(slog.Default(), f.bus, Config{})
	f.layer.now = func() time.Time { return f.clock }
	f.layer.SetIntentHandler(func(symbol string) {
		f.intents = append(f.intents, symbol)
	})
	f.bus.Subscribe(bus.KindInteractionTriggered, func(e bus.Event) {
		ev := e.(bus.InteractionTriggered)
		if ev.Source == bus.SourceIntent {
			f.onBus = append(f.onBus, ev.Symbol)
		}
	})
	f.layer.Start()
	t.Cleanup(f.layer.Stop)
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func (f *fixture) gesture(category string, score float64) {
	f.bus.Publish(bus.GestureDetected{Category: category, Score: score, At: f.clock})
}

func (f *fixture) expression(category string, prob float64) {
	f.bus.Publish(bus.ExpressionDetected{Category: category, Probability: prob, At: f.clock})
}

func TestGesture_CooldownGatesRepeatFiring(t *testing.T) {
	f := newFixture(t)

	f.gesture("Thumb_Up", 0.9)
	require.Equal(t, []string{"👍"}, f.intents)

	f.advance(1000 * time.Millisecond)
	f.gesture("Thumb_Up", 0.9)
	require.Len(t, f.intents, 1, "second gesture inside cooldown must not fire")

	f.advance(600 * time.Millisecond) // t=1600ms since first firing
	f.gesture("Thumb_Up", 0.9)
	require.Equal(t, []string{"👍", "👍"}, f.intents)
}

func TestGesture_UnmappedCategoryIgnored(t *testing.T) {
	f := newFixture(t)

	f.gesture("Jazz_Hands", 0.99)
	require.Empty(t, f.intents)
	require.Empty(t, f.onBus)
}

func TestGesture_FiredIntentReachesBusAndHandler(t *testing.T) {
	f := newFixture(t)

	f.gesture("Open_Palm", 0.8)
	require.Equal(t, []string{"👋"}, f.intents)
	require.Equal(t, []string{"👋"}, f.onBus)
}

func TestExpression_RequiresConfidenceAboveFloor(t *testing.T) {
	f := newFixture(t)

	f.expression("happy", 0.8) // floor is exclusive
	require.Empty(t, f.intents)

	f.expression("happy", 0.81)
	require.Equal(t, []string{"😊"}, f.intents)
	require.Equal(t, "😊", f.layer.Current())
}

func TestExpression_CooldownLongerThanGesture(t *testing.T) {
	f := newFixture(t)

	f.expression("angry", 0.95)
	require.Equal(t, []string{"😠"}, f.intents)

	f.advance(2 * time.Second) // would clear the gesture cooldown, not this one
	f.expression("sad", 0.95)
	require.Len(t, f.intents, 1)

	f.advance(1100 * time.Millisecond)
	f.expression("sad", 0.95)
	require.Equal(t, []string{"😠", "😢"}, f.intents)
}

func TestExpression_NeutralClearsDisplayedState(t *testing.T) {
	f := newFixture(t)

	f.expression("surprised", 0.9)
	require.Equal(t, "😮", f.layer.Current())

	f.expression("neutral", 0.99)
	require.Empty(t, f.layer.Current())
	require.Len(t, f.intents, 1, "neutral never fires an intent")
}

func TestExpression_UnknownCategoryLeavesDisplayIntact(t *testing.T) {
	f := newFixture(t)

	f.expression("happy", 0.9)
	require.Equal(t, "😊", f.layer.Current())

	f.expression("smirking", 0.99)
	require.Equal(t, "😊", f.layer.Current(), "unknown categories are ignored, not treated as neutral")
	require.Len(t, f.intents, 1)
}

func TestExpression_SubThresholdClearsDisplayedState(t *testing.T) {
	f := newFixture(t)

	f.expression("happy", 0.9)
	require.Equal(t, "😊", f.layer.Current())

	f.expression("happy", 0.4)
	require.Empty(t, f.layer.Current())
}

func TestStop_DetachesFromBus(t *testing.T) {
	f := newFixture(t)

	f.layer.Stop()
	f.layer.Stop() // idempotent

	f.gesture("Thumb_Up", 0.9)
	require.Empty(t, f.intents)
}
