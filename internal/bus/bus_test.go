package bus

import (
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestBus() *Bus {
	return New(slog.Default())
}

func TestPublish_DeliversInPublishOrder(t *testing.T) {
	b := newTestBus()

	var got []string
	b.Subscribe(KindInteractionTriggered, func(e Event) {
		got = append(got, e.(InteractionTriggered).Payload)
	})

	for i := 0; i < 10; i++ {
		b.Publish(InteractionTriggered{Source: SourceUserSignal, Payload: fmt.Sprintf("m%d", i)})
	}

	require.Len(t, got, 10)
	for i, payload := range got {
		require.Equal(t, fmt.Sprintf("m%d", i), payload)
	}
}

func TestPublish_NoSubscribersIsDropped(t *testing.T) {
	b := newTestBus()
	require.NotPanics(t, func() {
		b.Publish(EnergyImpulse{Amplitude: 0.5})
	})
}

func TestPublish_OnlyMatchingKindDelivered(t *testing.T) {
	b := newTestBus()

	var nudges, impulses int
	b.Subscribe(KindNudge, func(Event) { nudges++ })
	b.Subscribe(KindEnergyImpulse, func(Event) { impulses++ })

	b.Publish(Nudge{Kind: NudgeSilence, Amplitude: 0.2})
	b.Publish(EnergyImpulse{Amplitude: 0.9})
	b.Publish(EnergyImpulse{Amplitude: 0.1})

	require.Equal(t, 1, nudges)
	require.Equal(t, 2, impulses)
}

func TestPublish_PanickingHandlerDoesNotBlockOthers(t *testing.T) {
	b := newTestBus()

	var delivered int
	b.Subscribe(KindNudge, func(Event) { panic("boom") })
	b.Subscribe(KindNudge, func(Event) { delivered++ })

	require.NotPanics(t, func() {
		b.Publish(Nudge{Kind: NudgeBalance, Amplitude: 0.4})
	})
	require.Equal(t, 1, delivered)
}

func TestSubscribe_CancelStopsDelivery(t *testing.T) {
	b := newTestBus()

	var count int
	cancel := b.Subscribe(KindEnergyImpulse, func(Event) { count++ })

	b.Publish(EnergyImpulse{Amplitude: 0.3})
	cancel()
	cancel() // second cancel is harmless
	b.Publish(EnergyImpulse{Amplitude: 0.3})

	require.Equal(t, 1, count)
}

func TestPublish_HandlerMayPublishInline(t *testing.T) {
	b := newTestBus()

	var impulses int
	b.Subscribe(KindEnergyImpulse, func(Event) { impulses++ })
	b.Subscribe(KindNudge, func(e Event) {
		b.Publish(EnergyImpulse{Amplitude: e.(Nudge).Amplitude})
	})

	b.Publish(Nudge{Kind: NudgeStabilize, Amplitude: 0.5})
	require.Equal(t, 1, impulses)
}
