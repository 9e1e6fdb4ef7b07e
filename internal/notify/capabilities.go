package notify

import "time"

// Capability interfaces for the sensory output primitives. Implementations
// live outside this core (browser bridge, OS haptics, audio device); a nil
// capability is a silent no-op and never blocks the rest of a fan-out.

type Speaker interface {
	Speak(text string, rate, pitch float64)
}

type Haptics interface {
	Vibrate(patternMs []int)
}

type Tone interface {
	Play(freqHz float64, waveform string, durSec, volume float64)
}

type Visual interface {
	Pulse(d time.Duration)
	Caption(text string, d time.Duration)
}
