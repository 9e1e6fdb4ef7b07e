package profile

import (
	"github.com/samber/lo"
)

// Impairment names a sensory channel a participant cannot use.
type Impairment string

const (
	Blind Impairment = "blind"
	Deaf  Impairment = "deaf"
	Mute  Impairment = "mute"
)

// Profile is the set of impairment flags a participant declares for the
// lifetime of a session. It is sent to the peer once at join time and is
// immutable afterwards.
type Profile struct {
	Impairments []Impairment `json:"impairments"`
}

// New builds a profile from raw flag names, dropping unknown and duplicate
// entries.
func New(flags []string) Profile {
	known := []Impairment{Blind, Deaf, Mute}
	var set []Impairment
	for _, f := range flags {
		imp := Impairment(f)
		if lo.Contains(known, imp) && !lo.Contains(set, imp) {
			set = append(set, imp)
		}
	}
	return Profile{Impairments: set}
}

func (p Profile) Has(imp Impairment) bool {
	return lo.Contains(p.Impairments, imp)
}

func (p Profile) IsBlind() bool { return p.Has(Blind) }
func (p Profile) IsDeaf() bool  { return p.Has(Deaf) }
func (p Profile) IsMute() bool  { return p.Has(Mute) }

// IsBlindDeaf reports whether both the audio and visual channels are
// unavailable, which forces everything onto the haptic channel.
func (p Profile) IsBlindDeaf() bool { return p.IsBlind() && p.IsDeaf() }
