// Package mixer holds the gain automation curves that drive transitions:
// the equal-power crossfade between decks, and linear ramps for pauses and
// stem mutes. Curves are pure functions of the session beat, so the engine
// can evaluate them every frame without accumulating error.
package mixer

import "math"

// Shape selects a crossfade's gain law.
type Shape int

const (
	// EqualPower keeps perceived loudness flat across the transition:
	// outgoing gain cos(p*pi/2), incoming gain sin(p*pi/2).
	EqualPower Shape = iota
	// Linear interpolates straight from the captured starting gains. Used
	// for fade-now overrides so the handoff picks up exactly where the
	// running fade left off.
	Linear
)

func (s Shape) String() string {
	switch s {
	case EqualPower:
		return "equal_power"
	case Linear:
		return "linear"
	}
	return "unknown"
}

// Crossfade maps session beats to a gain pair for the outgoing and
// incoming decks. The zero value is not useful; build one with
// NewCrossfade or FastFade.
type Crossfade struct {
	StartBeat float64
	Beats     float64
	Shape     Shape

	// Gains at StartBeat. Equal-power fades always run 1 -> 0 and 0 -> 1;
	// linear fades start from whatever was sounding when they took over.
	FromOut float64
	FromIn  float64
}

// NewCrossfade builds the standard equal-power transition.
func NewCrossfade(startBeat, beats float64) Crossfade {
	return Crossfade{
		StartBeat: startBeat,
		Beats:     beats,
		Shape:     EqualPower,
		FromOut:   1,
	}
}

// FastFade builds a linear fade that starts from the given gains, for
// cutting a transition short without a gain step.
func FastFade(startBeat, beats, fromOut, fromIn float64) Crossfade {
	return Crossfade{
		StartBeat: startBeat,
		Beats:     beats,
		Shape:     Linear,
		FromOut:   fromOut,
		FromIn:    fromIn,
	}
}

// EndBeat is the session beat at which the fade completes.
func (c Crossfade) EndBeat() float64 {
	return c.StartBeat + c.Beats
}

// Progress returns the fade position in [0,1] at the given session beat.
func (c Crossfade) Progress(beat float64) float64 {
	if c.Beats <= 0 {
		return 1
	}
	p := (beat - c.StartBeat) / c.Beats
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Gains evaluates the curve: the gain for the outgoing deck and the gain
// for the incoming deck at the given session beat.
func (c Crossfade) Gains(beat float64) (out, in float64) {
	p := c.Progress(beat)
	switch c.Shape {
	case Linear:
		return c.FromOut * (1 - p), c.FromIn + (1-c.FromIn)*p
	default:
		theta := p * math.Pi / 2
		return math.Cos(theta), math.Sin(theta)
	}
}

// Done reports whether the fade has fully completed at the given beat.
func (c Crossfade) Done(beat float64) bool {
	return c.Progress(beat) >= 1
}
