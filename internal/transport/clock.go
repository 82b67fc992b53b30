// Package transport keeps the session's musical-time reference. The clock
// derives beat position from whichever deck is master and resolves symbolic
// offsets ("next bar + 8") to absolute session beats. It is owned by the
// engine's tick loop and is not safe for concurrent use.
package transport

import (
	"errors"
	"fmt"
	"math"

	"github.com/seguelabs/segue/internal/beatgrid"
)

// ErrNoMaster is returned when musical time is undefined because nothing is
// playing as master.
var ErrNoMaster = errors.New("no master deck")

// Anchor names the boundary an offset counts from.
type Anchor int

const (
	NextBar Anchor = iota
	NextPhrase
)

func (a Anchor) String() string {
	switch a {
	case NextBar:
		return "next_bar"
	case NextPhrase:
		return "next_phrase"
	}
	return "unknown"
}

// Offset is a symbolic musical offset: a strictly-future boundary plus a bar
// count.
type Offset struct {
	From Anchor
	Bars int
}

func (o Offset) String() string {
	return fmt.Sprintf("%s+%d", o.From, o.Bars)
}

// Source is the clock's view of the master deck.
type Source interface {
	// LocalBeat is the deck's position on its own beat grid.
	LocalBeat() float64
	// Tempo is the deck's current tempo in BPM.
	Tempo() float64
	// PhraseBars is the deck grid's phrase length.
	PhraseBars() int
}

// Clock converts between the master deck's local grid and continuous session
// beats. Session beat 0 is a bar and phrase start; bars are 4 beats. Time
// only moves forward within a session: master transfers re-anchor the base
// offset so Now never jumps.
type Clock struct {
	src    Source
	base   float64 // session beat of the source's local beat 0
	frozen float64 // session beat held while no master is playing
}

// NewClock returns an unanchored clock at session beat 0.
func NewClock() *Clock {
	return &Clock{}
}

// Anchored reports whether a master source drives the clock.
func (c *Clock) Anchored() bool { return c.src != nil }

// SetMaster anchors the clock to a new source, preserving continuity: the
// session beat at the transfer instant is carried over as the new base.
func (c *Clock) SetMaster(src Source) {
	if c.src == nil {
		c.base = c.frozen - src.LocalBeat()
	} else {
		c.base = c.Now() - src.LocalBeat()
	}
	c.src = src
}

// Clear detaches the clock from its source, freezing the session beat.
func (c *Clock) Clear() {
	if c.src != nil {
		c.frozen = c.Now()
		c.src = nil
	}
}

// Now returns the current session beat.
func (c *Clock) Now() float64 {
	if c.src == nil {
		return c.frozen
	}
	return c.base + c.src.LocalBeat()
}

// Tempo returns the master's current tempo, or 0 when unanchored.
func (c *Clock) Tempo() float64 {
	if c.src == nil {
		return 0
	}
	return c.src.Tempo()
}

// Bar returns the current bar index.
func (c *Clock) Bar() int {
	return int(math.Floor(c.Now() / beatgrid.BeatsPerBar))
}

// Phrase returns the current phrase index.
func (c *Clock) Phrase() int {
	return int(math.Floor(c.Now() / c.PhraseBeats()))
}

// PhraseBeats returns the phrase length in beats, from the master's grid.
func (c *Clock) PhraseBeats() float64 {
	bars := beatgrid.DefaultPhraseBars
	if c.src != nil {
		bars = c.src.PhraseBars()
	}
	return float64(bars) * beatgrid.BeatsPerBar
}

// Resolve converts a symbolic offset to an absolute session beat. The result
// is always strictly in the future: a position exactly on a boundary rounds
// up to the next one.
func (c *Clock) Resolve(off Offset) (float64, error) {
	if c.src == nil {
		return 0, ErrNoMaster
	}
	now := c.Now()
	var boundary float64
	switch off.From {
	case NextBar:
		boundary = nextBoundary(now, beatgrid.BeatsPerBar)
	case NextPhrase:
		boundary = nextBoundary(now, c.PhraseBeats())
	default:
		return 0, fmt.Errorf("resolve: unknown anchor %d", off.From)
	}
	return boundary + float64(off.Bars)*beatgrid.BeatsPerBar, nil
}

func nextBoundary(beat, span float64) float64 {
	return (math.Floor(beat/span) + 1) * span
}
