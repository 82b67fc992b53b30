// Package beatgrid models the analyzer's per-track beat timeline: ordered
// beat timestamps grouped into 4-beat bars and fixed-length phrases. Grids
// are immutable and paired 1:1 with catalog tracks.
package beatgrid

import (
	"fmt"
	"sort"
)

const (
	BeatsPerBar       = 4
	DefaultPhraseBars = 16
)

// Grid is one track's beat timeline. Beat positions are continuous: position
// 2.5 is halfway between the third and fourth beat timestamps.
type Grid struct {
	beats      []float64 // seconds, strictly increasing
	bpm        float64   // nominal tempo after octave folding
	phraseBars int
}

// New builds a grid from explicit beat timestamps.
func New(beats []float64, bpm float64, phraseBars int) (*Grid, error) {
	if len(beats) < 2 {
		return nil, fmt.Errorf("beatgrid: need at least 2 beats, got %d", len(beats))
	}
	for i := 1; i < len(beats); i++ {
		if beats[i] <= beats[i-1] {
			return nil, fmt.Errorf("beatgrid: beats not strictly increasing at index %d (%v <= %v)", i, beats[i], beats[i-1])
		}
	}
	if bpm <= 0 {
		bpm = 60 * float64(len(beats)-1) / (beats[len(beats)-1] - beats[0])
	}
	if phraseBars <= 0 {
		phraseBars = DefaultPhraseBars
	}
	return &Grid{beats: beats, bpm: bpm, phraseBars: phraseBars}, nil
}

// Uniform synthesizes an even grid from a tempo, covering a track of the
// given duration. Used when a track has no analyzed sidecar.
func Uniform(bpm, firstBeat, duration float64, phraseBars int) (*Grid, error) {
	if bpm <= 0 {
		return nil, fmt.Errorf("beatgrid: uniform grid needs bpm > 0, got %v", bpm)
	}
	if firstBeat < 0 {
		firstBeat = 0
	}
	interval := 60.0 / bpm
	n := int((duration-firstBeat)/interval) + 2
	if n < 2 {
		n = 2
	}
	beats := make([]float64, n)
	for i := range beats {
		beats[i] = firstBeat + float64(i)*interval
	}
	return &Grid{beats: beats, bpm: bpm, phraseBars: phraseBars}, nil
}

// BPM returns the grid's nominal tempo.
func (g *Grid) BPM() float64 { return g.bpm }

// PhraseBars returns the phrase length in bars.
func (g *Grid) PhraseBars() int {
	if g.phraseBars <= 0 {
		return DefaultPhraseBars
	}
	return g.phraseBars
}

// Len returns the number of beat timestamps.
func (g *Grid) Len() int { return len(g.beats) }

// BeatAt converts a time in seconds to a continuous beat position,
// interpolating between timestamps and extrapolating past either end.
func (g *Grid) BeatAt(sec float64) float64 {
	n := len(g.beats)
	i := sort.SearchFloat64s(g.beats, sec)
	switch {
	case i == 0:
		return (sec - g.beats[0]) / (g.beats[1] - g.beats[0])
	case i >= n:
		last := g.beats[n-1]
		interval := last - g.beats[n-2]
		return float64(n-1) + (sec-last)/interval
	default:
		lo, hi := g.beats[i-1], g.beats[i]
		return float64(i-1) + (sec-lo)/(hi-lo)
	}
}

// TimeAt converts a continuous beat position back to seconds.
func (g *Grid) TimeAt(beat float64) float64 {
	n := len(g.beats)
	i := int(beat)
	switch {
	case beat < 0:
		return g.beats[0] + beat*(g.beats[1]-g.beats[0])
	case i >= n-1:
		last := g.beats[n-1]
		interval := last - g.beats[n-2]
		return last + (beat-float64(n-1))*interval
	default:
		frac := beat - float64(i)
		return g.beats[i] + frac*(g.beats[i+1]-g.beats[i])
	}
}

// TempoAt returns the instantaneous tempo at a time, from the local beat
// interval.
func (g *Grid) TempoAt(sec float64) float64 {
	n := len(g.beats)
	i := sort.SearchFloat64s(g.beats, sec)
	if i < 1 {
		i = 1
	}
	if i >= n {
		i = n - 1
	}
	return 60.0 / (g.beats[i] - g.beats[i-1])
}
