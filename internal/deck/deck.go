// Package deck owns one loaded track's playback state: the state machine
// Empty -> Loaded -> Cueing -> Playing -> FadingOut -> Empty, a fractional
// sample cursor, and the bounded rate correction that phase-locks a slave
// deck to the master's grid. Decks are mutated only by the engine's tick
// loop and are not safe for concurrent use.
package deck

import (
	"errors"
	"fmt"
	"math"

	"github.com/seguelabs/segue/internal/audio"
	"github.com/seguelabs/segue/internal/beatgrid"
	"github.com/seguelabs/segue/internal/catalog"
)

var (
	// ErrTrackUnavailable means the track's audio could not be opened or
	// decoded. The deck is left Empty; the failure is surfaced, not retried.
	ErrTrackUnavailable = errors.New("track unavailable")
	// ErrDriftExceeded means phase-locking would need a rate stretch beyond
	// the allowed bound. The deck keeps playing unsynced until the next load.
	ErrDriftExceeded = errors.New("drift exceeded")
	// ErrBadState marks an operation invalid in the deck's current state.
	ErrBadState = errors.New("invalid deck state")
)

// State is a deck's position in its lifecycle.
type State int

const (
	Empty State = iota
	Loaded
	Cueing
	Playing
	FadingOut
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Loaded:
		return "loaded"
	case Cueing:
		return "cueing"
	case Playing:
		return "playing"
	case FadingOut:
		return "fading_out"
	}
	return "unknown"
}

const (
	// DefaultMaxStretch bounds the total rate deviation from unity when
	// syncing to the master tempo.
	DefaultMaxStretch = 0.06

	// Phase correction on top of the tempo ratio: proportional gain on the
	// beat error, clamped so correction stays inaudible.
	phaseGain    = 0.05
	maxPhaseCorr = 0.02
)

// Deck plays one track. Exactly one deck in a session is master at a time;
// the others stretch their rate within bounds to stay phase-locked.
type Deck struct {
	name       string
	maxStretch float64

	state   State
	track   catalog.Track
	grid    *beatgrid.Grid
	samples []int16

	cursor  float64 // per-channel frame position, fractional
	cueBeat float64 // session beat at which local beat 0 plays
	gain    float64
	rate    float64
	master  bool
	synced  bool
	syncOff bool // drift exceeded; no further sync attempts until load
	ended   bool
}

// New creates an empty deck. maxStretch <= 0 selects DefaultMaxStretch.
func New(name string, maxStretch float64) *Deck {
	if maxStretch <= 0 {
		maxStretch = DefaultMaxStretch
	}
	return &Deck{name: name, maxStretch: maxStretch, rate: 1}
}

func (d *Deck) Name() string          { return d.name }
func (d *Deck) State() State          { return d.state }
func (d *Deck) Track() catalog.Track  { return d.track }
func (d *Deck) Grid() *beatgrid.Grid  { return d.grid }
func (d *Deck) Gain() float64         { return d.gain }
func (d *Deck) Rate() float64         { return d.rate }
func (d *Deck) Master() bool          { return d.master }
func (d *Deck) Synced() bool          { return d.synced }
func (d *Deck) SyncDisabled() bool    { return d.syncOff }
func (d *Deck) Ended() bool           { return d.ended }
func (d *Deck) CueBeat() float64      { return d.cueBeat }

// Idle reports whether the deck can accept a new track.
func (d *Deck) Idle() bool {
	return d.state == Empty || d.state == Loaded
}

// SetMaster marks the deck as the session's tempo reference. The master
// plays at its native rate.
func (d *Deck) SetMaster(m bool) {
	d.master = m
	if m {
		d.rate = 1
		d.synced = true
	}
}

// Load installs a decoded track. Valid from Empty or Loaded; on failure the
// deck is left Empty. The cursor parks on the track's first beat so a later
// cue starts on-grid.
func (d *Deck) Load(t catalog.Track, g *beatgrid.Grid, samples []int16) error {
	if d.state != Empty && d.state != Loaded {
		return fmt.Errorf("deck %s: load from %s: %w", d.name, d.state, ErrBadState)
	}
	if len(samples) < audio.FrameSamples || g == nil {
		d.reset()
		return fmt.Errorf("deck %s: %q has no decodable audio: %w", d.name, t.Title, ErrTrackUnavailable)
	}

	d.track = t
	d.grid = g
	d.samples = samples
	d.state = Loaded
	d.cursor = d.firstBeatFrame()
	d.cueBeat = 0
	d.gain = 1
	d.rate = 1
	d.master = false
	d.synced = false
	d.syncOff = false
	d.ended = false
	return nil
}

// Cue arms playback to begin exactly when the session clock reaches atBeat.
// Valid from Loaded; a Cueing deck may be re-armed to a new beat.
func (d *Deck) Cue(atBeat float64) error {
	if d.state != Loaded && d.state != Cueing {
		return fmt.Errorf("deck %s: cue from %s: %w", d.name, d.state, ErrBadState)
	}
	d.state = Cueing
	d.cueBeat = atBeat
	d.cursor = d.firstBeatFrame()
	return nil
}

// Play starts a cued deck. nowBeat is the session beat at dispatch; because
// the whole track is decoded in memory, any dispatch overshoot past the cue
// beat is absorbed by advancing the cursor, so the start is sample-exact on
// the musical timeline.
func (d *Deck) Play(nowBeat float64) error {
	if d.state != Cueing {
		return fmt.Errorf("deck %s: play from %s: %w", d.name, d.state, ErrBadState)
	}
	overshoot := nowBeat - d.cueBeat
	if overshoot < 0 {
		return fmt.Errorf("deck %s: play %.3f beats before cue point: %w", d.name, -overshoot, ErrBadState)
	}
	t := d.grid.TimeAt(overshoot)
	if t < 0 {
		t = 0
	}
	d.cursor = t * audio.SampleRate
	d.state = Playing
	return nil
}

// SetGain sets deck gain, clamped to [0,1]. Valid whenever a track is
// loaded.
func (d *Deck) SetGain(g float64) error {
	switch d.state {
	case Loaded, Playing, FadingOut:
	default:
		return fmt.Errorf("deck %s: set gain from %s: %w", d.name, d.state, ErrBadState)
	}
	if g < 0 {
		g = 0
	} else if g > 1 {
		g = 1
	}
	d.gain = g
	return nil
}

// BeginFade marks the deck as fading out. A fade, once started, runs to
// completion or an explicit Stop; the deck cannot return to Playing.
func (d *Deck) BeginFade() error {
	if d.state != Playing {
		return fmt.Errorf("deck %s: fade from %s: %w", d.name, d.state, ErrBadState)
	}
	d.state = FadingOut
	return nil
}

// Stop empties the deck from any state, discarding position and track.
func (d *Deck) Stop() {
	d.reset()
}

func (d *Deck) reset() {
	d.state = Empty
	d.track = catalog.Track{}
	d.grid = nil
	d.samples = nil
	d.cursor = 0
	d.cueBeat = 0
	d.gain = 0
	d.rate = 1
	d.master = false
	d.synced = false
	d.syncOff = false
	d.ended = false
}

// LocalBeat is the deck's position on its own grid.
func (d *Deck) LocalBeat() float64 {
	if d.grid == nil {
		return 0
	}
	return d.grid.BeatAt(d.cursor / audio.SampleRate)
}

// Tempo is the deck's effective tempo: local grid tempo scaled by the
// current playback rate.
func (d *Deck) Tempo() float64 {
	if d.grid == nil {
		return 0
	}
	return d.grid.TempoAt(d.cursor/audio.SampleRate) * d.rate
}

// PhraseBars exposes the loaded grid's phrase length.
func (d *Deck) PhraseBars() int {
	if d.grid == nil {
		return beatgrid.DefaultPhraseBars
	}
	return d.grid.PhraseBars()
}

// SessionBeat maps the deck's local position onto the session timeline.
func (d *Deck) SessionBeat() float64 {
	return d.cueBeat + d.LocalBeat()
}

// Position returns the playback position in seconds of track audio.
func (d *Deck) Position() float64 {
	return d.cursor / audio.SampleRate
}

// Duration returns the loaded track length in seconds.
func (d *Deck) Duration() float64 {
	return float64(len(d.samples)/audio.Channels) / audio.SampleRate
}

// SyncTo phase-locks the deck to the master: the rate becomes the tempo
// ratio plus a small proportional correction on the beat error. If the
// ratio alone leaves the stretch bound, the deck reports ErrDriftExceeded,
// drops to native rate, and stays unsynced until the next load.
func (d *Deck) SyncTo(masterTempo, beatErr float64) error {
	if d.grid == nil || masterTempo <= 0 || d.syncOff || d.master {
		return nil
	}
	native := d.grid.TempoAt(d.cursor / audio.SampleRate)
	ratio := masterTempo / native
	if math.Abs(ratio-1) > d.maxStretch {
		d.syncOff = true
		d.synced = false
		d.rate = 1
		return fmt.Errorf("deck %s: tempo ratio %.3f outside ±%.0f%%: %w",
			d.name, ratio, d.maxStretch*100, ErrDriftExceeded)
	}

	corr := beatErr * phaseGain
	if corr > maxPhaseCorr {
		corr = maxPhaseCorr
	} else if corr < -maxPhaseCorr {
		corr = -maxPhaseCorr
	}
	d.rate = ratio * (1 + corr)
	d.synced = true
	return nil
}

// ReadFrame fills dst with one 20ms frame at the current rate and advances
// the cursor. Decks that are not producing audio fill silence. Past the end
// of the track the frame zero-fills and the deck reports Ended.
func (d *Deck) ReadFrame(dst []int16) {
	if d.state != Playing && d.state != FadingOut {
		for i := range dst {
			dst[i] = 0
		}
		return
	}

	if audio.ReadAt(d.samples, d.cursor, d.rate, dst) {
		d.ended = true
	}
	d.cursor += float64(audio.FrameSize) * d.rate
}

func (d *Deck) firstBeatFrame() float64 {
	t := d.grid.TimeAt(0)
	if t < 0 {
		t = 0
	}
	return t * audio.SampleRate
}
