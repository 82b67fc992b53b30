// Package intent defines the operator's control vocabulary: the small set
// of instructions a session accepts over the API, and the strict JSON
// parsing that turns a request body into one of them. Parsing validates
// shape only; whether an intent can run in the current session state is
// the engine's call.
package intent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrBadIntent marks a request body that does not describe a valid intent.
var ErrBadIntent = errors.New("bad intent")

// DefaultMixBars is the transition length used when a mix_in does not name
// one.
const DefaultMixBars = 8

// Intent is one operator instruction. The set of implementations is closed;
// the engine switches over them exhaustively.
type Intent interface {
	Kind() string
	fmt.Stringer
}

// KeyMoveMode names the harmonic relationship a key_move targets.
type KeyMoveMode string

const (
	// KeySameMinor targets the parallel minor: same tonic, minor mode.
	KeySameMinor KeyMoveMode = "same_minor"
	// KeyRelativeMinor targets the relative minor of the current key.
	KeyRelativeMinor KeyMoveMode = "relative_minor"
)

// MixIn asks for a beat-matched transition into the named track, starting
// at the next bar boundary plus Bars bars and crossfading over Bars bars.
type MixIn struct {
	Title string
	Bars  int
}

func (MixIn) Kind() string { return "mix_in" }
func (m MixIn) String() string {
	return fmt.Sprintf("mix_in %q over %d bars", m.Title, m.Bars)
}

// Start hard-starts the named track on the next bar boundary, replacing
// whatever is playing without a transition.
type Start struct {
	Title string
}

func (Start) Kind() string     { return "start" }
func (s Start) String() string { return fmt.Sprintf("start %q", s.Title) }

// Pause ramps the master to silence over one bar, or back to full if the
// session is already paused.
type Pause struct{}

func (Pause) Kind() string   { return "pause" }
func (Pause) String() string { return "pause" }

// FadeNow cuts the current transition short: whatever is fading finishes
// over two bars from its current gains.
type FadeNow struct{}

func (FadeNow) Kind() string   { return "fade_now" }
func (FadeNow) String() string { return "fade_now" }

// ChangeEnergy asks the planner for a track Delta energy steps away from
// the current master and mixes into it.
type ChangeEnergy struct {
	Delta int
}

func (ChangeEnergy) Kind() string { return "change_energy" }
func (c ChangeEnergy) String() string {
	return fmt.Sprintf("change_energy %+d", c.Delta)
}

// KeyMove asks the planner for a track in a related key and mixes into it.
type KeyMove struct {
	Mode KeyMoveMode
}

func (KeyMove) Kind() string     { return "key_move" }
func (k KeyMove) String() string { return fmt.Sprintf("key_move %s", k.Mode) }

// Vocals toggles the master's vocal stem, scheduled for the phrase after
// next so the entrance lands on structure.
type Vocals struct {
	Enabled bool
}

func (Vocals) Kind() string { return "vocals" }
func (v Vocals) String() string {
	if v.Enabled {
		return "vocals on"
	}
	return "vocals off"
}

// envelope carries just the discriminator so Parse can pick the wire
// struct to strict-decode the full body into.
type envelope struct {
	Type string `json:"type"`
}

// Parse decodes a request body into an intent. Unknown types, unknown
// fields, and missing required fields all fail with ErrBadIntent.
func Parse(data []byte) (Intent, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadIntent, err)
	}

	switch env.Type {
	case "mix_in":
		var w struct {
			Type  string `json:"type"`
			Title string `json:"title"`
			Bars  int    `json:"bars,omitempty"`
		}
		if err := strictDecode(data, &w); err != nil {
			return nil, err
		}
		if strings.TrimSpace(w.Title) == "" {
			return nil, fmt.Errorf("%w: mix_in needs a title", ErrBadIntent)
		}
		if w.Bars == 0 {
			w.Bars = DefaultMixBars
		}
		if w.Bars < 1 || w.Bars > 64 {
			return nil, fmt.Errorf("%w: mix_in bars %d outside 1..64", ErrBadIntent, w.Bars)
		}
		return MixIn{Title: strings.TrimSpace(w.Title), Bars: w.Bars}, nil

	case "start":
		var w struct {
			Type  string `json:"type"`
			Title string `json:"title"`
		}
		if err := strictDecode(data, &w); err != nil {
			return nil, err
		}
		if strings.TrimSpace(w.Title) == "" {
			return nil, fmt.Errorf("%w: start needs a title", ErrBadIntent)
		}
		return Start{Title: strings.TrimSpace(w.Title)}, nil

	case "pause":
		var w struct {
			Type string `json:"type"`
		}
		if err := strictDecode(data, &w); err != nil {
			return nil, err
		}
		return Pause{}, nil

	case "fade_now":
		var w struct {
			Type string `json:"type"`
		}
		if err := strictDecode(data, &w); err != nil {
			return nil, err
		}
		return FadeNow{}, nil

	case "change_energy":
		var w struct {
			Type  string `json:"type"`
			Delta int    `json:"delta"`
		}
		if err := strictDecode(data, &w); err != nil {
			return nil, err
		}
		if w.Delta == 0 {
			return nil, fmt.Errorf("%w: change_energy delta must be non-zero", ErrBadIntent)
		}
		if w.Delta < -3 || w.Delta > 3 {
			return nil, fmt.Errorf("%w: change_energy delta %d outside -3..3", ErrBadIntent, w.Delta)
		}
		return ChangeEnergy{Delta: w.Delta}, nil

	case "key_move":
		var w struct {
			Type string `json:"type"`
			Mode string `json:"mode"`
		}
		if err := strictDecode(data, &w); err != nil {
			return nil, err
		}
		mode := KeyMoveMode(w.Mode)
		if mode != KeySameMinor && mode != KeyRelativeMinor {
			return nil, fmt.Errorf("%w: key_move mode %q (want %q or %q)",
				ErrBadIntent, w.Mode, KeySameMinor, KeyRelativeMinor)
		}
		return KeyMove{Mode: mode}, nil

	case "vocals":
		var w struct {
			Type    string `json:"type"`
			Enabled bool   `json:"enabled"`
		}
		if err := strictDecode(data, &w); err != nil {
			return nil, err
		}
		return Vocals{Enabled: w.Enabled}, nil

	case "":
		return nil, fmt.Errorf("%w: missing type", ErrBadIntent)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrBadIntent, env.Type)
	}
}

func strictDecode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadIntent, err)
	}
	return nil
}
