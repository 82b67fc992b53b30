package catalog

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Mode is the scale mode of a musical key. The zero value means the key is
// unknown (the analyzer produced no estimate for the track).
type Mode int

const (
	ModeUnknown Mode = iota
	ModeMajor
	ModeMinor
)

func (m Mode) String() string {
	switch m {
	case ModeMajor:
		return "major"
	case ModeMinor:
		return "minor"
	}
	return "unknown"
}

// Key is a musical key: a pitch class (0 = C .. 11 = B) plus a mode.
// Serialized in the analyzer's text form, e.g. "C# minor" or "Ab major".
type Key struct {
	Tonic int
	Mode  Mode
}

var sharpNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var pitchClasses = map[string]int{
	"c": 0, "b#": 0,
	"c#": 1, "db": 1,
	"d": 2,
	"d#": 3, "eb": 3,
	"e": 4, "fb": 4,
	"f": 5, "e#": 5,
	"f#": 6, "gb": 6,
	"g": 7,
	"g#": 8, "ab": 8,
	"a": 9,
	"a#": 10, "bb": 10,
	"b": 11, "cb": 11,
}

// ParseKey parses the analyzer's "tonic mode" form. Enharmonic flat names are
// accepted; output always uses sharps.
func ParseKey(s string) (Key, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	if len(fields) != 2 {
		return Key{}, fmt.Errorf("parse key %q: want \"tonic mode\"", s)
	}

	tonic, ok := pitchClasses[fields[0]]
	if !ok {
		return Key{}, fmt.Errorf("parse key %q: unknown tonic %q", s, fields[0])
	}

	var mode Mode
	switch fields[1] {
	case "major", "maj":
		mode = ModeMajor
	case "minor", "min":
		mode = ModeMinor
	default:
		return Key{}, fmt.Errorf("parse key %q: unknown mode %q", s, fields[1])
	}

	return Key{Tonic: tonic, Mode: mode}, nil
}

// Known reports whether the key carries a real estimate.
func (k Key) Known() bool {
	return k.Mode == ModeMajor || k.Mode == ModeMinor
}

func (k Key) String() string {
	if !k.Known() {
		return ""
	}
	return sharpNames[k.Tonic%12] + " " + k.Mode.String()
}

// Relative returns the relative pairing: A minor for C major, C major for
// A minor. Unknown keys map to themselves.
func (k Key) Relative() Key {
	switch k.Mode {
	case ModeMajor:
		return Key{Tonic: (k.Tonic + 9) % 12, Mode: ModeMinor}
	case ModeMinor:
		return Key{Tonic: (k.Tonic + 3) % 12, Mode: ModeMajor}
	}
	return k
}

// Parallel returns the same-tonic key in the other mode (C major <-> C minor).
func (k Key) Parallel() Key {
	switch k.Mode {
	case ModeMajor:
		return Key{Tonic: k.Tonic, Mode: ModeMinor}
	case ModeMinor:
		return Key{Tonic: k.Tonic, Mode: ModeMajor}
	}
	return k
}

// FifthsDistance is the distance between two tonics on the circle of fifths,
// 0..6. Mode is ignored.
func (k Key) FifthsDistance(o Key) int {
	a := k.Tonic * 7 % 12
	b := o.Tonic * 7 % 12
	d := (a - b + 12) % 12
	if d > 6 {
		d = 12 - d
	}
	return d
}

func (k Key) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *Key) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*k = Key{}
		return nil
	}
	parsed, err := ParseKey(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
