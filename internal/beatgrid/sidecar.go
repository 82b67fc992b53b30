package beatgrid

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sidecar is the analyzer's per-track output, stored next to the audio file.
// Either an explicit beat list or a bpm+first_beat pair describes the grid;
// bpm and key also seed or override the catalog record on first load.
type Sidecar struct {
	BPM        float64   `yaml:"bpm"`
	Key        string    `yaml:"key,omitempty"`
	FirstBeat  float64   `yaml:"first_beat,omitempty"`
	Beats      []float64 `yaml:"beats,omitempty"`
	PhraseBars int       `yaml:"phrase_bars,omitempty"`
}

// SidecarPath returns the sidecar filename for an audio path:
// "track.mp3" -> "track.grid.yaml".
func SidecarPath(audioPath string) string {
	return strings.TrimSuffix(audioPath, filepath.Ext(audioPath)) + ".grid.yaml"
}

// LoadSidecar reads and parses a sidecar file.
func LoadSidecar(path string) (*Sidecar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("beatgrid: read sidecar %s: %w", path, err)
	}
	var s Sidecar
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("beatgrid: parse sidecar %s: %w", path, err)
	}
	return &s, nil
}

// Grid builds the beat grid the sidecar describes, for a track of the given
// duration in seconds. Explicit beat timestamps win over bpm+first_beat.
func (s *Sidecar) Grid(duration float64) (*Grid, error) {
	if len(s.Beats) >= 2 {
		return New(s.Beats, FoldBPM(s.BPM), s.PhraseBars)
	}
	return Uniform(FoldBPM(s.BPM), s.FirstBeat, duration, s.PhraseBars)
}

// FoldBPM folds a raw tempo estimate into [70, 180) by octave
// doubling/halving, matching how the analyzer normalizes half- and
// double-time estimates.
func FoldBPM(bpm float64) float64 {
	if bpm <= 0 {
		return bpm
	}
	for bpm < 70 {
		bpm *= 2
	}
	for bpm >= 180 {
		bpm /= 2
	}
	return bpm
}
