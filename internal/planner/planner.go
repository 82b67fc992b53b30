// Package planner picks the next track for directional moves: "take the
// energy up", "move to the relative minor". Selection is tempo-safe by
// construction: only tracks whose BPM sits within a window of the current
// master are considered, so the segue never needs a stretch the decks
// would refuse.
package planner

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/seguelabs/segue/internal/catalog"
)

// ErrNoCandidate means no track in the catalog satisfies the requested
// move. The session keeps playing; the caller reports and drops the intent.
var ErrNoCandidate = errors.New("no candidate track")

// DefaultBPMWindow is the fractional tempo window around the current
// master within which candidates are accepted.
const DefaultBPMWindow = 0.08

// Planner selects tracks from a catalog.
type Planner struct {
	cat    *catalog.Catalog
	window float64
}

// New builds a planner. window <= 0 selects DefaultBPMWindow.
func New(cat *catalog.Catalog, window float64) *Planner {
	if window <= 0 {
		window = DefaultBPMWindow
	}
	return &Planner{cat: cat, window: window}
}

// EnergyCandidate picks the track closest to the current energy shifted by
// delta, on the requested side: a positive delta only considers tracks with
// strictly higher energy, a negative delta strictly lower. played filters
// out tracks already used this session; nil means nothing has played.
func (p *Planner) EnergyCandidate(current catalog.Track, delta int, played func(id string) bool) (catalog.Track, error) {
	if current.Energy == 0 {
		return catalog.Track{}, fmt.Errorf("current track %q has no energy tag: %w", current.Title, ErrNoCandidate)
	}
	target := current.Energy + delta

	var cands []catalog.Track
	for _, t := range p.cat.Tracks() {
		if !p.eligible(t, current, played) || t.Energy == 0 {
			continue
		}
		switch {
		case delta > 0 && t.Energy <= current.Energy:
			continue
		case delta < 0 && t.Energy >= current.Energy:
			continue
		}
		cands = append(cands, t)
	}
	if len(cands) == 0 {
		return catalog.Track{}, fmt.Errorf("no track with energy %s %d within ±%.0f%% of %.0f BPM: %w",
			side(delta), current.Energy, p.window*100, current.BPM, ErrNoCandidate)
	}

	sort.SliceStable(cands, func(i, j int) bool {
		di, dj := abs(cands[i].Energy-target), abs(cands[j].Energy-target)
		if di != dj {
			return di < dj
		}
		bi := math.Abs(cands[i].BPM - current.BPM)
		bj := math.Abs(cands[j].BPM - current.BPM)
		if bi != bj {
			return bi < bj
		}
		return cands[i].Title < cands[j].Title
	})
	return cands[0], nil
}

// KeyCandidate picks a track in or next to the target key: an exact key
// match ranks first, then same-mode neighbors one step away on the circle
// of fifths. Ties break toward the closest tempo.
func (p *Planner) KeyCandidate(current catalog.Track, target catalog.Key, played func(id string) bool) (catalog.Track, error) {
	if !target.Known() {
		return catalog.Track{}, fmt.Errorf("target key unknown: %w", ErrNoCandidate)
	}

	type scored struct {
		t    catalog.Track
		rank int
	}
	var cands []scored
	for _, t := range p.cat.Tracks() {
		if !p.eligible(t, current, played) || !t.Key.Known() {
			continue
		}
		switch {
		case t.Key == target:
			cands = append(cands, scored{t, 0})
		case t.Key.Mode == target.Mode && t.Key.FifthsDistance(target) == 1:
			cands = append(cands, scored{t, 1})
		}
	}
	if len(cands) == 0 {
		return catalog.Track{}, fmt.Errorf("no track in or near %s within ±%.0f%% of %.0f BPM: %w",
			target, p.window*100, current.BPM, ErrNoCandidate)
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].rank != cands[j].rank {
			return cands[i].rank < cands[j].rank
		}
		bi := math.Abs(cands[i].t.BPM - current.BPM)
		bj := math.Abs(cands[j].t.BPM - current.BPM)
		if bi != bj {
			return bi < bj
		}
		return cands[i].t.Title < cands[j].t.Title
	})
	return cands[0].t, nil
}

// eligible applies the filters shared by every move: not the current track,
// not already played, and inside the tempo window.
func (p *Planner) eligible(t, current catalog.Track, played func(id string) bool) bool {
	if t.ID == current.ID {
		return false
	}
	if played != nil && played(t.ID) {
		return false
	}
	if current.BPM <= 0 || t.BPM <= 0 {
		return false
	}
	return math.Abs(t.BPM-current.BPM) <= current.BPM*p.window
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func side(delta int) string {
	if delta > 0 {
		return "above"
	}
	return "below"
}
