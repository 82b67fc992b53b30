// Package resolver turns free-text track references into catalog tracks with
// a confidence in [0,1]. It is a pure read-only capability over the catalog
// snapshot, so lookups may run on any goroutine.
package resolver

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/seguelabs/segue/internal/catalog"
)

var (
	// ErrBelowThreshold means no candidate scored above the confidence
	// threshold.
	ErrBelowThreshold = errors.New("below confidence threshold")
	// ErrAmbiguous means the top candidates scored too close to call.
	ErrAmbiguous = errors.New("ambiguous match")
)

// Field weights for blended free-text scoring.
const (
	titleWeight  = 0.55
	artistWeight = 0.40
	albumWeight  = 0.05

	// Top-two confidence gap below which a resolution is ambiguous.
	tieMargin = 0.05
)

// Match is one ranked candidate.
type Match struct {
	Track      catalog.Track
	Confidence float64
}

// Resolver scores queries against the catalog snapshot.
type Resolver struct {
	cat       *catalog.Catalog
	threshold float64
}

// New creates a resolver with the given selection threshold.
func New(cat *catalog.Catalog, threshold float64) *Resolver {
	return &Resolver{cat: cat, threshold: threshold}
}

// Threshold returns the selection threshold.
func (r *Resolver) Threshold() float64 { return r.threshold }

// Query returns all candidates with nonzero confidence, best first.
func (r *Resolver) Query(text string) []Match {
	q := parseQuery(text)
	scorer := newScorer(q)

	var out []Match
	for _, t := range r.cat.Tracks() {
		if !passesFilters(t, q) {
			continue
		}
		conf := scorer.confidence(t)
		if conf <= 0 {
			continue
		}
		out = append(out, Match{Track: t, Confidence: conf})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

// Resolve picks the single best candidate, or reports why it cannot.
func (r *Resolver) Resolve(text string) (catalog.Track, error) {
	matches := r.Query(text)
	if len(matches) == 0 || matches[0].Confidence < r.threshold {
		best := 0.0
		if len(matches) > 0 {
			best = matches[0].Confidence
		}
		return catalog.Track{}, fmt.Errorf("resolve %q: %w (best %.2f, threshold %.2f)",
			text, ErrBelowThreshold, best, r.threshold)
	}
	if len(matches) > 1 &&
		matches[1].Confidence >= r.threshold &&
		matches[0].Confidence-matches[1].Confidence < tieMargin {
		return catalog.Track{}, fmt.Errorf("resolve %q: %w (%s %.2f vs %s %.2f)",
			text, ErrAmbiguous,
			matches[0].Track.Title, matches[0].Confidence,
			matches[1].Track.Title, matches[1].Confidence)
	}
	return matches[0].Track, nil
}

func passesFilters(t catalog.Track, q query) bool {
	if q.bpmLo > 0 && t.BPM < q.bpmLo {
		return false
	}
	if q.bpmHi > 0 && t.BPM > q.bpmHi {
		return false
	}
	text := t.SearchText()
	for _, p := range q.phrases {
		if !strings.Contains(text, p) {
			return false
		}
	}
	return true
}

// scorer computes per-track confidence, caching the self-scores that
// normalize raw fuzzy scores to [0,1].
type scorer struct {
	q         query
	free      string
	selfScore map[string]int
}

func newScorer(q query) *scorer {
	return &scorer{q: q, free: strings.ToLower(q.freeText()), selfScore: make(map[string]int)}
}

// confidence blends weighted per-field scores with pure-title and
// whole-record scores, so both "titi" and "titi me pregunto bad bunny" land
// on the same track. Filter-only queries match everything that passed at
// full confidence.
func (s *scorer) confidence(t catalog.Track) float64 {
	if !s.q.hasScoringTerms() {
		return 1.0
	}

	conf := 0.0
	if s.free != "" {
		st := s.score(s.free, t.Title)
		sa := s.score(s.free, t.Artist)
		sal := s.score(s.free, t.Album)
		blended := titleWeight*st + artistWeight*sa + albumWeight*sal
		combined := s.score(s.free, t.SearchText())
		conf = max(blended, st, combined)
	}

	for field, value := range s.q.fields {
		var fs float64
		switch field {
		case "title":
			fs = s.score(strings.ToLower(value), t.Title)
		case "artist":
			fs = s.score(strings.ToLower(value), t.Artist)
		case "album":
			fs = s.score(strings.ToLower(value), t.Album)
		}
		// Pins are filters as much as scorers: a weak pin sinks the track.
		if fs < 0.5 {
			return 0
		}
		if s.free == "" {
			conf = max(conf, fs)
		}
	}
	return conf
}

// score normalizes a fuzzy match score by the pattern's self-score.
func (s *scorer) score(pattern, text string) float64 {
	if pattern == "" || text == "" {
		return 0
	}
	matches := fuzzy.Find(pattern, []string{strings.ToLower(text)})
	if len(matches) == 0 {
		return 0
	}
	self, ok := s.selfScore[pattern]
	if !ok {
		selfMatches := fuzzy.Find(pattern, []string{pattern})
		if len(selfMatches) == 0 || selfMatches[0].Score <= 0 {
			return 0
		}
		self = selfMatches[0].Score
		s.selfScore[pattern] = self
	}
	conf := float64(matches[0].Score) / float64(self)
	if conf < 0 {
		return 0
	}
	if conf > 1 {
		return 1
	}
	return conf
}
