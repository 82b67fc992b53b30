package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/seguelabs/segue/internal/audio"
	"github.com/seguelabs/segue/internal/beatgrid"
	"github.com/seguelabs/segue/internal/catalog"
	"github.com/seguelabs/segue/internal/deck"
	"github.com/seguelabs/segue/internal/intent"
	"github.com/seguelabs/segue/internal/planner"
	"github.com/seguelabs/segue/internal/resolver"
)

// Submit resolves an intent and hands the finished work to the tick loop.
// The slow parts (catalog search, planning, decoding) run on the caller's
// goroutine; only the final scheduling step crosses into the loop. The
// returned error is the scheduling verdict: nil means accepted.
func (s *Session) Submit(ctx context.Context, it intent.Intent) error {
	switch v := it.(type) {
	case intent.MixIn:
		return s.submitTitle(ctx, v, v.Title, v.Bars, false)
	case intent.Start:
		return s.submitTitle(ctx, v, v.Title, s.params.MixBars, true)
	case intent.Pause:
		return s.roundTrip(ctx, &request{pause: true})
	case intent.FadeNow:
		return s.roundTrip(ctx, &request{fadeNow: true})
	case intent.ChangeEnergy:
		return s.submitEnergy(ctx, v)
	case intent.KeyMove:
		return s.submitKeyMove(ctx, v)
	case intent.Vocals:
		return s.submitVocals(ctx, v)
	default:
		return fmt.Errorf("unsupported intent %T", it)
	}
}

// submitTitle handles the two title-bearing intents. Soft resolution
// failures hold the intent for a follow-up instead of dropping it.
func (s *Session) submitTitle(ctx context.Context, it intent.Intent, title string, bars int, hard bool) error {
	if bars <= 0 {
		bars = s.params.MixBars
	}
	track, err := s.res.Resolve(title)
	if err != nil {
		if errors.Is(err, resolver.ErrBelowThreshold) || errors.Is(err, resolver.ErrAmbiguous) {
			if holdErr := s.roundTrip(ctx, &request{hold: &heldReq{it: it, reason: err.Error()}}); holdErr != nil {
				return holdErr
			}
			return fmt.Errorf("held: %w", err)
		}
		return err
	}
	track = analyzed(track)

	grid, samples, err := s.prepare(track)
	if err != nil {
		s.noteOutcome(ctx, "rejected: "+err.Error())
		return err
	}
	return s.roundTrip(ctx, &request{transition: &transitionReq{
		track:   track,
		grid:    grid,
		samples: samples,
		bars:    bars,
		hard:    hard,
		source:  it.String(),
	}})
}

func (s *Session) submitEnergy(ctx context.Context, v intent.ChangeEnergy) error {
	current, played, err := s.currentTrack()
	if err != nil {
		return err
	}
	cand, err := s.plan.EnergyCandidate(current, v.Delta, played)
	if err != nil {
		s.noteOutcome(ctx, "no candidate: "+err.Error())
		return err
	}
	return s.submitPlanned(ctx, v, cand)
}

func (s *Session) submitKeyMove(ctx context.Context, v intent.KeyMove) error {
	current, played, err := s.currentTrack()
	if err != nil {
		return err
	}
	if !current.Key.Known() {
		err := fmt.Errorf("%q has no key estimate: %w", current.Title, planner.ErrNoCandidate)
		s.noteOutcome(ctx, "no candidate: "+err.Error())
		return err
	}
	cand, err := s.plan.KeyCandidate(current, keyTarget(current.Key, v.Mode), played)
	if err != nil {
		s.noteOutcome(ctx, "no candidate: "+err.Error())
		return err
	}
	return s.submitPlanned(ctx, v, cand)
}

func (s *Session) submitPlanned(ctx context.Context, it intent.Intent, cand catalog.Track) error {
	cand = analyzed(cand)
	grid, samples, err := s.prepare(cand)
	if err != nil {
		s.noteOutcome(ctx, "rejected: "+err.Error())
		return err
	}
	return s.roundTrip(ctx, &request{transition: &transitionReq{
		track:   cand,
		grid:    grid,
		samples: samples,
		bars:    s.params.MixBars,
		source:  fmt.Sprintf("%s -> %q", it, cand.Title),
	}})
}

func (s *Session) submitVocals(ctx context.Context, v intent.Vocals) error {
	current, _, err := s.currentTrack()
	if err != nil {
		return err
	}
	if !v.Enabled {
		return s.roundTrip(ctx, &request{vocal: &vocalReq{enabled: false, trackID: current.ID}})
	}
	if current.VocalPath == "" {
		err := fmt.Errorf("%q has no vocal stem: %w", current.Title, planner.ErrNoCandidate)
		s.noteOutcome(ctx, "no candidate: "+err.Error())
		return err
	}
	stem, err := s.decode(current.VocalPath)
	if err != nil {
		err = fmt.Errorf("vocal stem for %q: %w: %v", current.Title, deck.ErrTrackUnavailable, err)
		s.noteOutcome(ctx, "rejected: "+err.Error())
		return err
	}
	return s.roundTrip(ctx, &request{vocal: &vocalReq{enabled: true, trackID: current.ID, stem: stem}})
}

// keyTarget maps a key move onto a concrete target key. A move whose target
// the session is already in resolves to the same key, asking the planner
// for a different track in it.
func keyTarget(current catalog.Key, mode intent.KeyMoveMode) catalog.Key {
	switch mode {
	case intent.KeySameMinor:
		return catalog.Key{Tonic: current.Tonic, Mode: catalog.ModeMinor}
	case intent.KeyRelativeMinor:
		if current.Mode == catalog.ModeMajor {
			return current.Relative()
		}
		return current
	}
	return catalog.Key{}
}

// prepare decodes a track and builds its beat grid, off the tick loop.
func (s *Session) prepare(t catalog.Track) (*beatgrid.Grid, []int16, error) {
	samples, err := s.decode(t.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("%q: %w: %v", t.Title, deck.ErrTrackUnavailable, err)
	}
	duration := float64(len(samples)/audio.Channels) / audio.SampleRate

	grid, err := s.loadGrid(t, duration)
	if err != nil {
		return nil, nil, err
	}
	return grid, samples, nil
}

// loadGrid prefers the analyzer's sidecar; tracks without one get a uniform
// grid synthesized from the catalog tempo.
func (s *Session) loadGrid(t catalog.Track, duration float64) (*beatgrid.Grid, error) {
	sc, err := beatgrid.LoadSidecar(beatgrid.SidecarPath(t.Path))
	switch {
	case err == nil:
		return sc.Grid(duration)
	case errors.Is(err, fs.ErrNotExist):
		bpm := beatgrid.FoldBPM(t.BPM)
		if bpm <= 0 {
			return nil, fmt.Errorf("%q has no tempo: no sidecar and no catalog bpm", t.Title)
		}
		return beatgrid.Uniform(bpm, 0, duration, s.params.PhraseBars)
	default:
		return nil, err
	}
}

// currentTrack reads the master track and played set from the latest
// snapshot. Planning against a snapshot is safe: lookups are pure, and the
// loop re-validates on integration.
func (s *Session) currentTrack() (catalog.Track, func(string) bool, error) {
	st := s.Status()
	if st.Master == "" {
		return catalog.Track{}, nil, fmt.Errorf("%w: use start to open the session", ErrNotPlaying)
	}
	var id string
	for _, d := range st.Decks {
		if d.Name == st.Master {
			id = d.TrackID
		}
	}
	t, ok := s.cat.Get(id)
	if !ok {
		return catalog.Track{}, nil, fmt.Errorf("master track %q not in catalog", id)
	}
	played := make(map[string]bool, len(st.Played))
	for _, p := range st.Played {
		played[p] = true
	}
	return analyzed(t), func(id string) bool { return played[id] }, nil
}

// analyzed lays the sidecar's key estimate over the catalog record. The
// tempo estimate reaches playback through the grid; key is the one analyzer
// field the planner and status read directly.
func analyzed(t catalog.Track) catalog.Track {
	sc, err := beatgrid.LoadSidecar(beatgrid.SidecarPath(t.Path))
	if err != nil {
		return t
	}
	if k, kerr := catalog.ParseKey(sc.Key); kerr == nil {
		t.Key = k
	}
	return t
}

// roundTrip sends a request to the tick loop and waits for its verdict.
func (s *Session) roundTrip(ctx context.Context, r *request) error {
	r.reply = make(chan error, 1)
	select {
	case s.reqCh <- r:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-r.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// noteOutcome records a submit-side failure in the status line. Best
// effort: the verdict already went to the caller.
func (s *Session) noteOutcome(ctx context.Context, note string) {
	_ = s.roundTrip(ctx, &request{note: note})
}
