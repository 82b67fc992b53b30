package engine

import (
	"errors"
	"fmt"
	"log"

	"github.com/seguelabs/segue/internal/beatgrid"
	"github.com/seguelabs/segue/internal/deck"
	"github.com/seguelabs/segue/internal/mixer"
	"github.com/seguelabs/segue/internal/transport"
)

// drainRequests integrates the off-loop work queued since the last tick.
// Every request gets its verdict on the reply channel.
func (s *Session) drainRequests() {
	for {
		select {
		case r := <-s.reqCh:
			r.reply <- s.integrate(r)
		default:
			return
		}
	}
}

func (s *Session) integrate(r *request) error {
	switch {
	case r.transition != nil && r.transition.hard:
		return s.integrateStart(r.transition)
	case r.transition != nil:
		return s.integrateMixIn(r.transition)
	case r.vocal != nil:
		return s.integrateVocal(r.vocal)
	case r.pause:
		return s.integratePause()
	case r.fadeNow:
		return s.integrateFadeNow()
	case r.hold != nil:
		s.integrateHold(r.hold)
		return nil
	case r.note != "":
		s.outcome = r.note
		return nil
	}
	return nil
}

// integrateMixIn schedules a crossfaded entrance: cue the idle deck at the
// next bar boundary plus the transition length, then fade over the same
// span. The target beat is resolved here, on the loop, so it is computed
// against the same clock state the dispatcher will see.
func (s *Session) integrateMixIn(r *transitionReq) error {
	master := s.masterDeck()
	if master == nil {
		return fmt.Errorf("%w: use start to open the session", ErrNotPlaying)
	}
	if s.paused {
		return errors.New("session is paused: resume before mixing")
	}

	in := s.claimIdleDeck(master)
	if in == nil {
		return ErrBusy
	}
	if err := in.Load(r.track, r.grid, r.samples); err != nil {
		return err
	}

	target, err := s.clock.Resolve(transport.Offset{From: transport.NextBar, Bars: r.bars})
	if err != nil {
		in.Stop()
		return err
	}
	_ = in.Cue(target)

	a := &action{
		token:  newToken(),
		kind:   actTransition,
		layer:  layerMix,
		target: target,
		deck:   in,
		bars:   r.bars,
		note:   r.source,
	}
	s.pending = append(s.pending, a)
	s.clearHeld("superseded by " + r.source)
	s.outcome = fmt.Sprintf("scheduled %s at beat %.0f", r.source, target)
	log.Printf("Scheduled %s: deck %s cued at beat %.0f (bar %d, token %s)",
		r.source, in.Name(), target, int(target)/beatgrid.BeatsPerBar, a.token)
	return nil
}

// integrateStart replaces the whole programming: pending actions, fades,
// stems, and both decks give way to the named track playing from the
// current beat.
func (s *Session) integrateStart(r *transitionReq) error {
	s.cancelAll("superseded by " + r.source)
	s.xfade = nil
	s.vocal = nil
	s.pauseRamp = nil
	s.paused = false
	s.clock.Clear()
	s.a.Stop()
	s.b.Stop()

	d := s.a
	if err := d.Load(r.track, r.grid, r.samples); err != nil {
		s.outcome = "rejected: " + err.Error()
		return err
	}
	s.clearHeld("superseded by " + r.source)
	s.becomeMaster(d, s.clock.Now())
	return nil
}

func (s *Session) integratePause() error {
	master := s.masterDeck()
	if master == nil {
		return ErrNotPlaying
	}
	if s.xfade != nil {
		return errors.New("transition in progress")
	}

	now := s.clock.Now()
	span := float64(s.params.PauseBars) * beatgrid.BeatsPerBar
	if s.paused {
		ramp := mixer.NewRamp(now, span, master.Gain(), 1)
		s.pauseRamp = &ramp
		s.paused = false
		s.outcome = "resuming"
		log.Printf("Resuming %q over %d bar(s)", master.Track().Title, s.params.PauseBars)
	} else {
		ramp := mixer.NewRamp(now, span, master.Gain(), 0)
		s.pauseRamp = &ramp
		s.paused = true
		s.outcome = "pausing"
		log.Printf("Pausing %q over %d bar(s)", master.Track().Title, s.params.PauseBars)
	}
	return nil
}

// integrateFadeNow cuts the current programming short. An active crossfade
// is overridden in place; a scheduled one is pulled forward to this beat;
// with neither, the master fades to silence and the session stops.
func (s *Session) integrateFadeNow() error {
	now := s.clock.Now()
	span := float64(s.params.FadeNowBars) * beatgrid.BeatsPerBar

	if s.xfade != nil {
		out, in := s.xfade.fade.Gains(now)
		s.xfade.fade = mixer.FastFade(now, span, out, in)
		s.outcome = fmt.Sprintf("fade-now: completing by beat %.0f", now+span)
		log.Printf("Fade-now: overriding transition, done at beat %.0f", now+span)
		return nil
	}

	if a := s.pendingOn(layerMix); a != nil {
		master := s.masterDeck()
		if master == nil {
			return ErrNotPlaying
		}
		s.removeAction(a)
		_ = a.deck.Cue(now)
		if err := a.deck.Play(now); err != nil {
			a.deck.Stop()
			return err
		}
		s.played[a.deck.Track().ID] = true
		_ = master.BeginFade()
		s.xfade = &transition{
			fade: mixer.FastFade(now, span, master.Gain(), 0),
			out:  master,
			in:   a.deck,
		}
		s.outcome = fmt.Sprintf("fade-now: %q in early", a.deck.Track().Title)
		log.Printf("Fade-now: pulled %s forward to beat %.1f", a.note, now)
		return nil
	}

	master := s.masterDeck()
	if master == nil {
		return ErrNotPlaying
	}
	_ = master.BeginFade()
	s.xfade = &transition{
		fade: mixer.FastFade(now, span, master.Gain(), 0),
		out:  master,
	}
	s.outcome = fmt.Sprintf("fading %q to silence", master.Track().Title)
	log.Printf("Fade-now: fading %q to silence by beat %.0f", master.Track().Title, now+span)
	return nil
}

// integrateVocal schedules the stem layer on or off at the phrase after
// next, so the entrance lands on structure rather than mid-phrase.
func (s *Session) integrateVocal(r *vocalReq) error {
	master := s.masterDeck()
	if master == nil {
		return ErrNotPlaying
	}
	if r.enabled && master.Track().ID != r.trackID {
		return errors.New("master changed while preparing the stem")
	}

	target, err := s.clock.Resolve(transport.Offset{From: transport.NextPhrase, Bars: s.params.VocalDelayBars})
	if err != nil {
		return err
	}
	s.cancelLayer(layerVocal, "superseded by a later vocals intent")

	a := &action{
		token:   newToken(),
		layer:   layerVocal,
		target:  target,
		deck:    master,
		stem:    r.stem,
		trackID: r.trackID,
	}
	if r.enabled {
		a.kind = actVocalOn
		a.note = fmt.Sprintf("vocals in on %q", master.Track().Title)
	} else {
		a.kind = actVocalOff
		a.note = fmt.Sprintf("vocals out on %q", master.Track().Title)
	}
	s.pending = append(s.pending, a)
	s.outcome = fmt.Sprintf("%s scheduled at beat %.0f", a.note, target)
	log.Printf("Scheduled %s at beat %.0f (bar %d, token %s)",
		a.note, target, int(target)/beatgrid.BeatsPerBar, a.token)
	return nil
}

func (s *Session) integrateHold(r *heldReq) {
	if s.held != nil {
		log.Printf("Held intent replaced: %s", s.held.it)
	}
	expires := s.clock.Now() + float64(s.params.HoldBars)*beatgrid.BeatsPerBar
	s.held = &heldIntent{it: r.it, reason: r.reason, expires: expires}
	s.outcome = fmt.Sprintf("held %s: %s", r.it, r.reason)
	log.Printf("Holding %s (%s); expires at beat %.0f", r.it, r.reason, expires)
}

// claimIdleDeck picks the deck a new transition will enter on. A deck that
// is merely cued for a not-yet-started transition is reclaimed under the
// last-submitted-wins rule; decks inside an active fade are not.
func (s *Session) claimIdleDeck(master *deck.Deck) *deck.Deck {
	other := s.otherDeck(master)
	switch {
	case other.Idle():
		return other
	case other.State() == deck.Cueing:
		s.cancelLayer(layerMix, "superseded by a later intent")
		other.Stop()
		return other
	}
	return nil
}

func (s *Session) clearHeld(reason string) {
	if s.held == nil {
		return
	}
	log.Printf("Held intent dropped: %s (%s)", s.held.it, reason)
	s.held = nil
}

func (s *Session) pendingOn(l layer) *action {
	for _, a := range s.pending {
		if a.layer == l {
			return a
		}
	}
	return nil
}

func (s *Session) removeAction(target *action) {
	var keep []*action
	for _, a := range s.pending {
		if a != target {
			keep = append(keep, a)
		}
	}
	s.pending = keep
}

func (s *Session) cancelLayer(l layer, reason string) {
	var keep []*action
	for _, a := range s.pending {
		if a.layer != l {
			keep = append(keep, a)
			continue
		}
		log.Printf("Canceled %s (token %s): %s", a.note, a.token, reason)
		if a.kind == actTransition {
			a.deck.Stop()
		}
	}
	s.pending = keep
}

func (s *Session) cancelAll(reason string) {
	for _, a := range s.pending {
		log.Printf("Canceled %s (token %s): %s", a.note, a.token, reason)
	}
	s.pending = nil
}

// dropStaleVocalActions removes pending stem entrances that belong to a
// track no longer on the master deck.
func (s *Session) dropStaleVocalActions(masterID string) {
	var keep []*action
	for _, a := range s.pending {
		if a.kind == actVocalOn && a.trackID != masterID {
			log.Printf("Canceled %s (token %s): master changed", a.note, a.token)
			continue
		}
		keep = append(keep, a)
	}
	s.pending = keep
}

func (s *Session) stemRamp(now, from, to float64) mixer.Ramp {
	return mixer.NewRamp(now, float64(s.params.PauseBars)*beatgrid.BeatsPerBar, from, to)
}

func (s *Session) equalPowerFade(start float64, bars int) mixer.Crossfade {
	return mixer.NewCrossfade(start, float64(bars)*beatgrid.BeatsPerBar)
}
