package engine

import (
	"fmt"
	"log"
	"sort"

	"github.com/seguelabs/segue/internal/audio"
	"github.com/seguelabs/segue/internal/deck"
)

// step is one tick of the session loop: integrate queued requests, run the
// scheduler, advance automation, and render one frame. Actions fire only
// once the clock reaches their beat, never early, and the whole tick runs
// on the loop goroutine, so nothing here takes a lock except the final
// status publish.
func (s *Session) step() []int16 {
	s.drainRequests()

	now := s.clock.Now()
	s.expireHeld(now)
	s.dispatchDue(now)
	s.automate(now)
	s.syncSlave()

	frame := s.render()
	s.finishEnded()
	s.publish()
	return frame
}

func (s *Session) expireHeld(now float64) {
	if s.held == nil || now < s.held.expires {
		return
	}
	log.Printf("Held intent expired: %s (%s)", s.held.it, s.held.reason)
	s.outcome = fmt.Sprintf("held intent expired: %s", s.held.it)
	s.held = nil
}

func (s *Session) dispatchDue(now float64) {
	var remaining []*action
	for _, a := range s.pending {
		if now < a.target {
			remaining = append(remaining, a)
			continue
		}
		s.execute(a, now)
	}
	s.pending = remaining
}

func (s *Session) execute(a *action, now float64) {
	switch a.kind {
	case actTransition:
		s.executeTransition(a, now)

	case actVocalOn:
		m := s.masterDeck()
		if m == nil || m.Track().ID != a.trackID {
			log.Printf("Vocal mix-in dropped: master changed before beat %.0f", a.target)
			s.outcome = "vocal mix-in dropped: master changed"
			return
		}
		ramp := s.stemRamp(now, 0, 1)
		s.vocal = &vocalLayer{trackID: a.trackID, samples: a.stem, ramp: &ramp}
		s.outcome = fmt.Sprintf("vocals in on %q", m.Track().Title)
		log.Printf("Vocals in on %q at beat %.1f", m.Track().Title, now)

	case actVocalOff:
		if s.vocal == nil {
			return
		}
		ramp := s.stemRamp(now, s.vocal.gain, 0)
		s.vocal.ramp = &ramp
		s.outcome = "vocals out"
		log.Printf("Vocals out at beat %.1f", now)
	}
}

func (s *Session) executeTransition(a *action, now float64) {
	master := s.masterDeck()
	if master == nil {
		// The master disappeared between scheduling and dispatch; start the
		// cued track outright rather than leaving silence.
		s.becomeMaster(a.deck, now)
		return
	}

	if err := a.deck.Play(now); err != nil {
		log.Printf("Transition aborted: %v", err)
		s.outcome = "transition aborted: " + err.Error()
		a.deck.Stop()
		return
	}
	s.played[a.deck.Track().ID] = true
	_ = master.BeginFade()
	s.xfade = &transition{
		fade: s.equalPowerFade(a.target, a.bars),
		out:  master,
		in:   a.deck,
	}
	s.outcome = fmt.Sprintf("crossfading %q -> %q over %d bars",
		master.Track().Title, a.deck.Track().Title, a.bars)
	log.Printf("Transition started at beat %.1f: %s -> %s over %d bars",
		a.target, master.Track(), a.deck.Track(), a.bars)
}

// becomeMaster plays a deck from the current beat and anchors the clock to
// it. Used for hard starts and for transitions whose outgoing deck is gone.
func (s *Session) becomeMaster(d *deck.Deck, now float64) {
	_ = d.Cue(now)
	if err := d.Play(now); err != nil {
		log.Printf("Start failed: %v", err)
		s.outcome = "start failed: " + err.Error()
		d.Stop()
		return
	}
	d.SetMaster(true)
	_ = d.SetGain(1)
	s.clock.SetMaster(d)
	s.played[d.Track().ID] = true
	s.outcome = fmt.Sprintf("started %q on deck %s", d.Track().Title, d.Name())
	log.Printf("Started %s on deck %s at beat %.1f (%.0f BPM)",
		d.Track(), d.Name(), now, d.Tempo())
}

func (s *Session) automate(now float64) {
	if s.xfade != nil {
		out, in := s.xfade.fade.Gains(now)
		_ = s.xfade.out.SetGain(out)
		if s.xfade.in != nil {
			_ = s.xfade.in.SetGain(in)
		}
		if s.xfade.fade.Done(now) {
			s.completeFade()
		}
	}

	if s.pauseRamp != nil {
		if m := s.masterDeck(); m != nil {
			_ = m.SetGain(s.pauseRamp.Gain(now))
		}
		if s.pauseRamp.Done(now) {
			s.pauseRamp = nil
		}
	}

	if s.vocal != nil && s.vocal.ramp != nil {
		s.vocal.gain = s.vocal.ramp.Gain(now)
		if s.vocal.ramp.Done(now) {
			s.vocal.ramp = nil
		}
	}
}

// completeFade finishes a crossfade: the outgoing deck empties and, for a
// deck-to-deck transition, the incoming deck takes the master role with the
// clock re-anchored to its grid.
func (s *Session) completeFade() {
	out, in := s.xfade.out, s.xfade.in
	s.xfade = nil

	outTrack := out.Track()
	if in == nil {
		s.clock.Clear() // freeze while out still reports its position
		_ = out.SetGain(0)
		out.Stop()
		s.vocal = nil
		s.paused = false
		s.pauseRamp = nil
		s.cancelLayer(layerVocal, "master faded out")
		s.outcome = fmt.Sprintf("faded %q to silence", outTrack.Title)
		log.Printf("Faded to silence: %s", outTrack)
		return
	}

	in.SetMaster(true)
	_ = in.SetGain(1)
	s.clock.SetMaster(in) // re-anchor before out goes away
	_ = out.SetGain(0)
	out.Stop()
	s.vocal = nil // stems belong to the outgoing master
	s.dropStaleVocalActions(in.Track().ID)
	s.outcome = fmt.Sprintf("master transferred to deck %s (%q)", in.Name(), in.Track().Title)
	log.Printf("Master transferred to deck %s: %s", in.Name(), in.Track())
}

// syncSlave phase-locks the fading-in deck to the master. A drift refusal
// is logged once; the deck then free-runs until its next load.
func (s *Session) syncSlave() {
	if s.xfade == nil || s.xfade.in == nil {
		return
	}
	in := s.xfade.in
	if in.SyncDisabled() || in.State() != deck.Playing {
		return
	}
	if err := in.SyncTo(s.clock.Tempo(), s.clock.Now()-in.SessionBeat()); err != nil {
		log.Printf("Sync disabled for deck %s: %v", in.Name(), err)
		s.outcome = fmt.Sprintf("deck %s unsynced: drift exceeded", in.Name())
	}
}

// render mixes both decks and the vocal stem into one frame. The stem reads
// at the master's own cursor so it stays sample-locked to the track it
// belongs to.
func (s *Session) render() []int16 {
	acc := make([]float64, audio.FrameSamples)
	buf := make([]int16, audio.FrameSamples)

	var stemPos, stemRate float64
	master := s.masterDeck()
	if master != nil {
		stemPos = master.Position() * audio.SampleRate
		stemRate = master.Rate()
	}

	for _, d := range [...]*deck.Deck{s.a, s.b} {
		d.ReadFrame(buf)
		audio.Accumulate(acc, buf, d.Gain())
	}

	if s.vocal != nil && master != nil && s.vocal.gain > 0 {
		audio.ReadAt(s.vocal.samples, stemPos, stemRate, buf)
		audio.Accumulate(acc, buf, s.vocal.gain)
	}
	return audio.Quantize(acc)
}

// finishEnded retires a master that ran out of audio. If a transition was
// already scheduled, its deck starts early instead of leaving silence.
func (s *Session) finishEnded() {
	m := s.masterDeck()
	if m == nil || !m.Ended() || s.xfade != nil {
		return
	}

	log.Printf("Track ended: %s", m.Track())
	endedTitle := m.Track().Title
	s.clock.Clear() // freeze before the deck forgets its grid
	m.Stop()
	s.paused = false
	s.pauseRamp = nil
	s.vocal = nil
	s.cancelLayer(layerVocal, "master track ended")
	s.outcome = fmt.Sprintf("track ended: %q", endedTitle)

	if a := s.pendingOn(layerMix); a != nil {
		s.removeAction(a)
		s.becomeMaster(a.deck, s.clock.Now())
	}
}

func (s *Session) publish() {
	st := Status{
		SessionID:   s.id,
		Beat:        s.clock.Now(),
		Bar:         s.clock.Bar(),
		Phrase:      s.clock.Phrase(),
		Tempo:       s.clock.Tempo(),
		Playing:     s.clock.Anchored(),
		Paused:      s.paused,
		Decks:       []DeckStatus{s.deckStatus(s.a), s.deckStatus(s.b)},
		LastOutcome: s.outcome,
	}
	if m := s.masterDeck(); m != nil {
		st.Master = m.Name()
	}
	if s.xfade != nil {
		tr := &TransitionStatus{
			From:      s.xfade.out.Name(),
			Shape:     s.xfade.fade.Shape.String(),
			StartBeat: s.xfade.fade.StartBeat,
			EndBeat:   s.xfade.fade.EndBeat(),
		}
		if s.xfade.in != nil {
			tr.To = s.xfade.in.Name()
		}
		st.Transition = tr
	}
	for _, a := range s.pending {
		st.Pending = append(st.Pending, ActionStatus{
			Token:      a.token,
			Kind:       a.kind.String(),
			Deck:       a.deck.Name(),
			TargetBeat: a.target,
			Note:       a.note,
		})
	}
	if s.held != nil {
		st.Held = &HeldStatus{
			Intent:      s.held.it.String(),
			Reason:      s.held.reason,
			ExpiresBeat: s.held.expires,
		}
	}
	if s.vocal != nil {
		st.Vocals = &VocalStatus{TrackID: s.vocal.trackID, Gain: s.vocal.gain}
	}
	if len(s.played) > 0 {
		st.Played = make([]string, 0, len(s.played))
		for id := range s.played {
			st.Played = append(st.Played, id)
		}
		sort.Strings(st.Played)
	}

	s.mu.Lock()
	s.stat = st
	s.mu.Unlock()
}

func (s *Session) deckStatus(d *deck.Deck) DeckStatus {
	ds := DeckStatus{
		Name:         d.Name(),
		State:        d.State().String(),
		Gain:         d.Gain(),
		Master:       d.Master(),
		Synced:       d.Synced(),
		SyncDisabled: d.SyncDisabled(),
	}
	if d.State() != deck.Empty {
		t := d.Track()
		ds.TrackID = t.ID
		ds.Title = t.Title
		ds.Artist = t.Artist
		ds.BPM = t.BPM
		ds.Key = t.Key.String()
		ds.Position = d.Position()
		ds.SessionBeat = d.SessionBeat()
	}
	return ds
}
