// Package engine is the session coordinator: it owns the two decks, the
// transport clock, and the pending action queue, and turns operator intents
// into beat-scheduled deck and crossfader moves. A single tick loop running
// at frame granularity is the only mutator of playback state; intent
// resolution (catalog search, planning, decoding) happens on the caller's
// goroutine and hands finished work to the loop over a channel.
package engine

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/seguelabs/segue/internal/audio"
	"github.com/seguelabs/segue/internal/beatgrid"
	"github.com/seguelabs/segue/internal/catalog"
	"github.com/seguelabs/segue/internal/deck"
	"github.com/seguelabs/segue/internal/intent"
	"github.com/seguelabs/segue/internal/mixer"
	"github.com/seguelabs/segue/internal/planner"
	"github.com/seguelabs/segue/internal/resolver"
	"github.com/seguelabs/segue/internal/transport"
)

var (
	// ErrNotPlaying means the intent needs a running master deck.
	ErrNotPlaying = errors.New("nothing playing")
	// ErrBusy means both decks are tied up in a transition.
	ErrBusy = errors.New("both decks busy in a transition")
)

// Params holds the session's musical tuning. Zero values select defaults.
type Params struct {
	MixBars        int     // default transition length in bars
	FadeNowBars    int     // fade_now fade length
	PauseBars      int     // pause/resume and stem ramp length
	HoldBars       int     // bars an unresolved intent is held before expiry
	VocalDelayBars int     // vocal entrance offset past the next phrase
	PhraseBars     int     // phrase length for tracks without a sidecar
	MaxStretch     float64 // slave deck rate bound
}

func (p Params) withDefaults() Params {
	if p.MixBars <= 0 {
		p.MixBars = intent.DefaultMixBars
	}
	if p.FadeNowBars <= 0 {
		p.FadeNowBars = 2
	}
	if p.PauseBars <= 0 {
		p.PauseBars = 1
	}
	if p.HoldBars <= 0 {
		p.HoldBars = 8
	}
	if p.VocalDelayBars <= 0 {
		p.VocalDelayBars = 16
	}
	if p.PhraseBars <= 0 {
		p.PhraseBars = beatgrid.DefaultPhraseBars
	}
	if p.MaxStretch <= 0 {
		p.MaxStretch = deck.DefaultMaxStretch
	}
	return p
}

// Session is one live mixing session: two decks, a clock, and the intent
// scheduler between them.
type Session struct {
	id     string
	cat    *catalog.Catalog
	res    *resolver.Resolver
	plan   *planner.Planner
	decode audio.DecodeFunc
	params Params

	clock *transport.Clock
	a, b  *deck.Deck

	reqCh   chan *request
	frameCh chan []int16

	// Everything below is owned by the tick loop.
	pending   []*action
	xfade     *transition
	held      *heldIntent
	vocal     *vocalLayer
	pauseRamp *mixer.Ramp
	paused    bool
	played    map[string]bool
	outcome   string

	mu   sync.RWMutex
	stat Status
}

// request is one unit of finished off-loop work handed to the tick loop.
// Exactly one payload field is set; reply always receives the integration
// result.
type request struct {
	transition *transitionReq
	vocal      *vocalReq
	pause      bool
	fadeNow    bool
	hold       *heldReq
	note       string

	reply chan error
}

type transitionReq struct {
	track   catalog.Track
	grid    *beatgrid.Grid
	samples []int16
	bars    int
	hard    bool   // start: replace programming instead of crossfading
	source  string // intent description for logs and status
}

type vocalReq struct {
	enabled bool
	trackID string
	stem    []int16
}

type heldReq struct {
	it     intent.Intent
	reason string
}

// layer identifies the automation chain an action belongs to, for the
// last-submitted-wins conflict rule.
type layer int

const (
	layerMix layer = iota
	layerVocal
)

type actionKind int

const (
	actTransition actionKind = iota
	actVocalOn
	actVocalOff
)

func (k actionKind) String() string {
	switch k {
	case actTransition:
		return "transition"
	case actVocalOn:
		return "vocal_on"
	case actVocalOff:
		return "vocal_off"
	}
	return "unknown"
}

// action is one scheduled move waiting for its session beat. The token
// identifies it in logs and status until it runs or is canceled.
type action struct {
	token   string
	kind    actionKind
	layer   layer
	target  float64
	deck    *deck.Deck
	bars    int
	stem    []int16
	trackID string
	note    string
}

// transition is a crossfade in flight. in is nil for a plain fade to
// silence.
type transition struct {
	fade mixer.Crossfade
	out  *deck.Deck
	in   *deck.Deck
}

// heldIntent is an unresolved title intent kept for a disambiguating
// follow-up. Expiry is measured in session beats, not wall clock.
type heldIntent struct {
	it      intent.Intent
	reason  string
	expires float64
}

// vocalLayer is the auxiliary stem mixed on top of the master deck's
// playback position.
type vocalLayer struct {
	trackID string
	samples []int16
	gain    float64
	ramp    *mixer.Ramp
}

// New builds a session. decode turns an audio path into interleaved stereo
// PCM; tests substitute synthetic audio here.
func New(cat *catalog.Catalog, res *resolver.Resolver, plan *planner.Planner, decode audio.DecodeFunc, params Params) *Session {
	p := params.withDefaults()
	s := &Session{
		id:      uuid.NewString(),
		cat:     cat,
		res:     res,
		plan:    plan,
		decode:  decode,
		params:  p,
		clock:   transport.NewClock(),
		a:       deck.New("A", p.MaxStretch),
		b:       deck.New("B", p.MaxStretch),
		reqCh:   make(chan *request, 16),
		frameCh: make(chan []int16, 8),
		played:  make(map[string]bool),
		outcome: "idle",
	}
	s.publish()
	return s
}

// Run drives the session at frame granularity until ctx is canceled. Each
// tick integrates queued requests, dispatches due actions, advances gain
// automation, and renders one frame onto Frames.
func (s *Session) Run(ctx context.Context) error {
	ticker := time.NewTicker(audio.FrameDuration)
	defer ticker.Stop()

	log.Printf("Session loop started (%v frames)", audio.FrameDuration)
	for {
		select {
		case <-ctx.Done():
			log.Printf("Session loop stopped")
			return ctx.Err()
		case <-ticker.C:
			frame := s.step()
			select {
			case s.frameCh <- frame:
			case <-ctx.Done():
				log.Printf("Session loop stopped")
				return ctx.Err()
			}
		}
	}
}

// Frames is the rendered output, one 20ms stereo frame per tick.
func (s *Session) Frames() <-chan []int16 {
	return s.frameCh
}

// Status returns the latest published snapshot.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stat
}

func (s *Session) masterDeck() *deck.Deck {
	switch {
	case s.a.Master():
		return s.a
	case s.b.Master():
		return s.b
	}
	return nil
}

func (s *Session) otherDeck(d *deck.Deck) *deck.Deck {
	if d == s.a {
		return s.b
	}
	return s.a
}

func newToken() string {
	return uuid.NewString()
}
