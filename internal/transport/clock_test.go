package transport

import (
	"errors"
	"testing"
)

type fakeSource struct {
	beat   float64
	tempo  float64
	phrase int
}

func (f *fakeSource) LocalBeat() float64 { return f.beat }
func (f *fakeSource) Tempo() float64     { return f.tempo }
func (f *fakeSource) PhraseBars() int    { return f.phrase }

func almost(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}

// --- Anchoring ---

func TestUnanchoredClock(t *testing.T) {
	c := NewClock()
	if c.Anchored() {
		t.Error("fresh clock reports anchored")
	}
	if c.Now() != 0 {
		t.Errorf("Now = %v, want 0", c.Now())
	}
	if c.Tempo() != 0 {
		t.Errorf("Tempo = %v, want 0", c.Tempo())
	}
	if _, err := c.Resolve(Offset{From: NextBar}); !errors.Is(err, ErrNoMaster) {
		t.Errorf("Resolve on unanchored clock: err = %v, want ErrNoMaster", err)
	}
}

func TestFirstAnchorStartsSessionAtZero(t *testing.T) {
	c := NewClock()
	src := &fakeSource{beat: 2.0, tempo: 120, phrase: 16}
	c.SetMaster(src)

	if !almost(c.Now(), 0) {
		t.Errorf("Now after first anchor = %v, want 0", c.Now())
	}

	src.beat = 6.5
	if !almost(c.Now(), 4.5) {
		t.Errorf("Now after advance = %v, want 4.5", c.Now())
	}
	if c.Tempo() != 120 {
		t.Errorf("Tempo = %v, want 120", c.Tempo())
	}
}

func TestMasterTransferIsContinuous(t *testing.T) {
	c := NewClock()
	a := &fakeSource{beat: 0, tempo: 120, phrase: 16}
	c.SetMaster(a)

	a.beat = 88 // session beat 88
	before := c.Now()

	// B was cued at session beat 56 and has played 32 local beats.
	b := &fakeSource{beat: 32, tempo: 124, phrase: 16}
	c.SetMaster(b)

	if !almost(c.Now(), before) {
		t.Errorf("Now jumped across transfer: %v -> %v", before, c.Now())
	}

	b.beat = 36
	if !almost(c.Now(), before+4) {
		t.Errorf("Now after post-transfer advance = %v, want %v", c.Now(), before+4)
	}
	if c.Tempo() != 124 {
		t.Errorf("Tempo after transfer = %v, want new master's 124", c.Tempo())
	}
}

func TestClearFreezesSessionBeat(t *testing.T) {
	c := NewClock()
	src := &fakeSource{beat: 0, tempo: 120, phrase: 16}
	c.SetMaster(src)
	src.beat = 40

	c.Clear()
	if c.Anchored() {
		t.Error("clock still anchored after Clear")
	}
	if !almost(c.Now(), 40) {
		t.Errorf("frozen Now = %v, want 40", c.Now())
	}

	// Re-anchor resumes from the frozen beat.
	next := &fakeSource{beat: 0, tempo: 100, phrase: 16}
	c.SetMaster(next)
	if !almost(c.Now(), 40) {
		t.Errorf("Now after re-anchor = %v, want 40", c.Now())
	}
}

// --- Offset resolution ---

func TestResolveNextBar(t *testing.T) {
	tests := []struct {
		now  float64
		bars int
		want float64
	}{
		{22, 0, 24},  // mid-bar rounds up
		{22, 8, 56},  // mix_in target: bar 6 start + 8 bars
		{24, 0, 28},  // exactly on a boundary is not "next"
		{0, 0, 4},    // session start
		{23.99, 0, 24},
	}
	for _, tt := range tests {
		c := NewClock()
		src := &fakeSource{beat: 0, tempo: 120, phrase: 16}
		c.SetMaster(src)
		src.beat = tt.now

		got, err := c.Resolve(Offset{From: NextBar, Bars: tt.bars})
		if err != nil {
			t.Errorf("Resolve at %v: %v", tt.now, err)
			continue
		}
		if !almost(got, tt.want) {
			t.Errorf("Resolve(next_bar+%d) at beat %v = %v, want %v", tt.bars, tt.now, got, tt.want)
		}
		if got <= tt.now {
			t.Errorf("Resolve result %v not strictly after %v", got, tt.now)
		}
	}
}

func TestResolveNextPhrase(t *testing.T) {
	c := NewClock()
	src := &fakeSource{beat: 0, tempo: 120, phrase: 16}
	c.SetMaster(src)
	src.beat = 100 // inside the second 16-bar phrase (beats 64..128)

	got, err := c.Resolve(Offset{From: NextPhrase, Bars: 0})
	if err != nil {
		t.Fatal(err)
	}
	if !almost(got, 128) {
		t.Errorf("next phrase from beat 100 = %v, want 128", got)
	}

	// The vocals default: next phrase + 16 bars lands one phrase later.
	got, err = c.Resolve(Offset{From: NextPhrase, Bars: 16})
	if err != nil {
		t.Fatal(err)
	}
	if !almost(got, 192) {
		t.Errorf("next_phrase+16 from beat 100 = %v, want 192 (bar 48)", got)
	}
}

func TestResolveHonorsGridPhraseLength(t *testing.T) {
	c := NewClock()
	src := &fakeSource{beat: 0, tempo: 120, phrase: 8} // 32-beat phrases
	c.SetMaster(src)
	src.beat = 10

	got, err := c.Resolve(Offset{From: NextPhrase, Bars: 0})
	if err != nil {
		t.Fatal(err)
	}
	if !almost(got, 32) {
		t.Errorf("next phrase with 8-bar phrases = %v, want 32", got)
	}
}

func TestBarIndex(t *testing.T) {
	c := NewClock()
	src := &fakeSource{beat: 0, tempo: 120, phrase: 16}
	c.SetMaster(src)

	tests := []struct {
		beat float64
		want int
	}{
		{0, 0},
		{3.9, 0},
		{4, 1},
		{22, 5},
		{88, 22},
	}
	for _, tt := range tests {
		src.beat = tt.beat
		if got := c.Bar(); got != tt.want {
			t.Errorf("Bar at beat %v = %d, want %d", tt.beat, got, tt.want)
		}
	}
}

func TestPhraseIndex(t *testing.T) {
	c := NewClock()
	src := &fakeSource{beat: 0, tempo: 120, phrase: 16}
	c.SetMaster(src)

	// A 16-bar phrase is 64 beats.
	tests := []struct {
		beat float64
		want int
	}{
		{0, 0},
		{63.9, 0},
		{64, 1},
		{192, 3},
	}
	for _, tt := range tests {
		src.beat = tt.beat
		if got := c.Phrase(); got != tt.want {
			t.Errorf("Phrase at beat %v = %d, want %d", tt.beat, got, tt.want)
		}
	}
}
