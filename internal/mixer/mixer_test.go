package mixer

import (
	"math"
	"testing"
)

func approxEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// --- equal-power crossfade ---

func TestCrossfadeEndpoints(t *testing.T) {
	// An 8 bar fade starting at beat 56 runs to beat 88.
	c := NewCrossfade(56, 32)

	if got := c.EndBeat(); got != 88 {
		t.Errorf("EndBeat() = %v, want 88", got)
	}

	out, in := c.Gains(56)
	if !approxEq(out, 1) || !approxEq(in, 0) {
		t.Errorf("Gains(start) = (%v, %v), want (1, 0)", out, in)
	}

	out, in = c.Gains(88)
	if !approxEq(out, 0) || !approxEq(in, 1) {
		t.Errorf("Gains(end) = (%v, %v), want (0, 1)", out, in)
	}

	// Halfway, both decks sit at cos(pi/4).
	out, in = c.Gains(72)
	want := math.Sqrt2 / 2
	if !approxEq(out, want) || !approxEq(in, want) {
		t.Errorf("Gains(mid) = (%v, %v), want (%v, %v)", out, in, want, want)
	}
}

func TestCrossfadeConstantPower(t *testing.T) {
	c := NewCrossfade(0, 32)
	for beat := -4.0; beat <= 40; beat += 0.25 {
		out, in := c.Gains(beat)
		if p := out*out + in*in; !approxEq(p, 1) {
			t.Fatalf("beat %v: out^2+in^2 = %v, want 1", beat, p)
		}
	}
}

func TestCrossfadeProgressClamps(t *testing.T) {
	c := NewCrossfade(56, 32)
	tests := []struct {
		beat float64
		want float64
	}{
		{40, 0},
		{56, 0},
		{64, 0.25},
		{72, 0.5},
		{88, 1},
		{120, 1},
	}
	for _, tt := range tests {
		if got := c.Progress(tt.beat); !approxEq(got, tt.want) {
			t.Errorf("Progress(%v) = %v, want %v", tt.beat, got, tt.want)
		}
	}
	if c.Done(87.9) {
		t.Error("Done(87.9) = true, want false")
	}
	if !c.Done(88) {
		t.Error("Done(88) = false, want true")
	}
}

func TestCrossfadeZeroLength(t *testing.T) {
	c := NewCrossfade(10, 0)
	if !c.Done(10) {
		t.Error("zero-length fade should be done at its start beat")
	}
	out, in := c.Gains(10)
	if !approxEq(out, 0) || !approxEq(in, 1) {
		t.Errorf("Gains = (%v, %v), want (0, 1)", out, in)
	}
}

// --- fast fade override ---

func TestFastFadePicksUpRunningGains(t *testing.T) {
	// A fade-now arrives a quarter of the way into an 8 bar crossfade. The
	// override starts from the exact gains that were sounding.
	c := NewCrossfade(56, 32)
	out, in := c.Gains(64)

	fast := FastFade(64, 8, out, in)

	gotOut, gotIn := fast.Gains(64)
	if !approxEq(gotOut, out) || !approxEq(gotIn, in) {
		t.Errorf("Gains(start) = (%v, %v), want captured (%v, %v)", gotOut, gotIn, out, in)
	}

	gotOut, gotIn = fast.Gains(72)
	if !approxEq(gotOut, 0) || !approxEq(gotIn, 1) {
		t.Errorf("Gains(end) = (%v, %v), want (0, 1)", gotOut, gotIn)
	}

	// Linear in between.
	gotOut, gotIn = fast.Gains(68)
	if !approxEq(gotOut, out/2) || !approxEq(gotIn, in+(1-in)/2) {
		t.Errorf("Gains(mid) = (%v, %v), want (%v, %v)", gotOut, gotIn, out/2, in+(1-in)/2)
	}
}

// --- ramps ---

func TestRampGain(t *testing.T) {
	// Pause: one bar from full to silent starting at beat 16.
	r := NewRamp(16, 4, 1, 0)
	tests := []struct {
		beat float64
		want float64
	}{
		{12, 1},
		{16, 1},
		{18, 0.5},
		{20, 0},
		{30, 0},
	}
	for _, tt := range tests {
		if got := r.Gain(tt.beat); !approxEq(got, tt.want) {
			t.Errorf("Gain(%v) = %v, want %v", tt.beat, got, tt.want)
		}
	}
	if r.Done(19.5) {
		t.Error("Done(19.5) = true, want false")
	}
	if !r.Done(20) {
		t.Error("Done(20) = false, want true")
	}
}

func TestRampReverse(t *testing.T) {
	// Resume: silent back to full.
	r := NewRamp(24, 4, 0, 1)
	if got := r.Gain(26); !approxEq(got, 0.5) {
		t.Errorf("Gain(26) = %v, want 0.5", got)
	}
	if got := r.Gain(28); !approxEq(got, 1) {
		t.Errorf("Gain(28) = %v, want 1", got)
	}
}

func TestRampZeroLength(t *testing.T) {
	r := NewRamp(8, 0, 1, 0)
	if got := r.Gain(8); got != 0 {
		t.Errorf("Gain(8) = %v, want 0", got)
	}
	if !r.Done(8) {
		t.Error("zero-length ramp should be immediately done")
	}
}

func TestShapeString(t *testing.T) {
	tests := []struct {
		shape Shape
		want  string
	}{
		{EqualPower, "equal_power"},
		{Linear, "linear"},
		{Shape(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.shape.String(); got != tt.want {
			t.Errorf("Shape(%d).String() = %q, want %q", tt.shape, got, tt.want)
		}
	}
}
