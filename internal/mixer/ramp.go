package mixer

// Ramp moves a single gain linearly between two values over a span of
// beats. Pauses, resumes, and vocal stem mutes are all ramps.
type Ramp struct {
	StartBeat float64
	Beats     float64
	From, To  float64
}

// NewRamp builds a ramp from one gain to another starting at startBeat.
func NewRamp(startBeat, beats, from, to float64) Ramp {
	return Ramp{StartBeat: startBeat, Beats: beats, From: from, To: to}
}

// Gain evaluates the ramp at the given session beat, clamped to the
// endpoints outside the span.
func (r Ramp) Gain(beat float64) float64 {
	if r.Beats <= 0 {
		return r.To
	}
	p := (beat - r.StartBeat) / r.Beats
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return r.From + (r.To-r.From)*p
}

// Done reports whether the ramp has reached its target at the given beat.
func (r Ramp) Done(beat float64) bool {
	return r.Beats <= 0 || beat >= r.StartBeat+r.Beats
}
