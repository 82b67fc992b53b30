package audio

import "time"

const (
	SampleRate    = 48000
	Channels      = 2
	BitDepth      = 16
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960                  // samples per channel per 20ms frame
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame
	FrameBytes    = FrameSamples * 2     // bytes per frame (int16 = 2 bytes)
)

// FrameBeats returns how many beats one 20ms frame spans at the given tempo.
func FrameBeats(bpm float64) float64 {
	return bpm / 60.0 * FrameDuration.Seconds()
}

// SecondsToFrames converts a duration in seconds to whole per-channel frames.
func SecondsToFrames(sec float64) int {
	return int(sec * SampleRate)
}

// FramesToSeconds converts a per-channel frame count to seconds.
func FramesToSeconds(frames float64) float64 {
	return frames / SampleRate
}
