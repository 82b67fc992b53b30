// Package monitor plays the live mix on the local audio device.
package monitor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"

	"github.com/seguelabs/segue/internal/audio"
	"github.com/seguelabs/segue/internal/stream"
)

// Monitor subscribes to the broadcaster like any network listener, so
// the local speakers hear exactly the frames stream clients get.
type Monitor struct {
	broadcaster *stream.Broadcaster
	listener    *stream.Listener
}

// New creates a monitor on the given feed.
func New(b *stream.Broadcaster) *Monitor {
	return &Monitor{broadcaster: b}
}

// Start opens the audio device and begins playback. Playback runs
// until ctx is canceled.
func (m *Monitor) Start(ctx context.Context) error {
	sr := beep.SampleRate(audio.SampleRate)
	if err := speaker.Init(sr, sr.N(100*time.Millisecond)); err != nil {
		return fmt.Errorf("open audio device: %w", err)
	}

	m.listener = m.broadcaster.Subscribe()
	speaker.Play(&feed{listener: m.listener})
	log.Printf("Monitor: local playback started")

	go func() {
		<-ctx.Done()
		speaker.Clear()
		m.broadcaster.Unsubscribe(m.listener)
		log.Printf("Monitor: local playback stopped")
	}()
	return nil
}

// feed adapts a broadcaster listener to a beep.Streamer. When the
// engine has no frame ready it pads with silence; stalling the device
// callback would glitch far worse than a missed frame.
type feed struct {
	listener *stream.Listener
	pending  []int16
	drained  bool
}

func (f *feed) Stream(samples [][2]float64) (int, bool) {
	if f.drained {
		return 0, false
	}
	for i := range samples {
		if len(f.pending) < audio.Channels {
			f.refill()
		}
		if f.drained {
			return i, i > 0
		}
		if len(f.pending) < audio.Channels {
			samples[i] = [2]float64{}
			continue
		}
		samples[i][0] = float64(f.pending[0]) / 32768
		samples[i][1] = float64(f.pending[1]) / 32768
		f.pending = f.pending[audio.Channels:]
	}
	return len(samples), true
}

func (f *feed) Err() error {
	return nil
}

// refill pulls the next frame without blocking. Returns without a new
// frame when the engine has not produced one yet.
func (f *feed) refill() {
	select {
	case frame, ok := <-f.listener.Frames:
		if !ok {
			f.drained = true
			return
		}
		f.pending = frame
	case <-f.listener.Done():
		f.drained = true
	default:
	}
}
