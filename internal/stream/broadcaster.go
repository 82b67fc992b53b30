package stream

import (
	"context"
	"sync"
)

// listenerBuffer is how many 20ms frames a listener may fall behind
// before the broadcast starts dropping frames for it (~3 seconds).
const listenerBuffer = 150

// Broadcaster fans the engine's rendered mix out to every connected
// listener. There is one broadcaster per session; HTTP and WebRTC
// handlers subscribe on connect and unsubscribe on disconnect.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners map[*Listener]struct{}
}

// Listener is one subscription to the live mix feed.
type Listener struct {
	Frames chan []int16 // 20ms stereo PCM frames
	done   chan struct{}
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		listeners: make(map[*Listener]struct{}),
	}
}

// Subscribe registers a listener on the mix feed.
func (b *Broadcaster) Subscribe() *Listener {
	l := &Listener{
		Frames: make(chan []int16, listenerBuffer),
		done:   make(chan struct{}),
	}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	b.mu.Unlock()
	return l
}

// Done is closed when the listener is unsubscribed.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

// Unsubscribe removes a listener and signals it to stop.
func (b *Broadcaster) Unsubscribe(l *Listener) {
	b.mu.Lock()
	delete(b.listeners, l)
	b.mu.Unlock()
	close(l.done)
}

// ListenerCount returns the number of active listeners.
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Run forwards frames from the engine to all listeners until ctx is
// canceled or the source closes. A listener whose buffer is full has
// frames dropped rather than stalling the rest of the feed.
func (b *Broadcaster) Run(ctx context.Context, source <-chan []int16) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-source:
			if !ok {
				return
			}
			b.mu.RLock()
			for l := range b.listeners {
				select {
				case l.Frames <- frame:
				default:
					// listener too slow, drop and keep the mix moving
				}
			}
			b.mu.RUnlock()
		}
	}
}
