package camera

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
)

// Facing selects which camera the browser should use.
type Facing string

const (
	FacingEnvironment Facing = "environment"
	FacingUser        Facing = "user"
)

// Constraints describe the stream requested from a Device. Source names the
// concrete feed: a panel id for FeedDevice, a target id for TabDevice.
type Constraints struct {
	Facing Facing
	Source string
	Audio  bool
}

// Track is one media track of a stream.
type Track interface {
	Kind() string
	Live() bool
	Stop()
}

// Stream is a live camera stream.
type Stream interface {
	ID() string
	Tracks() []Track
	Resolution() (width, height int)
	Frame(ctx context.Context) (image.Image, error)
}

// Device acquires camera streams.
type Device interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// StopAll stops every track of s. A nil stream is ignored.
func StopAll(s Stream) {
	if s == nil {
		return
	}
	for _, t := range s.Tracks() {
		t.Stop()
	}
}

// Live reports whether any track of s is still live.
func Live(s Stream) bool {
	if s == nil {
		return false
	}
	for _, t := range s.Tracks() {
		if t.Live() {
			return true
		}
	}
	return false
}

// videoTrack runs onStop exactly once.
type videoTrack struct {
	stopped atomic.Bool
	once    sync.Once
	onStop  func()
}

func newVideoTrack(onStop func()) *videoTrack {
	return &videoTrack{onStop: onStop}
}

func (t *videoTrack) Kind() string { return "video" }

func (t *videoTrack) Live() bool { return !t.stopped.Load() }

func (t *videoTrack) Stop() {
	t.once.Do(func() {
		t.stopped.Store(true)
		if t.onStop != nil {
			t.onStop()
		}
	})
}
