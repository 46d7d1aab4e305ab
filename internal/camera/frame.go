package camera

import (
	"context"
	"errors"
	"image"
	"sync"
)

// ErrStreamStopped is returned by Frame once the stream has been stopped.
var ErrStreamStopped = errors.New("camera stream stopped")

// frameBuffer holds the latest decoded frame of a stream.
type frameBuffer struct {
	mu      sync.Mutex
	img     image.Image
	ready   chan struct{}
	readyOK sync.Once
	closed  chan struct{}
	closeOK sync.Once
}

func newFrameBuffer() *frameBuffer {
	return &frameBuffer{
		ready:  make(chan struct{}),
		closed: make(chan struct{}),
	}
}

func (b *frameBuffer) set(img image.Image) {
	b.mu.Lock()
	b.img = img
	b.mu.Unlock()
	b.readyOK.Do(func() { close(b.ready) })
}

func (b *frameBuffer) close() {
	b.closeOK.Do(func() { close(b.closed) })
}

func (b *frameBuffer) resolution() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.img == nil {
		return 0, 0
	}
	r := b.img.Bounds()
	return r.Dx(), r.Dy()
}

// latest waits for the first frame, then returns the newest one.
func (b *frameBuffer) latest(ctx context.Context) (image.Image, error) {
	select {
	case <-b.closed:
		return nil, ErrStreamStopped
	default:
	}
	select {
	case <-b.ready:
	case <-b.closed:
		return nil, ErrStreamStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.img, nil
}
