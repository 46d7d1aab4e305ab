package camera

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"

	"github.com/dgnsrekt/bingo_bridge/internal/types"
)

// FeedDevice serves a websocket that browsers push camera frames into. Each
// connection is keyed by the ?id= query parameter and backs at most one
// stream; stopping the stream closes the socket.
type FeedDevice struct {
	openTimeout time.Duration

	mu      sync.Mutex
	feeds   map[string]*feed
	changed chan struct{}
}

type feed struct {
	id      string
	conn    net.Conn
	writeMu sync.Mutex
	buf     *frameBuffer
	claimed bool
	once    sync.Once
}

type feedControl struct {
	Type   string `json:"type"`
	Facing Facing `json:"facing,omitempty"`
	Audio  bool   `json:"audio,omitempty"`
}

// NewFeedDevice creates a device. Open waits up to openTimeout for the
// browser to connect.
func NewFeedDevice(openTimeout time.Duration) *FeedDevice {
	if openTimeout <= 0 {
		openTimeout = 10 * time.Second
	}
	return &FeedDevice{
		openTimeout: openTimeout,
		feeds:       make(map[string]*feed),
		changed:     make(chan struct{}),
	}
}

// ServeHTTP upgrades the request and reads frames until the socket closes.
func (d *FeedDevice) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		slog.Warn("Camera feed upgrade failed", "id", id, "error", err)
		return
	}

	f := &feed{id: id, conn: conn, buf: newFrameBuffer()}
	d.register(f)
	slog.Info("Camera feed connected", "id", id, "remote", r.RemoteAddr)

	defer func() {
		d.unregister(f)
		f.close("")
		slog.Info("Camera feed disconnected", "id", id)
	}()

	for {
		data, op, err := wsutil.ReadClientData(conn)
		if err != nil {
			return
		}
		if op != ws.OpBinary {
			continue
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			slog.Debug("Camera feed frame decode failed", "id", id, "error", err)
			continue
		}
		f.buf.set(img)
	}
}

// Open binds a stream to the feed named by c.Source.
func (d *FeedDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	if c.Source == "" {
		return nil, types.NewError(types.CodeValidation, "camera feed id is required", nil)
	}
	ctx, cancel := context.WithTimeout(ctx, d.openTimeout)
	defer cancel()

	for {
		d.mu.Lock()
		f, ok := d.feeds[c.Source]
		if ok && !f.claimed {
			f.claimed = true
			d.mu.Unlock()
			if err := f.send(feedControl{Type: "start", Facing: c.Facing, Audio: c.Audio}); err != nil {
				f.close("")
				return nil, types.NewError(types.CodeDeviceUnavailable, "camera feed write failed", err)
			}
			return &feedStream{id: uuid.NewString(), feed: f, track: newVideoTrack(func() { f.close("stream stopped") })}, nil
		}
		changed := d.changed
		d.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return nil, types.NewError(types.CodeDeviceUnavailable,
				fmt.Sprintf("no camera feed for %s", c.Source), ctx.Err())
		}
	}
}

func (d *FeedDevice) register(f *feed) {
	d.mu.Lock()
	old := d.feeds[f.id]
	d.feeds[f.id] = f
	close(d.changed)
	d.changed = make(chan struct{})
	d.mu.Unlock()
	if old != nil {
		old.close("replaced")
	}
}

func (d *FeedDevice) unregister(f *feed) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.feeds[f.id] == f {
		delete(d.feeds, f.id)
	}
}

func (f *feed) send(msg feedControl) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	return wsutil.WriteServerMessage(f.conn, ws.OpText, data)
}

// close sends a close frame when reason is set, then drops the socket.
func (f *feed) close(reason string) {
	f.once.Do(func() {
		f.buf.close()
		if reason != "" {
			f.writeMu.Lock()
			_ = wsutil.WriteServerMessage(f.conn, ws.OpClose,
				ws.NewCloseFrameBody(ws.StatusNormalClosure, reason))
			f.writeMu.Unlock()
		}
		_ = f.conn.Close()
	})
}

type feedStream struct {
	id    string
	feed  *feed
	track *videoTrack
}

func (s *feedStream) ID() string { return s.id }

func (s *feedStream) Tracks() []Track { return []Track{s.track} }

func (s *feedStream) Resolution() (int, int) { return s.feed.buf.resolution() }

func (s *feedStream) Frame(ctx context.Context) (image.Image, error) {
	if !s.track.Live() {
		return nil, ErrStreamStopped
	}
	return s.feed.buf.latest(ctx)
}
