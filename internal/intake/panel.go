package intake

import (
	"context"
	"image"
	"image/draw"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/bingo_bridge/internal/camera"
	"github.com/dgnsrekt/bingo_bridge/internal/compress"
	"github.com/dgnsrekt/bingo_bridge/internal/types"
)

// State is the visible state of an intake panel.
type State string

const (
	StateClosed State = "closed"
	StateNormal State = "normal"
	StateCamera State = "camera-mode"
)

// Origin identifies where an upload payload came from.
type Origin string

const (
	OriginFile   Origin = "file"
	OriginPaste  Origin = "paste"
	OriginLink   Origin = "link"
	OriginCamera Origin = "camera"
)

// DefaultJPEGQuality matches the browser canvas default for image/jpeg.
const DefaultJPEGQuality = 92

var linkRe = regexp.MustCompile(`^https?://.+`)

// Uploader forwards a finished payload to the chat session.
type Uploader interface {
	Upload(ctx context.Context, payload string) error
}

// Compressor turns a selected file into a data URI. An empty result means
// nothing should be uploaded.
type Compressor interface {
	Compress(ctx context.Context, r io.Reader) (string, error)
}

// Deps are the collaborators shared by every panel.
type Deps struct {
	Device      camera.Device
	Compressor  Compressor
	Uploader    Uploader
	JPEGQuality int
	Now         func() time.Time
}

// Snapshot is a point-in-time view of a panel.
type Snapshot struct {
	ID           string    `json:"id"`
	State        State     `json:"state"`
	SelectedFile string    `json:"selected_file,omitempty"`
	StreamID     string    `json:"stream_id,omitempty"`
	Generation   uint64    `json:"generation"`
	LastUpload   Origin    `json:"last_upload,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Panel is the image intake state machine for one client.
//
// Blocking work (camera open, compression, upload) runs without the lock.
// Every state change bumps the generation; results computed under an older
// generation are discarded.
type Panel struct {
	id   string
	deps Deps

	mu         sync.Mutex
	state      State
	gen        uint64
	stream     camera.Stream
	selected   string
	lastUpload Origin
	disposed   bool
	updatedAt  time.Time
	observers  []func(Snapshot)
}

// NewPanel creates a closed panel.
func NewPanel(id string, deps Deps) *Panel {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.JPEGQuality <= 0 || deps.JPEGQuality > 100 {
		deps.JPEGQuality = DefaultJPEGQuality
	}
	return &Panel{id: id, deps: deps, state: StateClosed, updatedAt: deps.Now()}
}

func (p *Panel) ID() string { return p.id }

// OnChange registers an observer called after every state change.
func (p *Panel) OnChange(fn func(Snapshot)) {
	p.mu.Lock()
	p.observers = append(p.observers, fn)
	p.mu.Unlock()
}

// Snapshot returns the current state.
func (p *Panel) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// UpdatedAt returns the time of the last state change.
func (p *Panel) UpdatedAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.updatedAt
}

// Toggle flips between closed and normal. Toggling from camera-mode closes
// the panel.
func (p *Panel) Toggle() (Snapshot, error) {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return Snapshot{}, errDisposed()
	}
	var released camera.Stream
	if p.state == StateClosed {
		p.setStateLocked(StateNormal)
	} else {
		released = p.closeLocked()
	}
	return p.commit(released), nil
}

// ClickOutside closes an open panel.
func (p *Panel) ClickOutside() Snapshot {
	p.mu.Lock()
	var released camera.Stream
	if p.state != StateClosed {
		released = p.closeLocked()
	}
	return p.commit(released)
}

// Close tears the panel down. Further operations fail.
func (p *Panel) Close() {
	p.mu.Lock()
	released := p.closeLocked()
	p.disposed = true
	p.commit(released)
}

// OpenCamera switches to camera-mode and acquires a rear-facing stream. Any
// held stream is stopped before the new one is requested.
func (p *Panel) OpenCamera(ctx context.Context) (Snapshot, error) {
	p.mu.Lock()
	if err := p.requireOpenLocked(); err != nil {
		p.mu.Unlock()
		return Snapshot{}, err
	}
	old := p.stream
	p.stream = nil
	p.setStateLocked(StateCamera)
	gen := p.gen
	p.commit(old)

	if p.deps.Device == nil {
		return p.Snapshot(), types.NewError(types.CodeDeviceUnavailable, "no camera device configured", nil)
	}
	stream, err := p.deps.Device.Open(ctx, camera.Constraints{Facing: camera.FacingEnvironment, Source: p.id})
	if err != nil {
		slog.Warn("Camera open failed", "panel_id", p.id, "error", err)
		if types.CodeOf(err) == "" {
			err = types.NewError(types.CodeDeviceUnavailable, "open camera", err)
		}
		return p.Snapshot(), err
	}

	p.mu.Lock()
	if p.gen != gen || p.state != StateCamera {
		p.mu.Unlock()
		camera.StopAll(stream)
		slog.Debug("Discarded stale camera stream", "panel_id", p.id, "stream_id", stream.ID())
		return p.Snapshot(), types.NewError(types.CodeStaleResult, "panel changed while camera was opening", nil)
	}
	p.stream = stream
	p.touchLocked()
	slog.Info("Camera stream attached", "panel_id", p.id, "stream_id", stream.ID())
	return p.commit(nil), nil
}

// SelectFile compresses a chosen file and uploads the result.
func (p *Panel) SelectFile(ctx context.Context, name string, r io.Reader) (Snapshot, error) {
	p.mu.Lock()
	if err := p.requireOpenLocked(); err != nil {
		p.mu.Unlock()
		return Snapshot{}, err
	}
	p.selected = name
	p.touchLocked()
	gen := p.gen
	p.commit(nil)

	payload, err := p.deps.Compressor.Compress(ctx, r)
	if err != nil {
		slog.Warn("Image compression failed", "panel_id", p.id, "file", name, "error", err)
		if types.CodeOf(err) == "" {
			err = types.NewError(types.CodeCompressionFailed, "compress "+name, err)
		}
		return p.Snapshot(), err
	}
	if payload == "" {
		return p.Snapshot(), nil
	}
	return p.upload(ctx, gen, payload, OriginFile)
}

// Paste uploads a pasted image link. An empty paste closes the panel.
func (p *Panel) Paste(ctx context.Context, text string) (Snapshot, error) {
	return p.submitLink(ctx, text, OriginPaste)
}

// Submit uploads a manually entered link. Empty input is ignored.
func (p *Panel) Submit(ctx context.Context, text string) (Snapshot, error) {
	return p.submitLink(ctx, text, OriginLink)
}

func (p *Panel) submitLink(ctx context.Context, text string, origin Origin) (Snapshot, error) {
	p.mu.Lock()
	if err := p.requireOpenLocked(); err != nil {
		p.mu.Unlock()
		return Snapshot{}, err
	}
	gen := p.gen
	p.mu.Unlock()

	link := strings.TrimSpace(text)
	if link == "" {
		if origin != OriginPaste {
			return p.Snapshot(), nil
		}
		// A paste without an image link still dismisses the panel.
		p.mu.Lock()
		var released camera.Stream
		if p.gen == gen && !p.disposed {
			released = p.closeLocked()
		}
		return p.commit(released), nil
	}
	if !ValidLink(link) {
		return p.Snapshot(), types.NewError(types.CodeInvalidImageLink, "image link must start with http:// or https://", nil)
	}
	return p.upload(ctx, gen, link, origin)
}

// Capture grabs the current camera frame at native resolution and uploads
// it as a JPEG data URI.
func (p *Panel) Capture(ctx context.Context) (Snapshot, error) {
	p.mu.Lock()
	if err := p.requireOpenLocked(); err != nil {
		p.mu.Unlock()
		return Snapshot{}, err
	}
	if p.state != StateCamera {
		p.mu.Unlock()
		return Snapshot{}, types.NewError(types.CodeValidation, "panel is not in camera-mode", nil)
	}
	stream, gen := p.stream, p.gen
	p.mu.Unlock()
	if stream == nil {
		return p.Snapshot(), types.NewError(types.CodeDeviceUnavailable, "no camera stream", nil)
	}

	frame, err := stream.Frame(ctx)
	if err != nil {
		return p.Snapshot(), types.NewError(types.CodeDeviceUnavailable, "read camera frame", err)
	}
	w, h := stream.Resolution()
	if w <= 0 || h <= 0 {
		b := frame.Bounds()
		w, h = b.Dx(), b.Dy()
	}
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), frame, frame.Bounds().Min, draw.Src)

	data, err := compress.EncodeJPEG(canvas, p.deps.JPEGQuality)
	if err != nil {
		return p.Snapshot(), err
	}
	return p.upload(ctx, gen, compress.DataURI("image/jpeg", data), OriginCamera)
}

// upload forwards payload if the panel has not moved on since gen, then
// closes the panel unless it changed while the upload ran.
func (p *Panel) upload(ctx context.Context, gen uint64, payload string, origin Origin) (Snapshot, error) {
	p.mu.Lock()
	if p.gen != gen || p.disposed {
		p.mu.Unlock()
		slog.Debug("Discarded stale upload", "panel_id", p.id, "origin", origin)
		return p.Snapshot(), types.NewError(types.CodeStaleResult, "panel changed before upload", nil)
	}
	p.mu.Unlock()

	if err := p.deps.Uploader.Upload(ctx, payload); err != nil {
		slog.Warn("Image upload failed", "panel_id", p.id, "origin", origin, "error", err)
		if types.CodeOf(err) == "" {
			err = types.NewError(types.CodeUploadFailed, "upload image", err)
		}
		return p.Snapshot(), err
	}

	p.mu.Lock()
	p.lastUpload = origin
	if p.gen != gen || p.disposed {
		slog.Info("Image uploaded after panel changed", "panel_id", p.id, "origin", origin)
		snap := p.snapshotLocked()
		p.mu.Unlock()
		return snap, nil
	}
	released := p.closeLocked()
	slog.Info("Image uploaded", "panel_id", p.id, "origin", origin, "bytes", len(payload))
	return p.commit(released), nil
}

// ValidLink reports whether s is an absolute http(s) link.
func ValidLink(s string) bool {
	return linkRe.MatchString(s)
}

func errDisposed() error {
	return types.NewError(types.CodePanelClosed, "panel has been torn down", nil)
}

func (p *Panel) requireOpenLocked() error {
	if p.disposed {
		return errDisposed()
	}
	if p.state == StateClosed {
		return types.NewError(types.CodePanelClosed, "panel is closed", nil)
	}
	return nil
}

// closeLocked moves to closed and hands back the stream for the caller to
// stop outside the lock.
func (p *Panel) closeLocked() camera.Stream {
	s := p.stream
	p.stream = nil
	p.selected = ""
	p.setStateLocked(StateClosed)
	return s
}

func (p *Panel) setStateLocked(s State) {
	p.state = s
	p.gen++
	p.touchLocked()
}

func (p *Panel) touchLocked() {
	p.updatedAt = p.deps.Now()
}

func (p *Panel) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:           p.id,
		State:        p.state,
		SelectedFile: p.selected,
		Generation:   p.gen,
		LastUpload:   p.lastUpload,
		UpdatedAt:    p.updatedAt,
	}
	if p.stream != nil {
		snap.StreamID = p.stream.ID()
	}
	return snap
}

// commit releases the lock, stops released and notifies observers.
func (p *Panel) commit(released camera.Stream) Snapshot {
	snap := p.snapshotLocked()
	observers := append([]func(Snapshot){}, p.observers...)
	p.mu.Unlock()

	if released != nil {
		camera.StopAll(released)
		slog.Debug("Camera stream stopped", "panel_id", p.id, "stream_id", released.ID())
	}
	for _, fn := range observers {
		fn(snap)
	}
	return snap
}
