package intake

import (
	"context"
	"errors"
	"image"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dgnsrekt/bingo_bridge/internal/camera"
	"github.com/dgnsrekt/bingo_bridge/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeTrack struct {
	mu      sync.Mutex
	stopped bool
}

func (t *fakeTrack) Kind() string { return "video" }
func (t *fakeTrack) Live() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.stopped
}
func (t *fakeTrack) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

type fakeStream struct {
	id    string
	track *fakeTrack
	img   image.Image
}

func (s *fakeStream) ID() string             { return s.id }
func (s *fakeStream) Tracks() []camera.Track { return []camera.Track{s.track} }
func (s *fakeStream) Resolution() (int, int) {
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}
func (s *fakeStream) Frame(context.Context) (image.Image, error) {
	if !s.track.Live() {
		return nil, camera.ErrStreamStopped
	}
	return s.img, nil
}

type fakeDevice struct {
	mu      sync.Mutex
	opened  []*fakeStream
	gate    chan struct{}
	entered chan struct{}
	err     error
}

func (d *fakeDevice) Open(ctx context.Context, c camera.Constraints) (camera.Stream, error) {
	if c.Facing != camera.FacingEnvironment {
		return nil, errors.New("expected rear camera")
	}
	if d.entered != nil {
		d.entered <- struct{}{}
	}
	if d.gate != nil {
		<-d.gate
	}
	if d.err != nil {
		return nil, d.err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	s := &fakeStream{
		id:    c.Source + "-" + string(rune('a'+len(d.opened))),
		track: &fakeTrack{},
		img:   image.NewRGBA(image.Rect(0, 0, 32, 16)),
	}
	d.opened = append(d.opened, s)
	return s, nil
}

func (d *fakeDevice) live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, s := range d.opened {
		if s.track.Live() {
			n++
		}
	}
	return n
}

type fakeCompressor struct {
	out     string
	err     error
	gate    chan struct{}
	entered chan struct{}
}

func (c *fakeCompressor) Compress(ctx context.Context, r io.Reader) (string, error) {
	_, _ = io.ReadAll(r)
	if c.entered != nil {
		c.entered <- struct{}{}
	}
	if c.gate != nil {
		<-c.gate
	}
	return c.out, c.err
}

type recordingUploader struct {
	mu       sync.Mutex
	payloads []string
	err      error
}

func (u *recordingUploader) Upload(_ context.Context, payload string) error {
	if u.err != nil {
		return u.err
	}
	u.mu.Lock()
	u.payloads = append(u.payloads, payload)
	u.mu.Unlock()
	return nil
}

func (u *recordingUploader) all() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.payloads...)
}

type gatedUploader struct {
	recordingUploader
	entered chan struct{}
	gate    chan struct{}
}

func (u *gatedUploader) Upload(ctx context.Context, payload string) error {
	u.entered <- struct{}{}
	<-u.gate
	return u.recordingUploader.Upload(ctx, payload)
}

func newTestPanel(dev *fakeDevice, comp *fakeCompressor, up *recordingUploader) *Panel {
	if dev == nil {
		dev = &fakeDevice{}
	}
	if comp == nil {
		comp = &fakeCompressor{out: "data:image/jpeg;base64,AAAA"}
	}
	if up == nil {
		up = &recordingUploader{}
	}
	return NewPanel("panel", Deps{Device: dev, Compressor: comp, Uploader: up})
}

func openPanel(t *testing.T, p *Panel) {
	t.Helper()
	snap, err := p.Toggle()
	require.NoError(t, err)
	require.Equal(t, StateNormal, snap.State)
}

func TestToggleTransitions(t *testing.T) {
	p := newTestPanel(nil, nil, nil)
	assert.Equal(t, StateClosed, p.Snapshot().State)

	openPanel(t, p)
	snap, err := p.Toggle()
	require.NoError(t, err)
	assert.Equal(t, StateClosed, snap.State)

	openPanel(t, p)
	_, err = p.OpenCamera(context.Background())
	require.NoError(t, err)
	snap, err = p.Toggle()
	require.NoError(t, err)
	assert.Equal(t, StateClosed, snap.State)
	assert.Empty(t, snap.StreamID)
}

func TestLinkValidation(t *testing.T) {
	ctx := context.Background()
	up := &recordingUploader{}
	p := newTestPanel(nil, nil, up)

	for _, submit := range []func(context.Context, string) (Snapshot, error){p.Submit, p.Paste} {
		openPanel(t, p)
		_, err := submit(ctx, "ftp://x")
		assert.True(t, types.HasCode(err, types.CodeInvalidImageLink))
		assert.Equal(t, StateNormal, p.Snapshot().State)

		snap, err := submit(ctx, "  https://example.com/a.png ")
		require.NoError(t, err)
		assert.Equal(t, StateClosed, snap.State)
	}
	assert.Equal(t, []string{"https://example.com/a.png", "https://example.com/a.png"}, up.all())
}

func TestEmptySubmitIsNoop(t *testing.T) {
	up := &recordingUploader{}
	p := newTestPanel(nil, nil, up)
	openPanel(t, p)

	snap, err := p.Submit(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, StateNormal, snap.State)
	assert.Empty(t, up.all())
}

func TestEmptyPasteClosesPanel(t *testing.T) {
	up := &recordingUploader{}
	p := newTestPanel(nil, nil, up)
	openPanel(t, p)

	snap, err := p.Paste(context.Background(), " \n ")
	require.NoError(t, err)
	assert.Equal(t, StateClosed, snap.State)
	assert.Empty(t, up.all())
}

func TestUploadDoesNotCloseReopenedPanel(t *testing.T) {
	up := &gatedUploader{entered: make(chan struct{}), gate: make(chan struct{})}
	p := NewPanel("panel", Deps{Device: &fakeDevice{}, Compressor: &fakeCompressor{}, Uploader: up})
	openPanel(t, p)

	type result struct {
		snap Snapshot
		err  error
	}
	done := make(chan result, 1)
	go func() {
		snap, err := p.Submit(context.Background(), "https://example.com/a.png")
		done <- result{snap, err}
	}()

	<-up.entered
	p.ClickOutside()
	openPanel(t, p)
	reopened := p.Snapshot().Generation
	close(up.gate)

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, StateNormal, res.snap.State)
	assert.Equal(t, StateNormal, p.Snapshot().State)
	assert.Equal(t, reopened, p.Snapshot().Generation)
	assert.Equal(t, []string{"https://example.com/a.png"}, up.all())
}

func TestOperationsRequireOpenPanel(t *testing.T) {
	ctx := context.Background()
	p := newTestPanel(nil, nil, nil)

	_, err := p.Submit(ctx, "https://example.com/a.png")
	assert.True(t, types.HasCode(err, types.CodePanelClosed))
	_, err = p.OpenCamera(ctx)
	assert.True(t, types.HasCode(err, types.CodePanelClosed))
	_, err = p.SelectFile(ctx, "a.png", strings.NewReader("x"))
	assert.True(t, types.HasCode(err, types.CodePanelClosed))

	openPanel(t, p)
	_, err = p.Capture(ctx)
	assert.True(t, types.HasCode(err, types.CodeValidation))

	p.Close()
	_, err = p.Toggle()
	assert.True(t, types.HasCode(err, types.CodePanelClosed))
}

func TestOpenCameraTwiceKeepsOneLiveStream(t *testing.T) {
	ctx := context.Background()
	dev := &fakeDevice{}
	p := newTestPanel(dev, nil, nil)
	openPanel(t, p)

	first, err := p.OpenCamera(ctx)
	require.NoError(t, err)
	second, err := p.OpenCamera(ctx)
	require.NoError(t, err)

	assert.Equal(t, StateCamera, second.State)
	assert.NotEqual(t, first.StreamID, second.StreamID)
	assert.Equal(t, 1, dev.live())
	assert.False(t, dev.opened[0].track.Live())

	p.ClickOutside()
	assert.Equal(t, 0, dev.live())
}

func TestStaleCameraStreamIsStopped(t *testing.T) {
	dev := &fakeDevice{gate: make(chan struct{}), entered: make(chan struct{})}
	p := newTestPanel(dev, nil, nil)
	openPanel(t, p)

	errCh := make(chan error, 1)
	go func() {
		_, err := p.OpenCamera(context.Background())
		errCh <- err
	}()
	<-dev.entered
	p.ClickOutside()
	close(dev.gate)

	err := <-errCh
	assert.True(t, types.HasCode(err, types.CodeStaleResult))
	assert.Equal(t, 0, dev.live())
	assert.Equal(t, StateClosed, p.Snapshot().State)
}

func TestCameraOpenFailureIsReported(t *testing.T) {
	dev := &fakeDevice{err: errors.New("permission denied")}
	p := newTestPanel(dev, nil, nil)
	openPanel(t, p)

	snap, err := p.OpenCamera(context.Background())
	assert.True(t, types.HasCode(err, types.CodeDeviceUnavailable))
	assert.Equal(t, StateCamera, snap.State)

	_, err = p.Capture(context.Background())
	assert.True(t, types.HasCode(err, types.CodeDeviceUnavailable))
}

func TestSelectFileUploadsAndClears(t *testing.T) {
	up := &recordingUploader{}
	p := newTestPanel(nil, &fakeCompressor{out: "data:image/jpeg;base64,QUJD"}, up)
	openPanel(t, p)

	snap, err := p.SelectFile(context.Background(), "cat.png", strings.NewReader("png"))
	require.NoError(t, err)
	assert.Equal(t, StateClosed, snap.State)
	assert.Empty(t, snap.SelectedFile)
	assert.Equal(t, OriginFile, snap.LastUpload)
	assert.Equal(t, []string{"data:image/jpeg;base64,QUJD"}, up.all())
}

func TestSelectFileEmptyOrFailedCompression(t *testing.T) {
	ctx := context.Background()
	up := &recordingUploader{}

	p := newTestPanel(nil, &fakeCompressor{out: ""}, up)
	openPanel(t, p)
	snap, err := p.SelectFile(ctx, "empty.png", strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, StateNormal, snap.State)

	p = newTestPanel(nil, &fakeCompressor{err: errors.New("bad image")}, up)
	openPanel(t, p)
	_, err = p.SelectFile(ctx, "bad.png", strings.NewReader("x"))
	assert.True(t, types.HasCode(err, types.CodeCompressionFailed))

	assert.Empty(t, up.all())
}

func TestStaleCompressionResultIsDropped(t *testing.T) {
	comp := &fakeCompressor{out: "data:image/jpeg;base64,QUJD", gate: make(chan struct{}), entered: make(chan struct{})}
	up := &recordingUploader{}
	p := newTestPanel(nil, comp, up)
	openPanel(t, p)

	errCh := make(chan error, 1)
	go func() {
		_, err := p.SelectFile(context.Background(), "slow.png", strings.NewReader("x"))
		errCh <- err
	}()
	<-comp.entered
	p.ClickOutside()
	close(comp.gate)

	assert.True(t, types.HasCode(<-errCh, types.CodeStaleResult))
	assert.Empty(t, up.all())
}

func TestCaptureUploadsJPEGAndStopsStream(t *testing.T) {
	ctx := context.Background()
	dev := &fakeDevice{}
	up := &recordingUploader{}
	p := newTestPanel(dev, nil, up)
	openPanel(t, p)
	_, err := p.OpenCamera(ctx)
	require.NoError(t, err)

	snap, err := p.Capture(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, snap.State)
	assert.Equal(t, OriginCamera, snap.LastUpload)
	assert.Equal(t, 0, dev.live())

	payloads := up.all()
	require.Len(t, payloads, 1)
	assert.True(t, strings.HasPrefix(payloads[0], "data:image/jpeg;base64,"))
}

func TestUploadFailureKeepsPanelOpen(t *testing.T) {
	up := &recordingUploader{err: errors.New("socket closed")}
	p := newTestPanel(nil, nil, up)
	openPanel(t, p)

	snap, err := p.Submit(context.Background(), "https://example.com/a.png")
	assert.True(t, types.HasCode(err, types.CodeUploadFailed))
	assert.Equal(t, StateNormal, snap.State)
}

func TestObserversSeeEveryChange(t *testing.T) {
	p := newTestPanel(nil, nil, nil)
	var states []State
	p.OnChange(func(s Snapshot) { states = append(states, s.State) })

	openPanel(t, p)
	_, err := p.Submit(context.Background(), "https://example.com/a.png")
	require.NoError(t, err)

	assert.Equal(t, []State{StateNormal, StateClosed}, states)
}
