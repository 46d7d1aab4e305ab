package camera

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"

	"github.com/dgnsrekt/bingo_bridge/internal/types"
)

// TabDevice streams a Chromium tab as a camera using the CDP screencast.
// Source names the target id; when empty the first page target is used.
type TabDevice struct {
	allocCtx context.Context
	quality  int
}

// NewTabDevice connects to a remote browser debugging endpoint. The returned
// cancel func releases the allocator.
func NewTabDevice(cdpURL string, quality int) (*TabDevice, context.CancelFunc) {
	if quality <= 0 || quality > 100 {
		quality = 80
	}
	allocCtx, cancel := chromedp.NewRemoteAllocator(context.Background(), cdpURL)
	return &TabDevice{allocCtx: allocCtx, quality: quality}, cancel
}

// Open starts a screencast on the chosen tab.
func (d *TabDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	targetID, err := d.resolveTarget(ctx, c.Source)
	if err != nil {
		return nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(d.allocCtx, chromedp.WithTargetID(targetID))
	buf := newFrameBuffer()

	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		e, ok := ev.(*page.EventScreencastFrame)
		if !ok {
			return
		}
		sessionID := e.SessionID
		go func() {
			ackCtx, cancel := context.WithTimeout(tabCtx, 2*time.Second)
			defer cancel()
			_ = chromedp.Run(ackCtx, page.ScreencastFrameAck(sessionID))
		}()

		raw, err := base64.StdEncoding.DecodeString(e.Data)
		if err != nil {
			slog.Warn("Screencast frame decode failed", "target_id", targetID, "error", err)
			return
		}
		img, _, err := image.Decode(bytes.NewReader(raw))
		if err != nil {
			slog.Warn("Screencast frame decode failed", "target_id", targetID, "error", err)
			return
		}
		buf.set(img)
	})

	startCtx, startCancel := context.WithTimeout(tabCtx, 10*time.Second)
	defer startCancel()
	if err := chromedp.Run(startCtx, page.Enable(), page.StartScreencast().WithQuality(int64(d.quality))); err != nil {
		tabCancel()
		return nil, types.NewError(types.CodeDeviceUnavailable, "start screencast", err)
	}
	slog.Info("Screencast started", "target_id", targetID, "quality", d.quality)

	stop := func() {
		buf.close()
		stopCtx, cancel := context.WithTimeout(tabCtx, 2*time.Second)
		if err := chromedp.Run(stopCtx, page.StopScreencast()); err != nil {
			slog.Debug("Screencast stop failed", "target_id", targetID, "error", err)
		}
		cancel()
		tabCancel()
		slog.Info("Screencast stopped", "target_id", targetID)
	}
	return &tabStream{id: uuid.NewString(), buf: buf, track: newVideoTrack(stop)}, nil
}

func (d *TabDevice) resolveTarget(ctx context.Context, source string) (target.ID, error) {
	if source != "" {
		return target.ID(source), nil
	}
	scratchCtx, scratchCancel := chromedp.NewContext(d.allocCtx)
	defer scratchCancel()
	stop := context.AfterFunc(ctx, scratchCancel)
	defer stop()

	if err := chromedp.Run(scratchCtx); err != nil {
		return "", types.NewError(types.CodeDeviceUnavailable, "connect to browser", err)
	}
	targets, err := chromedp.Targets(scratchCtx)
	if err != nil {
		return "", types.NewError(types.CodeDeviceUnavailable, "list targets", err)
	}
	var scratchID target.ID
	if c := chromedp.FromContext(scratchCtx); c != nil && c.Target != nil {
		scratchID = c.Target.TargetID
	}
	for _, t := range targets {
		if t.Type == "page" && t.TargetID != scratchID {
			return t.TargetID, nil
		}
	}
	return "", types.NewError(types.CodeDeviceUnavailable, "no page target to stream", nil)
}

type tabStream struct {
	id    string
	buf   *frameBuffer
	track *videoTrack
}

func (s *tabStream) ID() string { return s.id }

func (s *tabStream) Tracks() []Track { return []Track{s.track} }

func (s *tabStream) Resolution() (int, int) { return s.buf.resolution() }

func (s *tabStream) Frame(ctx context.Context) (image.Image, error) {
	if !s.track.Live() {
		return nil, ErrStreamStopped
	}
	return s.buf.latest(ctx)
}
