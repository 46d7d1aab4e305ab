package compress

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"log/slog"

	"github.com/h2non/filetype"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/dgnsrekt/bingo_bridge/internal/types"
)

const (
	DefaultMaxBytes = 20 << 20
	DefaultMaxEdge  = 1536
	DefaultQuality  = 80
)

var supportedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Options bounds the compressor.
type Options struct {
	MaxBytes int64
	MaxEdge  int
	Quality  int
}

// Compressor turns uploaded image files into JPEG data URIs.
type Compressor struct {
	opts Options
}

// New returns a compressor with defaults filled in.
func New(opts Options) *Compressor {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.MaxEdge <= 0 {
		opts.MaxEdge = DefaultMaxEdge
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultQuality
	}
	return &Compressor{opts: opts}
}

// Compress reads an image, scales it so the longest edge fits MaxEdge and
// returns a JPEG data URI. Transparent areas are flattened onto white.
func (c *Compressor) Compress(ctx context.Context, r io.Reader) (string, error) {
	limited := &io.LimitedReader{R: r, N: c.opts.MaxBytes + 1}
	raw, err := io.ReadAll(limited)
	if err != nil {
		return "", types.NewError(types.CodeCompressionFailed, "read image", err)
	}
	if limited.N <= 0 {
		return "", types.NewError(types.CodeCompressionFailed,
			fmt.Sprintf("image exceeds %d bytes", c.opts.MaxBytes), nil)
	}
	if len(raw) == 0 {
		return "", types.NewError(types.CodeCompressionFailed, "empty image", nil)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	kind, err := filetype.Match(raw)
	if err != nil || !filetype.IsImage(raw) || !supportedMIME[kind.MIME.Value] {
		return "", types.NewError(types.CodeCompressionFailed,
			fmt.Sprintf("unsupported image type %q", kind.MIME.Value), err)
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", types.NewError(types.CodeCompressionFailed, "decode image", err)
	}

	dst := Flatten(Fit(src, c.opts.MaxEdge))
	out, err := EncodeJPEG(dst, c.opts.Quality)
	if err != nil {
		return "", err
	}

	b := src.Bounds()
	slog.Debug("Image compressed",
		"mime", kind.MIME.Value,
		"src_width", b.Dx(),
		"src_height", b.Dy(),
		"in_bytes", len(raw),
		"out_bytes", len(out))

	return DataURI("image/jpeg", out), nil
}

// Fit scales img down so neither edge exceeds maxEdge. Smaller images are
// returned unchanged.
func Fit(img image.Image, maxEdge int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxEdge <= 0 || (w <= maxEdge && h <= maxEdge) {
		return img
	}
	nw, nh := maxEdge, maxEdge
	if w >= h {
		nh = max(1, h*maxEdge/w)
	} else {
		nw = max(1, w*maxEdge/h)
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// Flatten composites img over an opaque white background.
func Flatten(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, xdraw.Src)
	xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Over)
	return dst
}

// EncodeJPEG encodes img at the given quality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, types.NewError(types.CodeCompressionFailed, "encode jpeg", err)
	}
	return buf.Bytes(), nil
}
