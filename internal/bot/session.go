package bot

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"image"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgnsrekt/bingo_bridge/internal/compress"
	"github.com/dgnsrekt/bingo_bridge/internal/imagestore"
	"github.com/dgnsrekt/bingo_bridge/internal/types"
)

const (
	KindImage = "image"
	KindLink  = "link"
)

var formatByMIME = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// Attachment is the image staged for the next chat message.
type Attachment struct {
	Kind      string    `json:"kind"`
	ImageID   string    `json:"image_id,omitempty"`
	URL       string    `json:"url,omitempty"`
	MIME      string    `json:"mime,omitempty"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	SizeBytes int       `json:"size_bytes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// UploadRecord is appended to the audit log for every accepted upload.
type UploadRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	ImageID   string    `json:"image_id,omitempty"`
	Host      string    `json:"host,omitempty"`
	MIME      string    `json:"mime,omitempty"`
	SizeBytes int       `json:"size_bytes,omitempty"`
	SHA256    string    `json:"sha256,omitempty"`
}

// Recorder receives audit records. storage.JSONLWriter satisfies it.
type Recorder interface {
	Write(record any) error
}

// Session stages uploaded images for the chat client. Data URIs are stored
// in the image store; links are kept verbatim.
type Session struct {
	images *imagestore.Store
	audit  Recorder
	now    func() time.Time

	mu      sync.RWMutex
	current *Attachment
}

func NewSession(images *imagestore.Store, audit Recorder) *Session {
	return &Session{images: images, audit: audit, now: time.Now}
}

// Upload stages payload, replacing any previous attachment.
func (s *Session) Upload(ctx context.Context, payload string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return types.NewError(types.CodeValidation, "empty upload payload", nil)
	}

	var (
		att    *Attachment
		record UploadRecord
	)
	now := s.now().UTC()
	if compress.IsDataURI(payload) {
		mime, data, err := compress.ParseDataURI(payload)
		if err != nil {
			return types.NewError(types.CodeValidation, "malformed data uri", err)
		}
		format, ok := formatByMIME[mime]
		if !ok {
			return types.NewError(types.CodeValidation, "unsupported image type "+mime, nil)
		}
		sum := sha256.Sum256(data)
		meta := imagestore.ImageMeta{
			ID:        uuid.NewString(),
			Format:    format,
			MIME:      mime,
			SizeBytes: len(data),
			SHA256:    hex.EncodeToString(sum[:]),
			CreatedAt: now,
		}
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			meta.Width, meta.Height = cfg.Width, cfg.Height
		}
		if err := s.images.Save(meta, data); err != nil {
			return err
		}
		att = &Attachment{
			Kind:      KindImage,
			ImageID:   meta.ID,
			MIME:      mime,
			Width:     meta.Width,
			Height:    meta.Height,
			SizeBytes: meta.SizeBytes,
			CreatedAt: now,
		}
		record = UploadRecord{Kind: KindImage, ImageID: meta.ID, MIME: mime, SizeBytes: len(data), SHA256: meta.SHA256}
	} else {
		u, err := url.Parse(payload)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return types.NewError(types.CodeInvalidImageLink, "upload is neither a data uri nor an http(s) link", err)
		}
		att = &Attachment{Kind: KindLink, URL: payload, CreatedAt: now}
		record = UploadRecord{Kind: KindLink, Host: u.Host}
	}

	s.mu.Lock()
	prev := s.current
	s.current = att
	s.mu.Unlock()
	s.discard(prev)

	record.Timestamp = now
	if s.audit != nil {
		if err := s.audit.Write(record); err != nil {
			slog.Warn("Upload audit write failed", "error", err)
		}
	}
	slog.Info("Attachment staged", "kind", att.Kind, "image_id", att.ImageID, "bytes", att.SizeBytes)
	return nil
}

// Current returns the staged attachment.
func (s *Session) Current() (Attachment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Attachment{}, false
	}
	return *s.current, true
}

// Image returns the bytes of the staged image.
func (s *Session) Image() ([]byte, Attachment, error) {
	att, ok := s.Current()
	if !ok || att.Kind != KindImage {
		return nil, Attachment{}, types.NewError(types.CodeNotFound, "no staged image", nil)
	}
	data, _, err := s.images.ReadImage(att.ImageID)
	if err != nil {
		return nil, Attachment{}, err
	}
	return data, att, nil
}

// Clear drops the staged attachment.
func (s *Session) Clear() {
	s.mu.Lock()
	prev := s.current
	s.current = nil
	s.mu.Unlock()
	s.discard(prev)
}

func (s *Session) discard(att *Attachment) {
	if att == nil || att.Kind != KindImage {
		return
	}
	if err := s.images.Delete(att.ImageID); err != nil {
		slog.Debug("Discarding staged image failed", "image_id", att.ImageID, "error", err)
	}
}
