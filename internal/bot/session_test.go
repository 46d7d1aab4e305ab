package bot

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgnsrekt/bingo_bridge/internal/compress"
	"github.com/dgnsrekt/bingo_bridge/internal/imagestore"
	"github.com/dgnsrekt/bingo_bridge/internal/types"
)

type memRecorder struct {
	mu      sync.Mutex
	records []any
}

func (r *memRecorder) Write(record any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

func newTestSession(t *testing.T) (*Session, *imagestore.Store, *memRecorder) {
	t.Helper()
	store, err := imagestore.NewStore(t.TempDir())
	require.NoError(t, err)
	rec := &memRecorder{}
	return NewSession(store, rec), store, rec
}

func pngURI(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 6, 4))))
	return compress.DataURI("image/png", buf.Bytes())
}

func TestUploadDataURIStoresImage(t *testing.T) {
	s, store, rec := newTestSession(t)

	require.NoError(t, s.Upload(context.Background(), pngURI(t)))

	att, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, KindImage, att.Kind)
	assert.Equal(t, 6, att.Width)
	assert.Equal(t, 4, att.Height)

	data, _, err := s.Image()
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	list, err := store.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)
	require.Len(t, rec.records, 1)
	assert.Equal(t, KindImage, rec.records[0].(UploadRecord).Kind)
}

func TestUploadLinkIsStagedVerbatim(t *testing.T) {
	s, store, _ := newTestSession(t)
	require.NoError(t, s.Upload(context.Background(), pngURI(t)))
	require.NoError(t, s.Upload(context.Background(), "https://example.com/a.png"))

	att, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "https://example.com/a.png", att.URL)

	list, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, list, "replaced image should be discarded")

	_, _, err = s.Image()
	assert.True(t, types.HasCode(err, types.CodeNotFound))
}

func TestUploadRejectsGarbage(t *testing.T) {
	s, _, rec := newTestSession(t)
	ctx := context.Background()

	assert.True(t, types.HasCode(s.Upload(ctx, ""), types.CodeValidation))
	assert.True(t, types.HasCode(s.Upload(ctx, "data:text/plain;base64,aGk="), types.CodeValidation))
	assert.True(t, types.HasCode(s.Upload(ctx, "ftp://x"), types.CodeInvalidImageLink))
	assert.Empty(t, rec.records)
	_, ok := s.Current()
	assert.False(t, ok)
}

func TestClearDropsAttachment(t *testing.T) {
	s, store, _ := newTestSession(t)
	require.NoError(t, s.Upload(context.Background(), pngURI(t)))
	s.Clear()

	_, ok := s.Current()
	assert.False(t, ok)
	list, _ := store.List()
	assert.Empty(t, list)
}
