package intake

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgnsrekt/bingo_bridge/internal/types"
)

func TestRegistryLifecycle(t *testing.T) {
	var seen []Snapshot
	r := NewRegistry(Deps{Device: &fakeDevice{}, Compressor: &fakeCompressor{}, Uploader: &recordingUploader{}},
		time.Minute, time.Hour, func(s Snapshot) { seen = append(seen, s) })
	defer r.Close()

	p := r.Create()
	got, err := r.Get(p.ID())
	require.NoError(t, err)
	assert.Same(t, p, got)
	assert.Equal(t, 1, r.Len())

	_, err = got.Toggle()
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, p.ID(), seen[0].ID)

	_, err = r.Get("not-a-uuid")
	assert.True(t, types.HasCode(err, types.CodeValidation))
	_, err = r.Get("00000000-0000-0000-0000-000000000000")
	assert.True(t, types.HasCode(err, types.CodeNotFound))

	require.NoError(t, r.Remove(p.ID()))
	assert.True(t, types.HasCode(r.Remove(p.ID()), types.CodeNotFound))
	assert.Equal(t, 0, r.Len())
}

func TestRegistrySweepsIdlePanels(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	dev := &fakeDevice{}
	r := NewRegistry(Deps{Device: dev, Uploader: &recordingUploader{}, Now: func() time.Time { return now }},
		10*time.Minute, 0, nil)
	defer r.Close()

	idle := r.Create()
	_, err := idle.Toggle()
	require.NoError(t, err)
	_, err = idle.OpenCamera(context.Background())
	require.NoError(t, err)

	now = now.Add(5 * time.Minute)
	fresh := r.Create()

	now = now.Add(6 * time.Minute)
	r.sweep()

	assert.Equal(t, 1, r.Len())
	_, err = r.Get(fresh.ID())
	assert.NoError(t, err)
	assert.Equal(t, 0, dev.live())
}

func TestRegistryCloseStopsSweeper(t *testing.T) {
	dev := &fakeDevice{}
	r := NewRegistry(Deps{Device: dev}, time.Minute, time.Millisecond, nil)
	p := r.Create()
	_, err := p.Toggle()
	require.NoError(t, err)
	_, err = p.OpenCamera(context.Background())
	require.NoError(t, err)

	r.Close()
	r.Close()
	assert.Equal(t, 0, dev.live())
	assert.Equal(t, 0, r.Len())
}
