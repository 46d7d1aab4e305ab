package imagestore

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/bingo_bridge/internal/types"
)

const testID = "123e4567-e89b-12d3-a456-426614174000"

func TestSaveReadDelete(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}

	meta := ImageMeta{ID: testID, Format: "jpg", MIME: "image/jpeg", SizeBytes: 3, CreatedAt: time.Now().UTC()}
	if err := store.Save(meta, []byte{1, 2, 3}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	data, got, err := store.ReadImage(testID)
	if err != nil {
		t.Fatalf("ReadImage() failed: %v", err)
	}
	if !bytes.Equal(data, []byte{1, 2, 3}) || got.MIME != "image/jpeg" {
		t.Fatalf("ReadImage() = %v, %+v", data, got)
	}

	if err := store.Delete(testID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, _, err := store.ReadImage(testID); !types.HasCode(err, types.CodeNotFound) {
		t.Fatalf("ReadImage() after delete = %v; want NOT_FOUND", err)
	}
}

func TestRejectsInvalidID(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	for _, id := range []string{"", "../etc/passwd", "123E4567-E89B-12D3-A456-426614174000"} {
		if _, _, err := store.ReadImage(id); !types.HasCode(err, types.CodeValidation) {
			t.Fatalf("ReadImage(%q) = %v; want VALIDATION", id, err)
		}
	}
}

func TestPruneRemovesOldImages(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	now := time.Now().UTC()
	old := ImageMeta{ID: testID, Format: "png", CreatedAt: now.Add(-2 * time.Hour)}
	fresh := ImageMeta{ID: "223e4567-e89b-12d3-a456-426614174000", Format: "png", CreatedAt: now}
	for _, m := range []ImageMeta{old, fresh} {
		if err := store.Save(m, []byte("x")); err != nil {
			t.Fatalf("Save() failed: %v", err)
		}
	}

	n, err := store.Prune(now.Add(-time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("Prune() = %d, %v; want 1, nil", n, err)
	}
	list, _ := store.List()
	if len(list) != 1 || list[0].ID != fresh.ID {
		t.Fatalf("List() = %+v", list)
	}
}

func TestDeleteLogsImageCleanupFailureWhenImageMissing(t *testing.T) {
	dir := t.TempDir()
	store := &Store{dir: dir}
	jsonPath := filepath.Join(dir, testID+".json")

	metaBytes, err := json.Marshal(ImageMeta{ID: testID, Format: "png"})
	if err != nil {
		t.Fatalf("json.Marshal() failed: %v", err)
	}
	if err := os.WriteFile(jsonPath, metaBytes, 0o644); err != nil {
		t.Fatalf("os.WriteFile() failed: %v", err)
	}

	var buf bytes.Buffer
	oldLogger := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() {
		slog.SetDefault(oldLogger)
	})

	if err := store.Delete(testID); err != nil {
		t.Fatalf("Delete() = %v; want nil", err)
	}
	if !strings.Contains(buf.String(), "image cleanup failed") {
		t.Fatalf("expected image cleanup debug log, got %q", buf.String())
	}
}
