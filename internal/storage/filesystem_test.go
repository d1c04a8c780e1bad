package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFileStoreWriteAndRead(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "/uploads/")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	key, err := store.Write(context.Background(), "./generate-1.jpg", []byte{0xff, 0xd8})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if key != "generate-1.jpg" {
		t.Fatalf("key = %q, want generate-1.jpg", key)
	}
	if url := store.URL(key); url != "/uploads/generate-1.jpg" {
		t.Fatalf("url = %q", url)
	}
	path, err := store.Path(key)
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(data, []byte{0xff, 0xd8}) {
		t.Fatalf("data mismatch: %v", data)
	}
	entries, _ := os.ReadDir(store.BasePath())
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".partial-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	for _, key := range []string{"", "../escape.jpg", "..", "a/../../b"} {
		if _, err := store.Write(context.Background(), key, []byte("x")); err == nil {
			t.Fatalf("expected error for key %q", key)
		}
	}
}

func TestFileStoreWriteHonorsContext(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Write(ctx, "a.png", []byte("x")); err == nil {
		t.Fatalf("expected canceled context to abort write")
	}
	if _, err := os.Stat(filepath.Join(store.BasePath(), "a.png")); !os.IsNotExist(err) {
		t.Fatalf("file should not exist after aborted write")
	}
}

func TestSweeperRemovesExpiredFiles(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	old := filepath.Join(dir, "edit-old.jpg")
	fresh := filepath.Join(dir, "edit-fresh.jpg")
	for _, p := range []string{old, fresh} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("seed file: %v", err)
		}
	}
	if err := os.Chtimes(old, now.Add(-8*24*time.Hour), now.Add(-8*24*time.Hour)); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := os.Chtimes(fresh, now.Add(-time.Hour), now.Add(-time.Hour)); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "incoming"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	sweeper := NewSweeper([]string{dir, filepath.Join(dir, "does-not-exist")}, 7*24*time.Hour, time.Hour, nil)
	sweeper.now = func() time.Time { return now }
	removed, err := sweeper.SweepOnce()
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expired file still present")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh file removed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "incoming")); err != nil {
		t.Fatalf("subdirectory removed: %v", err)
	}
}
