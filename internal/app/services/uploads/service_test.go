package uploads

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/quickshop/catalog/internal/app/storage"
	"github.com/quickshop/catalog/internal/app/storage/memory"
)

func TestSaveAndOpen(t *testing.T) {
	dir := t.TempDir()
	store := memory.New()
	svc := New(store, store, dir, 0, nil)
	ctx := context.Background()

	rec, err := svc.Save(ctx, "owner-1", "report.txt", "text/plain", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if rec.Size != 5 {
		t.Fatalf("expected size 5, got %d", rec.Size)
	}
	if rec.Checksum == "" {
		t.Fatal("expected checksum")
	}
	if rec.OwnerID != "owner-1" {
		t.Fatalf("expected owner recorded, got %q", rec.OwnerID)
	}

	f, got, err := svc.Open(ctx, rec.ID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	if got.Filename != "report.txt" {
		t.Fatalf("expected original filename, got %q", got.Filename)
	}
	content, _ := io.ReadAll(f)
	if string(content) != "hello" {
		t.Fatalf("expected stored content, got %q", content)
	}
}

func TestSaveDeduplicatesContent(t *testing.T) {
	dir := t.TempDir()
	store := memory.New()
	svc := New(store, store, dir, 0, nil)
	ctx := context.Background()

	a, err := svc.Save(ctx, "o", "a.txt", "text/plain", strings.NewReader("same bytes"))
	if err != nil {
		t.Fatalf("save a: %v", err)
	}
	b, err := svc.Save(ctx, "o", "b.txt", "text/plain", strings.NewReader("same bytes"))
	if err != nil {
		t.Fatalf("save b: %v", err)
	}

	if a.Checksum != b.Checksum {
		t.Fatalf("expected matching checksums, got %q and %q", a.Checksum, b.Checksum)
	}
	if a.ID == b.ID {
		t.Fatal("expected distinct upload records")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected single stored file, got %d", len(entries))
	}
}

func TestSaveStripsPathComponents(t *testing.T) {
	dir := t.TempDir()
	store := memory.New()
	svc := New(store, store, dir, 0, nil)

	rec, err := svc.Save(context.Background(), "o", "../../etc/passwd", "text/plain", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if rec.Filename != "passwd" {
		t.Fatalf("expected base name only, got %q", rec.Filename)
	}
}

func TestSaveEnforcesSizeLimit(t *testing.T) {
	dir := t.TempDir()
	store := memory.New()
	svc := New(store, store, dir, 4, nil)

	_, err := svc.Save(context.Background(), "o", "big.bin", "application/octet-stream", strings.NewReader("too big"))
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}

	// The rejected payload must not leave files behind.
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected empty dir after rejection, got %d entries", len(entries))
	}
}

func TestOpenMissingContent(t *testing.T) {
	dir := t.TempDir()
	store := memory.New()
	svc := New(store, store, dir, 0, nil)
	ctx := context.Background()

	rec, err := svc.Save(ctx, "o", "gone.txt", "text/plain", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, rec.Checksum)); err != nil {
		t.Fatalf("remove stored file: %v", err)
	}

	if _, _, err := svc.Open(ctx, rec.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing content, got %v", err)
	}
}

func TestCleanupRemovesTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := memory.New()
	svc := New(store, store, dir, 0, nil)

	stale := filepath.Join(dir, ".upload-123")
	if err := os.WriteFile(stale, []byte("partial"), 0o644); err != nil {
		t.Fatalf("write stale file: %v", err)
	}
	old := time.Now().Add(-2 * staleTempAge)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("backdate stale file: %v", err)
	}
	keep := filepath.Join(dir, "abcdef")
	if err := os.WriteFile(keep, []byte("stored"), 0o644); err != nil {
		t.Fatalf("write stored file: %v", err)
	}

	svc.Cleanup()

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatal("expected stale temp file removed")
	}
	if _, err := os.Stat(keep); err != nil {
		t.Fatalf("expected stored file kept: %v", err)
	}
}

func TestCleanupKeepsFreshTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := memory.New()
	svc := New(store, store, dir, 0, nil)

	inflight := filepath.Join(dir, ".upload-456")
	if err := os.WriteFile(inflight, []byte("streaming"), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	svc.Cleanup()

	if _, err := os.Stat(inflight); err != nil {
		t.Fatalf("expected fresh temp file kept: %v", err)
	}
}
