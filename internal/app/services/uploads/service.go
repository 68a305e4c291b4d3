package uploads

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quickshop/catalog/internal/app/domain/event"
	"github.com/quickshop/catalog/internal/app/domain/upload"
	"github.com/quickshop/catalog/internal/app/metrics"
	"github.com/quickshop/catalog/internal/app/storage"
	"github.com/quickshop/catalog/pkg/logger"
)

// ErrTooLarge is returned when an upload exceeds the configured size limit.
var ErrTooLarge = errors.New("file exceeds size limit")

// Service stores uploaded files on disk, content-addressed by checksum, and
// keeps their metadata in the upload store.
type Service struct {
	store    storage.UploadStore
	events   storage.EventStore
	dir      string
	maxBytes int64
	log      *logger.Logger
}

// New constructs an upload service writing files under dir. A maxBytes of
// zero disables the size limit. events may be nil.
func New(store storage.UploadStore, events storage.EventStore, dir string, maxBytes int64, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("uploads")
	}
	return &Service{store: store, events: events, dir: dir, maxBytes: maxBytes, log: log}
}

// Save streams r to disk and records the upload's metadata. The stored file
// is named after its sha256 checksum, so identical content is kept once.
func (s *Service) Save(ctx context.Context, ownerID, filename, contentType string, r io.Reader) (upload.Upload, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		return upload.Upload{}, fmt.Errorf("filename is required")
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return upload.Upload{}, fmt.Errorf("create upload dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return upload.Upload{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	limited := r
	if s.maxBytes > 0 {
		limited = io.LimitReader(r, s.maxBytes+1)
	}

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hasher), limited)
	closeErr := tmp.Close()
	if err != nil {
		return upload.Upload{}, fmt.Errorf("write upload: %w", err)
	}
	if closeErr != nil {
		return upload.Upload{}, fmt.Errorf("close upload: %w", closeErr)
	}
	if s.maxBytes > 0 && size > s.maxBytes {
		return upload.Upload{}, fmt.Errorf("upload of %d bytes: %w", size, ErrTooLarge)
	}

	checksum := hex.EncodeToString(hasher.Sum(nil))
	storedPath := filepath.Join(s.dir, checksum)
	if _, err := os.Stat(storedPath); err == nil {
		// Same content already stored.
	} else if err := os.Rename(tmpPath, storedPath); err != nil {
		return upload.Upload{}, fmt.Errorf("store upload: %w", err)
	}

	rec, err := s.store.CreateUpload(ctx, upload.Upload{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Filename:    filename,
		StoredPath:  storedPath,
		Size:        size,
		Checksum:    checksum,
		ContentType: contentType,
	})
	if err != nil {
		return upload.Upload{}, err
	}

	if s.events != nil {
		_, err := s.events.AppendEvent(ctx, event.Event{
			Kind: event.KindUploadStored,
			Payload: map[string]string{
				"upload_id": rec.ID,
				"filename":  rec.Filename,
			},
		})
		if err != nil {
			s.log.WithError(err).Warn("record upload.stored event")
		}
	}

	metrics.RecordUpload(size)
	s.log.WithField("upload_id", rec.ID).
		WithField("size", size).
		Info("file stored")
	return rec, nil
}

// staleTempAge is how old a temp file must be before Cleanup removes it.
// Younger files may belong to an upload still streaming in.
const staleTempAge = time.Hour

// Cleanup removes temp files left behind by interrupted uploads.
func (s *Service) Cleanup() {
	matches, err := filepath.Glob(filepath.Join(s.dir, ".upload-*"))
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-staleTempAge)
	removed := 0
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			s.log.WithError(err).WithField("path", path).Warn("remove stale temp file")
			continue
		}
		removed++
	}
	if removed > 0 {
		s.log.WithField("removed", removed).Info("upload temp files swept")
	}
}

// Get returns upload metadata.
func (s *Service) Get(ctx context.Context, id string) (upload.Upload, error) {
	return s.store.GetUpload(ctx, id)
}

// List returns uploads, optionally filtered by owner.
func (s *Service) List(ctx context.Context, ownerID string) ([]upload.Upload, error) {
	return s.store.ListUploads(ctx, ownerID)
}

// Open returns the stored content of an upload alongside its metadata. The
// caller owns the returned ReadCloser.
func (s *Service) Open(ctx context.Context, id string) (io.ReadCloser, upload.Upload, error) {
	rec, err := s.store.GetUpload(ctx, id)
	if err != nil {
		return nil, upload.Upload{}, err
	}
	f, err := os.Open(rec.StoredPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, upload.Upload{}, fmt.Errorf("upload content %s: %w", id, storage.ErrNotFound)
		}
		return nil, upload.Upload{}, err
	}
	return f, rec, nil
}
