package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nailerHeum/AjouNICE/internal/apperrors"
	"github.com/nailerHeum/AjouNICE/internal/metrics"
)

// DefaultMaxBytes is the upload ceiling: 20 MiB.
const DefaultMaxBytes int64 = 20 << 20

// Folders used by the upload operations.
const (
	FolderProfile      = "user/profile"
	FolderCategoryIcon = "restaurant/icon"
	FolderBoardPrefix  = "board"
)

var errLimitExceeded = errors.New("size limit exceeded")

// Upload is one file received from a client.
type Upload struct {
	Folder      string
	Filename    string
	ContentType string
	// Size is the client-declared size, or -1 when unknown.
	Size int64
	Body io.Reader
}

// Stored describes a completed upload.
type Stored struct {
	Key     string
	Locator string
	Size    int64
}

// Uploader coordinates uploads into an ObjectStore.
type Uploader struct {
	store    ObjectStore
	baseURL  string
	maxBytes int64
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	newID    func() string
}

// NewUploader creates an Uploader. Locators take the form
// <baseURL>/files/<key>.
func NewUploader(store ObjectStore, baseURL string, maxBytes int64, logger *slog.Logger, m *metrics.Metrics) *Uploader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{
		store:    store,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		maxBytes: maxBytes,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// BoardFolder returns the folder for images attached to posts in category.
func BoardFolder(category string) string {
	category = strings.Trim(path.Clean("/"+category), "/")
	if category == "" {
		return FolderBoardPrefix
	}
	return FolderBoardPrefix + "/" + category
}

// Key builds a collision-resistant object key: <folder>/<uuid>_<unix ms>[.<ext>].
func (u *Uploader) Key(folder, filename string) string {
	key := fmt.Sprintf("%s/%s_%d", strings.Trim(folder, "/"), u.newID(), u.now().UnixMilli())
	if ext := extension(filename); ext != "" {
		key += "." + ext
	}
	return key
}

// Store streams upload into the object store and returns its public locator.
// Payloads larger than the ceiling fail with a StorageUploadError for which
// TooLarge reports true.
func (u *Uploader) Store(ctx context.Context, upload Upload) (*Stored, error) {
	key := u.Key(upload.Folder, upload.Filename)

	if upload.Size > u.maxBytes {
		u.metrics.UploadFailed("too_large")
		return nil, &apperrors.StorageUploadError{Kind: apperrors.UploadTooLarge, Key: key, Limit: u.maxBytes}
	}

	body := &limitedReader{r: upload.Body, remaining: u.maxBytes}
	size, err := u.store.Put(ctx, key, upload.ContentType, body)
	if body.exceeded {
		u.discard(key)
		u.metrics.UploadFailed("too_large")
		return nil, &apperrors.StorageUploadError{Kind: apperrors.UploadTooLarge, Key: key, Limit: u.maxBytes}
	}
	if err != nil {
		u.metrics.UploadFailed("transport")
		return nil, &apperrors.StorageUploadError{Kind: apperrors.UploadTransport, Key: key, Err: err}
	}

	u.metrics.Uploaded(size)
	u.logger.Info("upload stored", "key", key, "bytes", size)
	return &Stored{Key: key, Locator: u.Locator(key), Size: size}, nil
}

// Locator returns the public URL for key.
func (u *Uploader) Locator(key string) string {
	return u.baseURL + "/files/" + key
}

// Open returns the stored object for key.
func (u *Uploader) Open(ctx context.Context, key string) (*Object, error) {
	return u.store.Get(ctx, strings.TrimPrefix(key, "/"))
}

// Remove deletes an object, used to compensate a failed follow-up write.
func (u *Uploader) Remove(ctx context.Context, key string) error {
	if err := u.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// discard cleans up whatever the backend kept of an aborted upload.
func (u *Uploader) discard(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := u.store.Delete(ctx, key); err != nil {
		u.logger.Warn("failed to discard oversized upload", "key", key, "error", err)
	}
}

func extension(filename string) string {
	ext := path.Ext(path.Base(filename))
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// limitedReader fails the read that would cross the limit, so the backend
// aborts instead of storing a truncated object.
type limitedReader struct {
	r         io.Reader
	remaining int64
	exceeded  bool
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.exceeded {
		return 0, errLimitExceeded
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	if int64(n) > l.remaining {
		l.exceeded = true
		return 0, errLimitExceeded
	}
	l.remaining -= int64(n)
	return n, err
}
