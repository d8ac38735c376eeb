// Package storage streams uploads into object storage and serves them back.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// ErrNotFound is returned when no object exists under a key.
var ErrNotFound = errors.New("object not found")

// Object is a stored blob opened for reading.
type Object struct {
	io.ReadCloser
	ContentType string
	Size        int64
}

// ObjectStore is the object storage backend used by the Uploader.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) (int64, error)
	Get(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
}

type natsObjectStore struct {
	bucket jetstream.ObjectStore
}

// NewNATSObjectStore opens (creating it if needed) the JetStream object
// store bucket named bucket.
func NewNATSObjectStore(ctx context.Context, conn *nats.Conn, bucket string) (ObjectStore, error) {
	js, err := jetstream.New(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}

	store, err := js.CreateOrUpdateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      bucket,
		Description: "board and profile uploads",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open object bucket %s: %w", bucket, err)
	}

	return &natsObjectStore{bucket: store}, nil
}

func (s *natsObjectStore) Put(ctx context.Context, key, contentType string, body io.Reader) (int64, error) {
	meta := jetstream.ObjectMeta{
		Name:    key,
		Headers: nats.Header{},
	}
	if contentType != "" {
		meta.Headers.Set("Content-Type", contentType)
	}

	info, err := s.bucket.Put(ctx, meta, body)
	if err != nil {
		return 0, err
	}
	return int64(info.Size), nil
}

func (s *natsObjectStore) Get(ctx context.Context, key string) (*Object, error) {
	result, err := s.bucket.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrObjectNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	info, err := result.Info()
	if err != nil {
		result.Close()
		return nil, err
	}

	obj := &Object{ReadCloser: result, Size: int64(info.Size)}
	if info.Headers != nil {
		obj.ContentType = info.Headers.Get("Content-Type")
	}
	return obj, nil
}

func (s *natsObjectStore) Delete(ctx context.Context, key string) error {
	err := s.bucket.Delete(ctx, key)
	if errors.Is(err, jetstream.ErrObjectNotFound) {
		return nil
	}
	return err
}
