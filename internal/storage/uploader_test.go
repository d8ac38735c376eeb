package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nailerHeum/AjouNICE/internal/apperrors"
)

// =============================================================================
// Fake Object Store
// =============================================================================

type memoryStore struct {
	mu      sync.Mutex
	objects map[string]memoryObject
	putErr  error
	deleted []string
}

type memoryObject struct {
	data        []byte
	contentType string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string]memoryObject)}
}

func (m *memoryStore) Put(ctx context.Context, key, contentType string, body io.Reader) (int64, error) {
	if m.putErr != nil {
		return 0, m.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{data: data, contentType: contentType}
	return int64(len(data)), nil
}

func (m *memoryStore) Get(ctx context.Context, key string) (*Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &Object{
		ReadCloser:  io.NopCloser(bytes.NewReader(obj.data)),
		ContentType: obj.contentType,
		Size:        int64(len(obj.data)),
	}, nil
}

func (m *memoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func newTestUploader(store ObjectStore, maxBytes int64) *Uploader {
	u := NewUploader(store, "https://cdn.example.com/", maxBytes, nil, nil)
	u.newID = func() string { return "0f8fad5b-d9cb-469f-a165-70867728950e" }
	u.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return u
}

// =============================================================================
// Key Tests
// =============================================================================

func TestKey(t *testing.T) {
	u := newTestUploader(newMemoryStore(), 0)

	tests := []struct {
		folder   string
		filename string
		want     string
	}{
		{FolderProfile, "me.PNG", "user/profile/0f8fad5b-d9cb-469f-a165-70867728950e_1700000000000.png"},
		{"/restaurant/icon/", "icon.svg", "restaurant/icon/0f8fad5b-d9cb-469f-a165-70867728950e_1700000000000.svg"},
		{BoardFolder("free"), "noext", "board/free/0f8fad5b-d9cb-469f-a165-70867728950e_1700000000000"},
	}

	for _, tt := range tests {
		if got := u.Key(tt.folder, tt.filename); got != tt.want {
			t.Errorf("Key(%q, %q) = %q, want %q", tt.folder, tt.filename, got, tt.want)
		}
	}
}

func TestKey_Unique(t *testing.T) {
	u := NewUploader(newMemoryStore(), "", 0, nil, nil)
	pattern := regexp.MustCompile(`^user/profile/[0-9a-f-]{36}_\d+\.jpg$`)

	a := u.Key(FolderProfile, "a.jpg")
	b := u.Key(FolderProfile, "a.jpg")
	assert.Regexp(t, pattern, a)
	assert.NotEqual(t, a, b)
}

func TestBoardFolder(t *testing.T) {
	assert.Equal(t, "board/notice", BoardFolder("notice"))
	assert.Equal(t, "board/free", BoardFolder("../../free"))
	assert.Equal(t, "board", BoardFolder(""))
}

// =============================================================================
// Store Tests
// =============================================================================

func TestStore_RoundTrip(t *testing.T) {
	store := newMemoryStore()
	u := newTestUploader(store, 0)
	payload := bytes.Repeat([]byte{0xAB, 0x01}, 4096)

	stored, err := u.Store(context.Background(), Upload{
		Folder:      FolderProfile,
		Filename:    "avatar.jpg",
		ContentType: "image/jpeg",
		Size:        int64(len(payload)),
		Body:        bytes.NewReader(payload),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), stored.Size)
	assert.Equal(t, "https://cdn.example.com/files/"+stored.Key, stored.Locator)

	obj, err := u.Open(context.Background(), "/"+stored.Key)
	require.NoError(t, err)
	defer obj.Close()
	got, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, "image/jpeg", obj.ContentType)
}

func TestStore_ExactlyAtLimit(t *testing.T) {
	u := newTestUploader(newMemoryStore(), 1024)

	stored, err := u.Store(context.Background(), Upload{
		Folder: FolderProfile, Filename: "a.bin", Size: -1,
		Body: bytes.NewReader(make([]byte, 1024)),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1024), stored.Size)
}

func TestStore_TooLarge(t *testing.T) {
	tests := []struct {
		name     string
		declared int64
	}{
		{name: "declared size over limit", declared: 2048},
		{name: "undeclared size over limit", declared: -1},
		{name: "under-declared size", declared: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryStore()
			u := newTestUploader(store, 1024)

			stored, err := u.Store(context.Background(), Upload{
				Folder: FolderProfile, Filename: "big.bin", Size: tt.declared,
				Body: bytes.NewReader(make([]byte, 1025)),
			})
			assert.Nil(t, stored)

			var uploadErr *apperrors.StorageUploadError
			require.ErrorAs(t, err, &uploadErr)
			assert.True(t, uploadErr.TooLarge())
			assert.Empty(t, store.objects)
		})
	}
}

func TestStore_TransportFailure(t *testing.T) {
	store := newMemoryStore()
	store.putErr = errors.New("connection reset")
	u := newTestUploader(store, 0)

	_, err := u.Store(context.Background(), Upload{
		Folder: FolderProfile, Filename: "a.png", Size: 3,
		Body: strings.NewReader("abc"),
	})

	var uploadErr *apperrors.StorageUploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.False(t, uploadErr.TooLarge())
	assert.ErrorContains(t, err, "connection reset")
}

func TestRemove(t *testing.T) {
	store := newMemoryStore()
	u := newTestUploader(store, 0)

	stored, err := u.Store(context.Background(), Upload{
		Folder: FolderProfile, Filename: "a.png", Size: 3, Body: strings.NewReader("abc"),
	})
	require.NoError(t, err)

	require.NoError(t, u.Remove(context.Background(), stored.Key))
	_, err = u.Open(context.Background(), stored.Key)
	assert.ErrorIs(t, err, ErrNotFound)
}
