package memory

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/tendant/teamsync/pkg/teamsync"
)

// Backend is an in-memory implementation of the teamsync.BlobStore interface
type Backend struct {
	mu      sync.RWMutex
	objects map[teamsync.Namespace]map[string][]byte
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		objects: make(map[teamsync.Namespace]map[string][]byte),
	}
}

// Put reads the whole payload before taking the lock, then swaps it in
func (b *Backend) Put(ctx context.Context, ns teamsync.Namespace, name string, reader io.Reader) (int64, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return 0, &teamsync.StorageError{Backend: "memory", Key: key(ns, name), Op: "put", Err: err}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	bucket, ok := b.objects[ns]
	if !ok {
		bucket = make(map[string][]byte)
		b.objects[ns] = bucket
	}
	bucket[name] = data
	return int64(len(data)), nil
}

// Get returns a reader over a copy of the stored bytes
func (b *Backend) Get(ctx context.Context, ns teamsync.Namespace, name string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.objects[ns][name]
	if !exists {
		return nil, teamsync.ErrObjectNotFound
	}

	cp := make([]byte, len(data))
	copy(cp, data)
	return io.NopCloser(bytes.NewReader(cp)), nil
}

// List returns the names stored in the namespace
func (b *Backend) List(ctx context.Context, ns teamsync.Namespace) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.objects[ns]))
	for name := range b.objects[ns] {
		names = append(names, name)
	}
	return names, nil
}

// Delete removes one asset
func (b *Backend) Delete(ctx context.Context, ns teamsync.Namespace, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[ns][name]; !exists {
		return teamsync.ErrObjectNotFound
	}

	delete(b.objects[ns], name)
	return nil
}

func key(ns teamsync.Namespace, name string) string {
	return ns.Dir() + "/" + name
}
