package teamsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/google/uuid"
)

// AssetStore validates uploads and routes them to a namespace of a BlobStore.
// It holds no asset bytes itself and takes no lock around backend I/O.
type AssetStore struct {
	blobs  BlobStore
	logger *slog.Logger
}

// Option configures an AssetStore
type Option func(*AssetStore)

// WithBlobStore sets the backend that persists asset bytes
func WithBlobStore(store BlobStore) Option {
	return func(s *AssetStore) {
		s.blobs = store
	}
}

// WithLogger sets the logger used for batch progress and clear failures
func WithLogger(logger *slog.Logger) Option {
	return func(s *AssetStore) {
		s.logger = logger
	}
}

// NewAssetStore creates an asset store with the given options
func NewAssetStore(options ...Option) (*AssetStore, error) {
	s := &AssetStore{}
	for _, option := range options {
		option(s)
	}

	if s.blobs == nil {
		return nil, errors.New("blob store is required")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Store validates name, selects the namespace from contentType, and writes the
// bytes, replacing any asset already stored under the same name.
func (s *AssetStore) Store(ctx context.Context, contentType, name string, r io.Reader) (AssetAck, error) {
	if err := ValidateAssetName(name); err != nil {
		return AssetAck{}, &AssetError{Op: "store", Name: name, Err: err}
	}

	ns := NamespaceFor(contentType)
	size, err := s.blobs.Put(ctx, ns, name, r)
	if err != nil {
		return AssetAck{}, &AssetError{Op: "store", Namespace: ns, Name: name, Err: fmt.Errorf("%w: %w", ErrStorageFailure, err)}
	}

	return AssetAck{Namespace: ns, Name: name, Size: size}, nil
}

// StoreBatch stores every upload yielded by src, in order, and stops at the
// first one that fails. Uploads stored before the failure are kept; the
// returned BatchError names the failing item.
func (s *AssetStore) StoreBatch(ctx context.Context, src UploadSource) (BatchResult, error) {
	result := BatchResult{BatchID: uuid.NewString(), Stored: []AssetAck{}}

	for idx := 0; ; idx++ {
		if err := ctx.Err(); err != nil {
			return result, &BatchError{Index: idx, Err: err}
		}

		u, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return result, &BatchError{Index: idx, Err: err}
		}

		ack, err := s.Store(ctx, u.ContentType, u.Name, u.Body)
		if err != nil {
			s.logger.Warn("Upload batch stopped", "batch_id", result.BatchID, "index", idx, "name", u.Name, "stored", len(result.Stored), "error", err)
			return result, &BatchError{Index: idx, Name: u.Name, Err: err}
		}
		s.logger.Info("Asset stored", "batch_id", result.BatchID, "namespace", ack.Namespace, "name", ack.Name, "size", ack.Size, "content_type", u.ContentType)
		result.Stored = append(result.Stored, ack)
	}

	return result, nil
}

// List returns the sorted names of every asset in the namespace.
// A namespace that never received an upload yields an empty slice.
func (s *AssetStore) List(ctx context.Context, ns Namespace) ([]string, error) {
	if !ns.Valid() {
		return nil, &AssetError{Op: "list", Namespace: ns, Err: ErrUnknownNamespace}
	}

	names, err := s.blobs.List(ctx, ns)
	if err != nil {
		return nil, &AssetError{Op: "list", Namespace: ns, Err: fmt.Errorf("%w: %w", ErrStorageFailure, err)}
	}
	if names == nil {
		names = []string{}
	}
	sort.Strings(names)
	return names, nil
}

// Retrieve opens the asset stored under ns and name. The caller must close the reader.
func (s *AssetStore) Retrieve(ctx context.Context, ns Namespace, name string) (io.ReadCloser, error) {
	if !ns.Valid() {
		return nil, &AssetError{Op: "retrieve", Namespace: ns, Name: name, Err: ErrUnknownNamespace}
	}
	if err := ValidateAssetName(name); err != nil {
		return nil, &AssetError{Op: "retrieve", Namespace: ns, Name: name, Err: ErrAssetNotFound}
	}

	rc, err := s.blobs.Get(ctx, ns, name)
	if errors.Is(err, ErrObjectNotFound) {
		return nil, &AssetError{Op: "retrieve", Namespace: ns, Name: name, Err: ErrAssetNotFound}
	}
	if err != nil {
		return nil, &AssetError{Op: "retrieve", Namespace: ns, Name: name, Err: fmt.Errorf("%w: %w", ErrStorageFailure, err)}
	}
	return rc, nil
}

// ClearNamespace deletes every asset in the namespace and returns how many
// were removed. A failed deletion is logged and skipped; the remaining
// assets are still attempted.
func (s *AssetStore) ClearNamespace(ctx context.Context, ns Namespace) (int, error) {
	names, err := s.List(ctx, ns)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, name := range names {
		err := s.blobs.Delete(ctx, ns, name)
		switch {
		case err == nil:
			removed++
		case errors.Is(err, ErrObjectNotFound):
			// removed concurrently
		default:
			s.logger.Error("Failed to delete asset", "namespace", ns, "name", name, "error", err)
		}
	}

	s.logger.Info("Namespace cleared", "namespace", ns, "removed", removed, "listed", len(names))
	return removed, nil
}
