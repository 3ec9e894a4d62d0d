package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tendant/teamsync/pkg/teamsync"
)

// tempSuffix marks in-flight uploads; List never reports them.
// No allowed asset extension can end with it.
const tempSuffix = ".upload"

// Backend is a filesystem implementation of the teamsync.BlobStore interface.
// Each namespace is a directory under BaseDir.
type Backend struct {
	baseDir string
}

// Config options for the filesystem backend
type Config struct {
	BaseDir string // Base directory holding one directory per namespace
}

// New creates a new filesystem storage backend and its namespace directories
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	for _, ns := range teamsync.Namespaces {
		if err := os.MkdirAll(filepath.Join(config.BaseDir, ns.Dir()), 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", ns, err)
		}
	}

	return &Backend{baseDir: config.BaseDir}, nil
}

func (b *Backend) dirFor(ns teamsync.Namespace) (string, error) {
	if !ns.Valid() {
		return "", teamsync.ErrUnknownNamespace
	}
	return filepath.Join(b.baseDir, ns.Dir()), nil
}

// Put streams the payload into a temp file next to the target and renames it
// into place, so readers see either the old file or the complete new one.
func (b *Backend) Put(ctx context.Context, ns teamsync.Namespace, name string, reader io.Reader) (int64, error) {
	dir, err := b.dirFor(ns)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, b.storageErr("put", ns, name, fmt.Errorf("failed to create directory: %w", err))
	}

	tmp, err := os.CreateTemp(dir, "*"+tempSuffix)
	if err != nil {
		return 0, b.storageErr("put", ns, name, fmt.Errorf("failed to create file: %w", err))
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	size, err := io.Copy(tmp, reader)
	if err != nil {
		_ = tmp.Close()
		return 0, b.storageErr("put", ns, name, fmt.Errorf("failed to write file: %w", err))
	}
	if err := tmp.Chmod(0644); err != nil {
		_ = tmp.Close()
		return 0, b.storageErr("put", ns, name, fmt.Errorf("failed to set permissions: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return 0, b.storageErr("put", ns, name, fmt.Errorf("failed to sync file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return 0, b.storageErr("put", ns, name, fmt.Errorf("failed to close file: %w", err))
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return 0, b.storageErr("put", ns, name, fmt.Errorf("failed to publish file: %w", err))
	}

	return size, nil
}

// Get opens the stored file
func (b *Backend) Get(ctx context.Context, ns teamsync.Namespace, name string) (io.ReadCloser, error) {
	dir, err := b.dirFor(ns)
	if err != nil {
		return nil, err
	}

	filePath := filepath.Join(dir, name)
	info, err := os.Stat(filePath)
	if errors.Is(err, iofs.ErrNotExist) || (err == nil && !info.Mode().IsRegular()) {
		return nil, teamsync.ErrObjectNotFound
	} else if err != nil {
		return nil, b.storageErr("get", ns, name, fmt.Errorf("failed to get file info: %w", err))
	}

	file, err := os.Open(filePath)
	if errors.Is(err, iofs.ErrNotExist) {
		return nil, teamsync.ErrObjectNotFound
	} else if err != nil {
		return nil, b.storageErr("get", ns, name, fmt.Errorf("failed to open file: %w", err))
	}
	return file, nil
}

// List returns the regular files in the namespace directory
func (b *Backend) List(ctx context.Context, ns teamsync.Namespace) ([]string, error) {
	dir, err := b.dirFor(ns)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, iofs.ErrNotExist) {
		return []string{}, nil
	} else if err != nil {
		return nil, b.storageErr("list", ns, "", fmt.Errorf("failed to read directory: %w", err))
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasSuffix(entry.Name(), tempSuffix) {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

// Delete removes one file
func (b *Backend) Delete(ctx context.Context, ns teamsync.Namespace, name string) error {
	dir, err := b.dirFor(ns)
	if err != nil {
		return err
	}

	err = os.Remove(filepath.Join(dir, name))
	if errors.Is(err, iofs.ErrNotExist) {
		return teamsync.ErrObjectNotFound
	} else if err != nil {
		return b.storageErr("delete", ns, name, fmt.Errorf("failed to delete file: %w", err))
	}
	return nil
}

func (b *Backend) storageErr(op string, ns teamsync.Namespace, name string, err error) error {
	return &teamsync.StorageError{Backend: "fs", Key: filepath.Join(ns.Dir(), name), Op: op, Err: err}
}
