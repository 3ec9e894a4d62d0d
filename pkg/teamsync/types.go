package teamsync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Position is a planar coordinate pair. The reference system is opaque to the registry.
type Position struct {
	Easting  float64 `json:"easting"`
	Northing float64 `json:"northing"`
}

// PositionRecord is the latest report held for one client
type PositionRecord struct {
	ClientID    string   `json:"uuid"`
	DisplayName string   `json:"name"`
	Position    Position `json:"position"`
	ReportedAt  string   `json:"timestamp"`
}

// PositionInput is a position report as received, before validation.
// Position holds the raw JSON value sent by the client.
type PositionInput struct {
	ClientID    string          `json:"uuid"`
	DisplayName string          `json:"name"`
	Position    json.RawMessage `json:"position"`
	ReportedAt  string          `json:"timestamp"`
}

// PositionAck acknowledges an accepted report
type PositionAck struct {
	ClientID string `json:"uuid"`
}

// Namespace is a disjoint storage partition for assets
type Namespace string

const (
	NamespaceImage Namespace = "image"
	NamespaceFile  Namespace = "file"
)

// Namespaces lists every namespace in a fixed order
var Namespaces = []Namespace{NamespaceImage, NamespaceFile}

// Dir returns the name of the backing location (directory or key prefix) for the namespace
func (n Namespace) Dir() string {
	switch n {
	case NamespaceImage:
		return "images"
	case NamespaceFile:
		return "files"
	default:
		return ""
	}
}

// Valid reports whether n is a known namespace
func (n Namespace) Valid() bool {
	return n == NamespaceImage || n == NamespaceFile
}

// ParseNamespace maps "image"/"images" and "file"/"files" to a Namespace
func ParseNamespace(s string) (Namespace, error) {
	switch strings.ToLower(s) {
	case "image", "images":
		return NamespaceImage, nil
	case "file", "files":
		return NamespaceFile, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownNamespace, s)
	}
}

// NamespaceFor selects the namespace for a declared content type.
// Anything starting with "image" is an image; everything else is a file.
func NamespaceFor(contentType string) Namespace {
	if strings.HasPrefix(contentType, "image") {
		return NamespaceImage
	}
	return NamespaceFile
}

// Upload is one named payload of an upload request
type Upload struct {
	ContentType string
	Name        string
	Body        io.Reader
}

// AssetAck acknowledges a stored asset
type AssetAck struct {
	Namespace Namespace `json:"namespace"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
}

// BatchResult describes the items of a multi-file upload that were stored
type BatchResult struct {
	BatchID string     `json:"batch_id"`
	Stored  []AssetAck `json:"stored"`
}

// BlobStore defines the interface for asset storage backends.
//
// Put must publish atomically: a concurrent Get observes either the previous
// bytes or the new bytes. List returns an empty slice when the namespace
// location does not exist. Get and Delete return ErrObjectNotFound for
// absent keys.
type BlobStore interface {
	// Put writes or overwrites the asset and returns the number of bytes stored
	Put(ctx context.Context, ns Namespace, name string, r io.Reader) (int64, error)

	// Get opens the asset for reading
	Get(ctx context.Context, ns Namespace, name string) (io.ReadCloser, error)

	// List returns the names of every asset in the namespace
	List(ctx context.Context, ns Namespace) ([]string, error)

	// Delete removes one asset
	Delete(ctx context.Context, ns Namespace, name string) error
}

// UploadSource yields the uploads of a batch in request order.
// Next returns io.EOF once the batch is exhausted.
type UploadSource interface {
	Next() (Upload, error)
}

type sliceSource struct {
	uploads []Upload
	pos     int
}

// SliceSource adapts a fixed list of uploads to UploadSource
func SliceSource(uploads ...Upload) UploadSource {
	return &sliceSource{uploads: uploads}
}

func (s *sliceSource) Next() (Upload, error) {
	if s.pos >= len(s.uploads) {
		return Upload{}, io.EOF
	}
	u := s.uploads[s.pos]
	s.pos++
	return u, nil
}
