package teamsync

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrMissingField indicates a mandatory report field was absent or empty
	ErrMissingField = errors.New("missing required field")

	// ErrMalformedPosition indicates position is not an object carrying both easting and northing
	ErrMalformedPosition = errors.New("position must be an object with 'easting' and 'northing'")

	// ErrNonNumericCoordinate indicates a coordinate is not a finite number
	ErrNonNumericCoordinate = errors.New("'easting' and 'northing' must be numeric values")

	// ErrEmptyName indicates an upload carried no file name
	ErrEmptyName = errors.New("file name is empty")

	// ErrInvalidName indicates a file name that would escape its namespace
	ErrInvalidName = errors.New("file name is invalid")

	// ErrDisallowedExtension indicates the file extension is not in the allow-set
	ErrDisallowedExtension = errors.New("file extension is not allowed")

	// ErrAssetNotFound indicates no asset exists under the requested namespace and name
	ErrAssetNotFound = errors.New("asset not found")

	// ErrStorageFailure indicates the blob backend failed to complete an operation
	ErrStorageFailure = errors.New("storage failure")

	// ErrUnknownNamespace indicates a namespace other than image or file
	ErrUnknownNamespace = errors.New("unknown namespace")

	// ErrObjectNotFound is returned by BlobStore backends for absent keys
	ErrObjectNotFound = errors.New("object not found")
)

// ValidationError reports a position report rejected before it reached the registry
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid position report: %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// AssetError represents an error related to asset operations
type AssetError struct {
	Op        string
	Namespace Namespace
	Name      string
	Err       error
}

func (e *AssetError) Error() string {
	if e.Namespace == "" {
		return fmt.Sprintf("asset operation %s failed for %q: %v", e.Op, e.Name, e.Err)
	}
	return fmt.Sprintf("asset operation %s failed for %s/%s: %v", e.Op, e.Namespace, e.Name, e.Err)
}

func (e *AssetError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to storage operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// BatchError identifies the upload that stopped a multi-file batch.
// Uploads before Index were stored and remain stored.
type BatchError struct {
	Index int
	Name  string
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("upload batch stopped at item %d (%q): %v", e.Index, e.Name, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err rejected a position report as malformed input.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsAssetRejected reports whether err rejected an upload because of its name.
func IsAssetRejected(err error) bool {
	return errors.Is(err, ErrEmptyName) ||
		errors.Is(err, ErrInvalidName) ||
		errors.Is(err, ErrDisallowedExtension)
}
