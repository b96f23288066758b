package domain

import (
	"errors"
	"fmt"
)

// Base error types (sentinel errors).
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnavailable   = errors.New("service unavailable")
	ErrMalformedPath = errors.New("malformed path")
)

// Specific errors.
var (
	ErrCollectionNotFound = fmt.Errorf("collection: %w", ErrNotFound)
	ErrNoCollection       = fmt.Errorf("no collection configured: %w", ErrInvalidInput)
	ErrStorageUnavailable = fmt.Errorf("storage: %w", ErrUnavailable)
	ErrCatalogUnavailable = fmt.Errorf("catalog: %w", ErrUnavailable)
)

// ConfigurationError represents an invalid or incomplete configuration.
// It is raised before any remote call is attempted.
type ConfigurationError struct {
	Field   string // Configuration field
	Message string // Error message
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying error type.
func (e *ConfigurationError) Unwrap() error {
	return ErrInvalidInput
}

// DiscoveryError represents a failure while listing the object store.
type DiscoveryError struct {
	Bucket string // Bucket being listed
	Prefix string // Prefix whose listing failed
	Err    error  // Underlying error
}

// Error implements the error interface.
func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovery failed in bucket %s at prefix %q: %v", e.Bucket, e.Prefix, e.Err)
}

// Unwrap returns the underlying error.
func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// Is reports discovery errors as storage unavailability.
func (e *DiscoveryError) Is(target error) bool {
	return target == ErrStorageUnavailable || target == ErrUnavailable
}

// MalformedTimestampError is returned when the sensing time cannot be
// extracted from a path.
type MalformedTimestampError struct {
	Path   string // Object key
	Token  string // Token that was parsed, empty if it could not be located
	Format string // Configured date format
	Reason string
}

// Error implements the error interface.
func (e *MalformedTimestampError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("malformed timestamp %q in %s (format %s): %s", e.Token, e.Path, e.Format, e.Reason)
	}
	return fmt.Sprintf("malformed timestamp in %s: %s", e.Path, e.Reason)
}

// Unwrap returns the underlying error type.
func (e *MalformedTimestampError) Unwrap() error {
	return ErrMalformedPath
}

// MalformedFilenameError is returned when the band token cannot be located
// in a path.
type MalformedFilenameError struct {
	Path    string // Object key
	Segment string // Filename segment, empty if it could not be located
	Reason  string
}

// Error implements the error interface.
func (e *MalformedFilenameError) Error() string {
	if e.Segment != "" {
		return fmt.Sprintf("malformed filename %q in %s: %s", e.Segment, e.Path, e.Reason)
	}
	return fmt.Sprintf("malformed filename in %s: %s", e.Path, e.Reason)
}

// Unwrap returns the underlying error type.
func (e *MalformedFilenameError) Unwrap() error {
	return ErrMalformedPath
}

// CatalogError represents an unsuccessful response from the catalog.
type CatalogError struct {
	Operation  string // create_collection, list_tiles, create_tile, ...
	StatusCode int    // HTTP status code, 0 if no response was received
	Message    string
}

// Error implements the error interface.
func (e *CatalogError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("catalog error during %s (status %d): %s", e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("catalog error during %s: %s", e.Operation, e.Message)
}

// Is maps well-known status codes onto sentinel errors.
func (e *CatalogError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == 404
	case ErrUnavailable, ErrCatalogUnavailable:
		return e.StatusCode == 0 || e.StatusCode >= 500
	}
	return false
}

// StorageError represents an error during storage operations.
type StorageError struct {
	Operation string // Operation that failed (list, stat, ...)
	Key       string // Object key or prefix
	Err       error  // Underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage error during %s for %s: %v",
			e.Operation, e.Key, e.Err)
	}
	return fmt.Sprintf("storage error during %s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}
