// Package storage provides object storage abstractions for the
// submitted-batch archive.
package storage

import (
	"context"
	"errors"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrPutFailed      = errors.New("put failed")
	ErrGetFailed      = errors.New("get failed")
)

// ObjectStorage abstracts the archive's object store.
// Implementations include S3 and local filesystem for testing and
// development.
type ObjectStorage interface {
	// Put writes an object at objectPath, replacing any existing object.
	Put(ctx context.Context, objectPath string, data []byte) error

	// Get reads the object at objectPath.
	Get(ctx context.Context, objectPath string) ([]byte, error)

	// Exists checks if an object exists in storage.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// List returns all object paths under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}
