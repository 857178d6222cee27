package storage

import (
	"context"
	"io"
)

// Storage keeps uploaded source files until their job is deleted.
// Locations returned by Save are opaque to callers and are what Upload rows
// persist as storage_path.
type Storage interface {
	Name() string
	Save(ctx context.Context, userID, fileName string, r io.Reader, size int64) (string, error)
	// Localize makes the object readable at a local path. cleanup must be
	// called once the caller is done with the path.
	Localize(ctx context.Context, location string) (path string, cleanup func(), err error)
	// Remove deletes the object. Removing a missing object is not an error.
	Remove(ctx context.Context, location string) error
}
