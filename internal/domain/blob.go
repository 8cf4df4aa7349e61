package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter writes objects to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobReader reads objects from object storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// Archiver exports aged ledger records to object storage.
type Archiver interface {
	ArchiveBefore(ctx context.Context, cutoff time.Time) error
}
