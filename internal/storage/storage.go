// Package storage defines the Archive interface for the receipt photo
// archive. Every photo the bot ingests is written to an archive backend
// before parsing starts; the transaction row keeps only the archive path and
// SHA256 checksum, so the archive is the sole holder of the original image.
//
// Backends register themselves with the factory from an init() function in
// their own package:
//
//	func init() {
//	    factory.Register("mybackend", func(cfg *config.Config) (Archive, error) {
//	        return NewMyBackend(cfg)
//	    })
//	}
//
// cmd/server/main.go blank-imports each backend package, so enabling a new
// backend never touches the factory itself.
package storage

import (
	"context"
	"io"
	"time"
)

// Archive stores original receipt photos. Implementations exist for local
// disk, S3, GCS and Azure Blob; which one runs is chosen by
// storage.backend in the config.
//
// Paths are forward-slash object keys of the form
// receipts/<chat_id>/<checksum><ext>, assigned at ingest time. Backends treat
// them as opaque keys.
type Archive interface {
	// Upload writes the photo and reports the size and SHA256 it observed.
	// size is a hint for backends that want it up front; implementations
	// must hash what they actually wrote.
	Upload(ctx context.Context, path string, reader io.Reader, size int64) (*UploadResult, error)

	// Download streams an archived photo. The caller owns the ReadCloser.
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes an archived photo. Used by the ingest rollback when
	// the scan row cannot be recorded.
	Delete(ctx context.Context, path string) error

	// Exists reports whether an object is present without downloading it.
	Exists(ctx context.Context, path string) (bool, error)

	// GetMetadata stats an archived photo. Backends that recorded the
	// SHA256 at upload time return it without re-reading the object.
	GetMetadata(ctx context.Context, path string) (*FileMetadata, error)
}

// UploadResult reports what the backend stored. Checksum is the hex SHA256
// of the written bytes and must match the ingest-side digest of the photo.
type UploadResult struct {
	Path     string
	Size     int64
	Checksum string
}

// FileMetadata is the stat result for an archived photo.
type FileMetadata struct {
	Path         string
	Size         int64
	Checksum     string
	LastModified time.Time
}
