package storage

import "context"

// BlobStore abstracts the object store used for transcription inputs and
// batch provider output artifacts.
type BlobStore interface {
	// UploadFromURL streams the content behind srcURL into the store and
	// returns the resulting blob URI.
	UploadFromURL(ctx context.Context, srcURL, objectName string) (string, error)
	// DownloadBytes reads the full content of a blob URI.
	DownloadBytes(ctx context.Context, uri string) ([]byte, error)
	// OutputURI returns the blob URI where a batch job keyed by name should
	// write its result.
	OutputURI(objectName string) string
}
