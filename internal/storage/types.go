package storage

import "context"

// Artifact describes a stored object.
type Artifact struct {
	Path string
}

// Store is the blob-store contract the rest of the system depends on.
// Paths are slash-separated keys rooted under the backend's base prefix.
type Store interface {
	// EnsureFolder creates the folder when the backend has a folder
	// concept; prefix-addressed backends treat it as a no-op.
	EnsureFolder(ctx context.Context, path string) error
	// UploadBytes writes data at path, overwriting any existing object.
	UploadBytes(ctx context.Context, path string, data []byte) (Artifact, error)
	// UploadImage writes image data at path. Kept separate from
	// UploadBytes so backends can attach content-type metadata.
	UploadImage(ctx context.Context, path string, data []byte) (Artifact, error)
	// DownloadBytes reads the object at path. Returns domain.ErrNotFound
	// when absent.
	DownloadBytes(ctx context.Context, path string) ([]byte, error)
	// DeletePath removes the object or subtree at path. Absent paths are
	// a successful no-op.
	DeletePath(ctx context.Context, path string) error
	// ListPaths returns the immediate children of folder. A missing
	// folder yields an empty slice.
	ListPaths(ctx context.Context, folder string) ([]string, error)
	// TemporaryLink issues a short-lived download URL for path. Returns
	// domain.ErrNotFound when the object is absent.
	TemporaryLink(ctx context.Context, path string) (string, error)
}
