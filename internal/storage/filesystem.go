package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"server/internal/domain"
)

// FileStore persists assets onto the local filesystem. It is intended for
// development and test environments where an object storage service is not
// available.
type FileStore struct {
	basePath string
	baseURL  string
}

// NewFileStore initializes a FileStore rooted at basePath. baseURL is used
// to mint temporary links and may be empty in tests.
func NewFileStore(basePath, baseURL string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{basePath: basePath, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

func (s *FileStore) fullPath(key string) (string, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, filepath.FromSlash(cleanKey)), nil
}

// EnsureFolder creates the directory for the given key.
func (s *FileStore) EnsureFolder(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fullPath, err := s.fullPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(fullPath, 0o755); err != nil {
		return fmt.Errorf("%w: ensure folder %s: %v", domain.ErrStorageFailure, path, err)
	}
	return nil
}

// UploadBytes persists the provided bytes at the given relative key. Keys
// are cleaned to prevent directory traversal.
func (s *FileStore) UploadBytes(ctx context.Context, key string, data []byte) (Artifact, error) {
	if s == nil {
		return Artifact{}, errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}
	fullPath, err := s.fullPath(key)
	if err != nil {
		return Artifact{}, err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return Artifact{}, fmt.Errorf("%w: ensure directory: %v", domain.ErrStorageFailure, err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return Artifact{}, fmt.Errorf("%w: write file: %v", domain.ErrStorageFailure, err)
	}
	cleanKey, _ := sanitizeKey(key)
	return Artifact{Path: cleanKey}, nil
}

// UploadImage persists image bytes; on the filesystem backend it behaves
// like UploadBytes.
func (s *FileStore) UploadImage(ctx context.Context, key string, data []byte) (Artifact, error) {
	return s.UploadBytes(ctx, key, data)
}

// DownloadBytes reads the object stored at key.
func (s *FileStore) DownloadBytes(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fullPath, err := s.fullPath(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, key)
		}
		return nil, fmt.Errorf("%w: read file: %v", domain.ErrStorageFailure, err)
	}
	return data, nil
}

// DeletePath removes the file or directory tree at key. Missing paths are
// treated as already deleted.
func (s *FileStore) DeletePath(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fullPath, err := s.fullPath(key)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(fullPath); err != nil {
		return fmt.Errorf("%w: delete %s: %v", domain.ErrStorageFailure, key, err)
	}
	return nil
}

// ListPaths returns the immediate children of folder as storage keys.
func (s *FileStore) ListPaths(ctx context.Context, folder string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fullPath, err := s.fullPath(folder)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: list %s: %v", domain.ErrStorageFailure, folder, err)
	}
	cleanFolder, _ := sanitizeKey(folder)
	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		paths = append(paths, cleanFolder+"/"+entry.Name())
	}
	sort.Strings(paths)
	return paths, nil
}

// TemporaryLink returns a static URL under the configured base URL. The
// filesystem backend has no expiry semantics; links stay valid as long as
// the file exists.
func (s *FileStore) TemporaryLink(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fullPath, err := s.fullPath(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", domain.ErrNotFound, key)
		}
		return "", fmt.Errorf("%w: stat %s: %v", domain.ErrStorageFailure, key, err)
	}
	cleanKey, _ := sanitizeKey(key)
	if s.baseURL == "" {
		return "file://" + fullPath, nil
	}
	return s.baseURL + "/" + cleanKey, nil
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.Clean(key)
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	if cleaned == "." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}

var _ Store = (*FileStore)(nil)
