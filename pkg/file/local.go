package file

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage implements Storage on the local filesystem.
// Intended for development and single-instance deployments.
type LocalStorage struct {
	rootDir string
	baseURL string
}

// NewLocalStorage creates a filesystem-backed storage rooted at rootDir.
// Files are served from baseURL, typically a static file route.
func NewLocalStorage(rootDir, baseURL string) (*LocalStorage, error) {
	if rootDir == "" {
		return nil, ErrInvalidConfig
	}
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToCreateDirectory, err)
	}
	if baseURL != "" && !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	return &LocalStorage{
		rootDir: rootDir,
		baseURL: baseURL,
	}, nil
}

func (l *LocalStorage) resolve(path string) (string, error) {
	path = strings.TrimPrefix(path, "/")
	if strings.Contains(path, "..") {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}
	return filepath.Join(l.rootDir, filepath.FromSlash(path)), nil
}

// Save stores a file under the storage root.
func (l *LocalStorage) Save(ctx context.Context, fh *multipart.FileHeader, path string) (*File, error) {
	if fh == nil {
		return nil, ErrNilFileHeader
	}

	dst, err := l.resolve(path)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToCreateDirectory, err)
	}

	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToOpenFile, err)
	}
	defer func() { _ = src.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToWriteFile, err)
	}
	defer func() { _ = out.Close() }()

	size, err := io.Copy(out, src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToWriteFile, err)
	}

	mimeType, err := GetMIMEType(fh)
	if err != nil {
		mimeType = "application/octet-stream"
	}

	return &File{
		Filename:     SanitizeFilename(fh.Filename),
		Size:         size,
		MIMEType:     mimeType,
		Extension:    GetExtension(fh),
		RelativePath: strings.TrimPrefix(path, "/"),
	}, nil
}

// Delete removes a single file.
func (l *LocalStorage) Delete(ctx context.Context, path string) error {
	dst, err := l.resolve(path)
	if err != nil {
		return err
	}

	if err := os.Remove(dst); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return fmt.Errorf("%w: %v", ErrFailedToDeleteFile, err)
	}
	return nil
}

// Exists checks if a file exists.
func (l *LocalStorage) Exists(ctx context.Context, path string) bool {
	dst, err := l.resolve(path)
	if err != nil {
		return false
	}

	info, err := os.Stat(dst)
	return err == nil && !info.IsDir()
}

// URL returns the public URL for a file.
func (l *LocalStorage) URL(path string) string {
	return l.baseURL + strings.TrimPrefix(path, "/")
}
