package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStorage writes artifacts into a directory on disk.
type LocalStorage struct {
	Dir string
}

func NewLocalStorage(dir string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory %s: %w", dir, err)
	}
	return &LocalStorage{Dir: dir}, nil
}

// UploadFile writes the reader to Dir/objectName. The content type is not recorded.
func (l *LocalStorage) UploadFile(ctx context.Context, objectName, _ string, data io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if objectName != filepath.Base(objectName) {
		return fmt.Errorf("invalid object name %q", objectName)
	}

	path := filepath.Join(l.Dir, objectName)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := io.Copy(f, data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
