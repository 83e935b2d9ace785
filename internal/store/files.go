package store

import (
	"context"
	"errors"
	"fmt"
	"io"

	"eventhub/internal/status"

	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/filesystem"
)

// FileStorage stores artifacts in the application filesystem (local disk or the S3
// bucket configured in the PocketBase settings).
type FileStorage struct {
	app core.App
}

func NewFileStorage(app core.App) *FileStorage {
	return &FileStorage{app: app}
}

func (s *FileStorage) Put(ctx context.Context, key string, data []byte) error {
	fsys, err := s.app.NewFilesystem()
	if err != nil {
		return fmt.Errorf("storage: open filesystem: %w", err)
	}
	defer fsys.Close()
	fsys.SetContext(ctx)

	if err := fsys.Upload(data, key); err != nil {
		return fmt.Errorf("storage: upload %s: %w", key, err)
	}
	return nil
}

func (s *FileStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	fsys, err := s.app.NewFilesystem()
	if err != nil {
		return nil, fmt.Errorf("storage: open filesystem: %w", err)
	}
	fsys.SetContext(ctx)

	r, err := fsys.GetReader(key)
	if err != nil {
		fsys.Close()
		if errors.Is(err, filesystem.ErrNotFound) {
			return nil, status.NotFound("file not found")
		}
		return nil, fmt.Errorf("storage: read %s: %w", key, err)
	}
	return &fileReader{ReadCloser: r, fsys: fsys}, nil
}

func (s *FileStorage) Delete(ctx context.Context, key string) error {
	fsys, err := s.app.NewFilesystem()
	if err != nil {
		return fmt.Errorf("storage: open filesystem: %w", err)
	}
	defer fsys.Close()
	fsys.SetContext(ctx)

	if err := fsys.Delete(key); err != nil && !errors.Is(err, filesystem.ErrNotFound) {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

// fileReader releases the filesystem handle together with the blob reader.
type fileReader struct {
	io.ReadCloser
	fsys *filesystem.System
}

func (r *fileReader) Close() error {
	err := r.ReadCloser.Close()
	r.fsys.Close()
	return err
}
