package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileSlotStore keeps the slot in a single file. Writes go through a tmp
// file plus rename so a crash never leaves a half-written slot behind.
type FileSlotStore struct {
	path string
}

func NewFileSlotStore(path string) (*FileSlotStore, error) {
	if path == "" {
		return nil, errors.New("storage: required slot path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("storage: create slot dir: %w", err)
	}
	return &FileSlotStore{path: path}, nil
}

func (s *FileSlotStore) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: read slot: %w", err)
	}
	return data, nil
}

func (s *FileSlotStore) Save(ctx context.Context, data []byte) error {
	if len(data) == 0 {
		return errors.New("storage: required data")
	} else if err := ctx.Err(); err != nil {
		return err
	}

	tmpPath := s.path + ".tmp"
	f, err := os.OpenFile(
		tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC,
		0o644,
	)
	if err != nil {
		return fmt.Errorf("storage: open tmp: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		closeErr := f.Close()
		if closeErr != nil {
			return fmt.Errorf("storage: write: %v: close:%w", err, closeErr)
		}
		return fmt.Errorf("storage: write: %w", err)
	} else if err := f.Sync(); err != nil {
		closeErr := f.Close()
		if closeErr != nil {
			return fmt.Errorf("storage: fsync: %v: close:%w", err, closeErr)
		}
		return fmt.Errorf("storage: fsync: %w", err)
	} else if err := f.Close(); err != nil {
		return fmt.Errorf("storage: close: %w", err)
	} else if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("storage: rename tmp: %w", err)
	} else {
		return nil
	}
}

func (s *FileSlotStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: remove slot: %w", err)
	}
	return nil
}

func (s *FileSlotStore) Close() error {
	return nil
}
