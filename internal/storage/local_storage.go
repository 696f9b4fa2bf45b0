package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStorage keeps model binaries under <basePath>/models.
type LocalStorage struct {
	basePath string
}

func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(filepath.Join(basePath, modelsPrefix), os.ModePerm); err != nil {
		return nil, err
	}
	return &LocalStorage{basePath: basePath}, nil
}

func (ls *LocalStorage) pathFor(name string) (string, error) {
	if !validName(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(ls.basePath, modelsPrefix, name), nil
}

func (ls *LocalStorage) Save(_ context.Context, name string, data io.Reader, _ int64) error {
	filePath, err := ls.pathFor(name)
	if err != nil {
		return err
	}

	file, err := os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}

	if _, err = io.Copy(file, data); err != nil {
		file.Close()
		os.Remove(filePath)
		return err
	}

	if err = file.Close(); err != nil {
		os.Remove(filePath)
		return err
	}
	return nil
}

func (ls *LocalStorage) Open(_ context.Context, name string) (io.ReadCloser, int64, error) {
	filePath, err := ls.pathFor(name)
	if err != nil {
		return nil, 0, err
	}

	file, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, fmt.Errorf("file %s: %w", name, ErrNotFound)
		}
		return nil, 0, err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, err
	}

	return file, info.Size(), nil
}

func (ls *LocalStorage) Delete(_ context.Context, name string) error {
	filePath, err := ls.pathFor(name)
	if err != nil {
		return err
	}

	err = os.Remove(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return err
}
