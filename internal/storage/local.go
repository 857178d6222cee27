package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// Local stores uploads as flat files under one directory.
type Local struct {
	dir    string
	logger *slog.Logger
}

// NewLocal creates dir if needed.
func NewLocal(dir string, logger *slog.Logger) (*Local, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{dir: abs, logger: logger}, nil
}

func (l *Local) Name() string { return "local" }

func (l *Local) Save(ctx context.Context, _ string, fileName string, r io.Reader, _ int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(l.dir, filepath.Base(fileName))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", fileName, err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write %s: %w", fileName, err)
	}
	l.logger.Debug("storage.save.ok", "backend", "local", "path", path, "bytes", n)
	return path, nil
}

func (l *Local) Localize(ctx context.Context, location string) (string, func(), error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	if _, err := os.Stat(location); err != nil {
		return "", nil, fmt.Errorf("stat %s: %w", location, err)
	}
	return location, func() {}, nil
}

func (l *Local) Remove(_ context.Context, location string) error {
	if err := os.Remove(location); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", location, err)
	}
	return nil
}
