package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Local keeps uploaded documents in a directory until they are processed.
type Local struct {
	dir    string
	logger *slog.Logger
}

func NewLocal(dir string, logger *slog.Logger) (*Local, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir == "" {
		dir = "temp"
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{dir: abs, logger: logger}, nil
}

// Dir returns the absolute storage directory.
func (l *Local) Dir() string { return l.dir }

// Save writes r under a collision-free name derived from name and returns
// the absolute path. Directory components of name are discarded.
func (l *Local) Save(name string, r io.Reader) (string, error) {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "upload"
	}
	path := filepath.Join(l.dir, uuid.New().String()+"_"+base)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		l.logger.Error("storage.create_failed", "path", path, "error", err)
		return "", err
	}

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, h), r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		l.logger.Error("storage.write_failed", "path", path, "error", err)
		return "", fmt.Errorf("save upload: %w", err)
	}

	l.logger.Info("storage.saved", "path", path, "bytes", n, "sha256", hex.EncodeToString(h.Sum(nil)))
	return path, nil
}

// Remove deletes path. A file that is already gone is not an error.
func (l *Local) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		l.logger.Warn("storage.remove_failed", "path", path, "error", err)
		return err
	}
	l.logger.Debug("storage.removed", "path", path)
	return nil
}
