// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sink persists converted documents and locally stored assets.
package sink

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrInvalidPath is returned for paths that are absolute or leave the sink root.
var ErrInvalidPath = errors.New("invalid sink path")

// Sink stores documents by slash-separated relative path.
type Sink interface {
	Write(ctx context.Context, p, text string) error
	Exists(ctx context.Context, p string) (bool, error)
	WriteBlob(ctx context.Context, p string, payload []byte) error
}

// FS writes under a root directory on the local filesystem.
type FS struct {
	Root string
}

// NewFS returns an FS rooted at root.
func NewFS(root string) *FS {
	return &FS{Root: root}
}

// Write stores text at p, replacing any previous content atomically.
func (f *FS) Write(ctx context.Context, p, text string) error {
	return f.WriteBlob(ctx, p, []byte(text))
}

// WriteBlob stores payload at p using a temporary file and rename.
func (f *FS) WriteBlob(ctx context.Context, p string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := f.resolve(p)
	if err != nil {
		return err
	}
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".sink-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_, werr := tmp.Write(payload)
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", p, errors.Join(werr, cerr))
	}
	if err := os.Rename(tmpPath, full); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming %s: %w", p, err)
	}
	return nil
}

// Exists reports whether a file is stored at p.
func (f *FS) Exists(ctx context.Context, p string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	full, err := f.resolve(p)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("checking %s: %w", p, err)
	}
}

func (f *FS) resolve(p string) (string, error) {
	if p == "" || path.IsAbs(p) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	clean := path.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return filepath.Join(f.Root, filepath.FromSlash(clean)), nil
}

// DocumentPath returns {dir}/{Sanitize(name)}.md.
func DocumentPath(dir, name string) string {
	return path.Join(dir, Sanitize(name)+".md")
}
