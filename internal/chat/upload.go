// Package chat implements file uploads: a client names a path readable by
// the server process and the server copies it into its upload directory.
package chat

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Upload validation failures, reported back to the requesting client.
var (
	ErrNotFound = errors.New("file not found")
	ErrNotFile  = errors.New("path is not a regular file")
)

// UploadStore copies client-named files into a server-owned directory.
// Files are stored under their base name; a collision overwrites the
// previous upload. The source path is trusted to the extent the server
// process can read it; there is no sandboxing of what a client may name.
type UploadStore struct {
	dir string
}

// NewUploadStore creates the upload directory if absent and returns a store
// rooted there.
func NewUploadStore(dir string) (*UploadStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &UploadStore{dir: abs}, nil
}

// Dir returns the absolute path of the upload directory.
func (st *UploadStore) Dir() string { return st.dir }

// Upload describes one completed (or attempted) upload. Source is always the
// resolved absolute path of the client-supplied file, even on failure, so
// callers can name it in error replies.
type Upload struct {
	Name   string
	Size   int64
	Source string
}

// Save validates the client-supplied path and copies the file's bytes into
// the store. Validation failures return ErrNotFound or ErrNotFile wrapped
// with the resolved path.
func (st *UploadStore) Save(path string) (Upload, error) {
	abs, err := filepath.Abs(strings.TrimSpace(path))
	if err != nil {
		return Upload{Source: path}, fmt.Errorf("resolve %q: %w", path, err)
	}
	up := Upload{Source: abs}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return up, fmt.Errorf("stat %s: %w", abs, ErrNotFound)
		}
		return up, fmt.Errorf("stat %s: %w", abs, err)
	}
	if !info.Mode().IsRegular() {
		return up, fmt.Errorf("stat %s: %w", abs, ErrNotFile)
	}

	src, err := os.Open(abs)
	if err != nil {
		return up, fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	up.Name = filepath.Base(abs)
	destPath := filepath.Join(st.dir, up.Name)

	dest, err := os.Create(destPath)
	if err != nil {
		return up, fmt.Errorf("create destination: %w", err)
	}

	up.Size, err = io.Copy(dest, src)
	if closeErr := dest.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		// Don't leave a truncated file behind.
		if rmErr := os.Remove(destPath); rmErr != nil {
			log.Printf("removing partial upload %s: %v", destPath, rmErr)
		}
		return up, fmt.Errorf("copy %s: %w", abs, err)
	}

	log.Printf("file uploaded: %s (%d bytes) from %s", up.Name, up.Size, abs)
	return up, nil
}
