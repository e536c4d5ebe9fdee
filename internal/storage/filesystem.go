package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fleveque/heliassets/internal/model"
)

// FileSystem handles reading and writing asset files under one output directory.
// Assets are stored flat: {baseDir}/{id}{ext}
type FileSystem struct {
	baseDir string
}

// NewFileSystem creates a new FileSystem storage, ensuring the base directory exists.
func NewFileSystem(baseDir string) (*FileSystem, error) {
	// MkdirAll creates the directory and all parents (like mkdir -p).
	// 0755 is the Unix permission mode: owner rwx, group rx, others rx.
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: creating output directory: %v", model.ErrFilesystem, err)
	}
	return &FileSystem{baseDir: baseDir}, nil
}

// Dir returns the base directory.
func (fs *FileSystem) Dir() string { return fs.baseDir }

// Path returns the path of a file named id+ext inside the base directory.
func (fs *FileSystem) Path(id, ext string) string {
	return filepath.Join(fs.baseDir, id+ext)
}

// Size returns the size of path, or -1 if it doesn't exist.
func Size(path string) int64 {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return -1
	}
	return info.Size()
}

// ExistsAbove reports whether path is a regular file strictly larger than minBytes.
// With minBytes 0 any non-empty file counts.
func ExistsAbove(path string, minBytes int64) bool {
	return Size(path) > minBytes
}

// WriteAtomic writes data to path through a temp file in the same directory and a rename.
// An interrupted write never leaves a partial file at path.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: creating directory %s: %v", model.ErrFilesystem, dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %v", model.ErrFilesystem, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: writing %s: %v", model.ErrFilesystem, path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: closing %s: %v", model.ErrFilesystem, path, err)
	}
	// CreateTemp uses 0600; assets are meant to be served.
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: chmod %s: %v", model.ErrFilesystem, path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: renaming into %s: %v", model.ErrFilesystem, path, err)
	}
	return nil
}

// Write saves data as {id}{ext} in the base directory.
func (fs *FileSystem) Write(id, ext string, data []byte) (string, error) {
	path := fs.Path(id, ext)
	if err := WriteAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// Read reads a file from the base directory.
// In Go, file I/O returns []byte (byte slice), the fundamental type for binary data.
func (fs *FileSystem) Read(id, ext string) ([]byte, error) {
	data, err := os.ReadFile(fs.Path(id, ext))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: file not found: %s%s", model.ErrFilesystem, id, ext)
		}
		return nil, fmt.Errorf("%w: reading %s%s: %v", model.ErrFilesystem, id, ext, err)
	}
	return data, nil
}

// List returns the names of regular files in the base directory whose extension
// matches ext (case-insensitive), sorted by name. Temp files are ignored.
func (fs *FileSystem) List(ext string) ([]string, error) {
	entries, err := os.ReadDir(fs.baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s: %v", model.ErrFilesystem, fs.baseDir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ext) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
