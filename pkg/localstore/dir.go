package localstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	dirPerm  os.FileMode = 0o700
	filePerm os.FileMode = 0o600
)

// Entry describes a stored document.
type Entry struct {
	Name       string // slash separated, relative to the base directory
	Size       int64
	ModifiedAt time.Time
}

// Dir is a directory of documents. Safe for concurrent use; concurrent
// writers of the same name race, the last rename wins.
type Dir struct {
	baseDir string
}

// NewDir resolves baseDir to an absolute path and creates it if needed.
func NewDir(baseDir string) (*Dir, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("%w: empty base directory", ErrInvalidConfig)
	}

	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToCreateDirectory, err)
	}

	return &Dir{baseDir: abs}, nil
}

// Path returns the absolute base directory.
func (d *Dir) Path() string { return d.baseDir }

// Read returns the content of a document.
func (d *Dir) Read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := d.resolvePath(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("%w: %v", ErrFailedToRead, err)
	}
	return data, nil
}

// Write atomically replaces a document, creating parent directories.
func (d *Dir) Write(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := d.resolvePath(name)
	if err != nil {
		return err
	}

	parent := filepath.Dir(path)
	if err := os.MkdirAll(parent, dirPerm); err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToCreateDirectory, err)
	}

	tmp, err := os.CreateTemp(parent, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToWrite, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%w: %v", ErrFailedToWrite, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("%w: %v", ErrFailedToWrite, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%w: %v", ErrFailedToWrite, err)
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		cleanup()
		return fmt.Errorf("%w: %v", ErrFailedToWrite, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("%w: %v", ErrFailedToWrite, err)
	}
	return nil
}

// Delete removes a document.
func (d *Dir) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := d.resolvePath(name)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("%w: %v", ErrFailedToDelete, err)
	}
	return nil
}

// Exists reports whether a regular file with the given name exists.
func (d *Dir) Exists(ctx context.Context, name string) bool {
	_, err := d.Stat(ctx, name)
	return err == nil
}

// Stat describes a single document.
func (d *Dir) Stat(ctx context.Context, name string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := d.resolvePath(name)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("%w: %v", ErrFailedToRead, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, name)
	}
	return d.entry(path, info), nil
}

// List returns the documents directly inside dir, sorted by name.
// Temporary files from in-flight writes are skipped.
func (d *Dir) List(ctx context.Context, dir string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := d.resolvePath(dir)
	if err != nil {
		return nil, err
	}

	items, err := os.ReadDir(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrFailedToRead, err)
	}

	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		if item.IsDir() || strings.HasPrefix(item.Name(), ".") {
			continue
		}
		info, err := item.Info()
		if err != nil {
			continue
		}
		entries = append(entries, *d.entry(filepath.Join(path, item.Name()), info))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (d *Dir) entry(path string, info fs.FileInfo) *Entry {
	rel, err := filepath.Rel(d.baseDir, path)
	if err != nil {
		rel = info.Name()
	}
	return &Entry{
		Name:       filepath.ToSlash(rel),
		Size:       info.Size(),
		ModifiedAt: info.ModTime(),
	}
}

func (d *Dir) resolvePath(name string) (string, error) {
	if strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	abs := filepath.Join(d.baseDir, filepath.Clean(filepath.FromSlash(name)))

	// Keep every path inside baseDir.
	if !strings.HasPrefix(abs, d.baseDir+string(filepath.Separator)) && abs != d.baseDir {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, name)
	}
	return abs, nil
}
