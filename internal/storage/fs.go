package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/notely/internal/checksum"
)

const tempPrefix = ".notely-tmp-"

// FS implements Provider on a local directory. All access goes through an
// os.Root, so neither ".." nor symlinks can reach outside the vault.
type FS struct {
	root *os.Root
}

// NewFS opens the vault at dir, which must be an existing directory.
func NewFS(dir string) (*FS, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", dir)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: open root: %w", err)
	}
	return &FS{root: root}, nil
}

// Dir returns the vault directory.
func (f *FS) Dir() string { return f.root.Name() }

// Close releases the vault directory.
func (f *FS) Close() error { return f.root.Close() }

// relPath normalizes a vault path to the slash-separated form os.Root and
// io/fs expect. Absolute paths and paths leaving the root are rejected.
func relPath(p string) (string, error) {
	p = filepath.ToSlash(p)
	if p == "" {
		return ".", nil
	}
	if path.IsAbs(p) || filepath.IsAbs(p) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", p)
	}
	clean := path.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("storage: path escapes vault root: %s", p)
	}
	return clean, nil
}

// List walks dir and returns every .md file below it. Hidden files and
// directories are skipped.
func (f *FS) List(dir string) ([]File, error) {
	base, err := relPath(dir)
	if err != nil {
		return nil, err
	}
	fsys := f.root.FS()

	var out []File
	err = fs.WalkDir(fsys, base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p != base && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		out = append(out, File{Path: p, Checksum: checksum.Sum(data), ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	return out, nil
}

// Read returns the raw bytes of a vault file.
func (f *FS) Read(p string) ([]byte, error) {
	rel, err := relPath(p)
	if err != nil {
		return nil, err
	}
	data, err := f.root.ReadFile(rel)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", p, err)
	}
	return data, nil
}

// Write replaces the file at p with content. The content goes to a hidden
// temp file in the same directory first, which is synced and then renamed
// over p; readers see the old or the new file, never a partial one.
func (f *FS) Write(p string, content []byte) (err error) {
	rel, err := relPath(p)
	if err != nil {
		return err
	}
	if rel == "." {
		return errors.New("storage: empty path")
	}
	dir := path.Dir(rel)
	if err := f.root.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmpName := path.Join(dir, tempPrefix+uuid.NewString())
	tmp, err := f.root.OpenFile(tmpName, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = f.root.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := f.root.Rename(tmpName, rel); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	return nil
}
