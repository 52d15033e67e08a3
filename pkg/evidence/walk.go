package evidence

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar"
)

// sniffLen is how many leading bytes are checked for NUL when deciding
// whether a file is binary.
const sniffLen = 8 << 10

// DefaultIgnoredDirs are directory names never descended into.
var DefaultIgnoredDirs = []string{
	".git",
	".hg",
	".svn",
	".idea",
	".next",
	".nuxt",
	".terraform",
	".venv",
	".vscode",
	"__pycache__",
	"bin",
	"build",
	"coverage",
	"dist",
	"node_modules",
	"obj",
	"target",
	"vendor",
	"venv",
}

// File is a regular file below the project root.
type File struct {
	// Path is slash-separated and relative to the root.
	Path string
	Abs  string
	Size int64
}

// Base returns the file name.
func (f File) Base() string {
	return path.Base(f.Path)
}

// Ext returns the file name extension, including the dot.
func (f File) Ext() string {
	return path.Ext(f.Path)
}

// Walker lists project files. A symlinked root is followed, symlinks below
// it are not, and unreadable directories are skipped.
type Walker struct {
	ignore      []string
	maxFiles    int
	maxFileSize int64
}

// Files returns regular files below root in lexical order.
//
// When ctx is done the files found so far are returned with the context's
// error.
func (w *Walker) Files(ctx context.Context, root string) ([]File, error) {
	var files []File

	walkRoot := root
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		walkRoot = resolved
	}

	err := filepath.WalkDir(walkRoot, func(p string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err != nil {
			if p == walkRoot {
				return err
			}
			// Unreadable subtrees or vanished files.
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}

			return nil
		}

		rel, err := filepath.Rel(walkRoot, p)
		if err != nil {
			return nil //nolint:nilerr // Outside root.
		}

		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if p != walkRoot && w.skipDir(d.Name(), rel) {
				return fs.SkipDir
			}

			return nil
		}

		if !d.Type().IsRegular() || w.ignored(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil //nolint:nilerr // Vanished file.
		}

		files = append(files, File{Path: rel, Abs: filepath.Join(root, filepath.FromSlash(rel)), Size: info.Size()})
		if w.maxFiles > 0 && len(files) >= w.maxFiles {
			return fs.SkipAll
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return files, fmt.Errorf("walk %s: %w", root, err)
	}

	return files, nil
}

func (w *Walker) skipDir(name, rel string) bool {
	return slices.Contains(DefaultIgnoredDirs, name) || w.ignored(rel)
}

func (w *Walker) ignored(rel string) bool {
	for _, p := range w.ignore {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}

	return false
}

// Read returns the content of f. It reports false for files that are too
// large, binary or unreadable.
func (w *Walker) Read(f File) ([]byte, bool) {
	if w.maxFileSize > 0 && f.Size > w.maxFileSize {
		return nil, false
	}

	file, err := os.Open(f.Abs)
	if err != nil {
		return nil, false
	}
	defer file.Close() //nolint:errcheck // Read-only.

	limit := f.Size
	if w.maxFileSize > 0 {
		limit = w.maxFileSize
	}

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, false
	}

	if bytes.IndexByte(data[:min(len(data), sniffLen)], 0) >= 0 {
		return nil, false
	}

	return data, true
}
