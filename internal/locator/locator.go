// Package locator finds per-project storage directories below a root.
package locator

import (
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"
)

const (
	// StoragePattern matches the storage directory name of a project.
	StoragePattern = "*storage"
	// AppDir is the directory inside storage that holds uploaded files.
	AppDir = "app"
)

// ErrInvalidDepth is returned for depths other than 1 or 2.
var ErrInvalidDepth = errors.New("invalid project depth")

// DirectoryNotFoundError reports a root that does not exist or is not a directory.
type DirectoryNotFoundError struct {
	Path string
	Err  error
}

func (e *DirectoryNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("directory %q not found: %v", e.Path, e.Err)
	}

	return fmt.Sprintf("%q is not a directory", e.Path)
}

func (e *DirectoryNotFoundError) Unwrap() error { return e.Err }

// Locator enumerates storage directories at a fixed depth below a root.
type Locator struct {
	root  string
	depth int
	log   *zap.Logger
}

// New validates root and depth and returns a Locator.
func New(root string, depth int, log *zap.Logger) (*Locator, error) {
	if depth != 1 && depth != 2 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDepth, depth)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, &DirectoryNotFoundError{Path: root, Err: err}
	}

	if !info.IsDir() {
		return nil, &DirectoryNotFoundError{Path: root}
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &Locator{root: root, depth: depth, log: log}, nil
}

// Pattern returns the glob, relative to the root, that located directories match.
func (l *Locator) Pattern() string {
	segments := slices.Repeat([]string{"*"}, l.depth)
	segments = append(segments, StoragePattern, AppDir)

	return strings.Join(segments, "/")
}

// All lazily yields every directory matching Pattern below the root.
//
// Directories are read one at a time as the sequence is consumed, so the
// result reflects the filesystem at the moment each entry is visited.
// Unreadable directories along the way are skipped.
func (l *Locator) All() iter.Seq[string] {
	return func(yield func(string) bool) {
		l.walk(l.root, 0, yield)
	}
}

// walk descends one wildcard level per call. It returns false when the
// consumer stopped the iteration.
func (l *Locator) walk(dir string, level int, yield func(string) bool) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		l.log.Debug("skipping unreadable directory", zap.String("path", dir), zap.Error(err))

		return true
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		if !isDir(path, entry) {
			continue
		}

		if level < l.depth {
			if !l.walk(path, level+1, yield) {
				return false
			}

			continue
		}

		if ok, _ := filepath.Match(StoragePattern, entry.Name()); !ok {
			continue
		}

		candidate := filepath.Join(path, AppDir)
		if info, err := os.Stat(candidate); err != nil || !info.IsDir() {
			continue
		}

		if !yield(candidate) {
			return false
		}
	}

	return true
}

// isDir reports whether entry is a directory, resolving symlinks the way a
// shell glob does.
func isDir(path string, entry os.DirEntry) bool {
	if entry.IsDir() {
		return true
	}

	if entry.Type()&os.ModeSymlink == 0 {
		return false
	}

	info, err := os.Stat(path)

	return err == nil && info.IsDir()
}
