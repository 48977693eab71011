// Package localstore keeps a mirror of backup artifacts on the server's own
// filesystem. It is deliberately confined: every path it touches must resolve
// inside the configured root.
package localstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/coursearc/coursearc/internal/models"
)

// Store is a directory-rooted artifact store.
type Store struct {
	root   string
	logger zerolog.Logger
}

// New validates and creates the root directory. Roots shorter than four
// characters are rejected; a misconfigured "/" or "/tmp"-style root turns the
// download endpoint into a filesystem browser.
func New(root string, logger zerolog.Logger) (*Store, error) {
	root = filepath.Clean(strings.TrimSpace(root))
	if len(root) < 4 {
		return nil, fmt.Errorf("local store root %q is too short", root)
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create local store root: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve local store root: %w", err)
	}
	return &Store{root: abs, logger: logger}, nil
}

// Root returns the absolute store root.
func (s *Store) Root() string { return s.root }

// EnsureDir creates rel (and parents) under the root and returns the
// absolute path.
func (s *Store) EnsureDir(rel string) (string, error) {
	abs, err := s.ResolveWithin(rel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return "", fmt.Errorf("create directory %s: %w", rel, err)
	}
	return abs, nil
}

// Copy writes the contents of r to rel under the root, creating parent
// directories as needed, and returns the byte count.
func (s *Store) Copy(rel string, r io.Reader) (int64, error) {
	abs, err := s.ResolveWithin(rel)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o750); err != nil {
		return 0, fmt.Errorf("create parent of %s: %w", rel, err)
	}

	f, err := os.Create(abs)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", rel, err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(abs)
		return n, fmt.Errorf("write %s: %w", rel, err)
	}
	return n, nil
}

// Walk lists every file and directory under rel, directories first at each
// level. Symlinks are skipped; following them could escape the root.
func (s *Store) Walk(rel string) ([]models.FileEntry, error) {
	start, err := s.ResolveWithin(rel)
	if err != nil {
		return nil, err
	}

	var out []models.FileEntry
	queue := []string{start}
	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]

		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read directory %s: %w", dir, err)
		}
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].IsDir() != entries[j].IsDir() {
				return entries[i].IsDir()
			}
			return entries[i].Name() < entries[j].Name()
		})
		for _, e := range entries {
			abs := filepath.Join(dir, e.Name())
			info, err := e.Info()
			if err != nil {
				return nil, fmt.Errorf("stat %s: %w", abs, err)
			}
			if info.Mode()&os.ModeSymlink != 0 {
				continue
			}
			relPath, err := filepath.Rel(s.root, abs)
			if err != nil {
				return nil, fmt.Errorf("relativize %s: %w", abs, err)
			}
			fe := models.FileEntry{
				Path:       filepath.ToSlash(relPath),
				Name:       e.Name(),
				ModifiedAt: info.ModTime(),
			}
			if e.IsDir() {
				fe.Type = models.FileTypeDir
				queue = append(queue, abs)
			} else {
				fe.Type = models.FileTypeFile
				fe.SizeBytes = info.Size()
			}
			out = append(out, fe)
		}
	}
	return out, nil
}

// ResolveWithin turns a caller-supplied relative path into an absolute path
// guaranteed to sit inside the root. NUL bytes are stripped, backslashes are
// normalized to slashes, and any path that cleans to a parent reference or
// that symlinks carry outside the root is rejected.
func (s *Store) ResolveWithin(rel string) (string, error) {
	rel = strings.ReplaceAll(rel, "\x00", "")
	rel = strings.ReplaceAll(rel, "\\", "/")
	rel = strings.TrimPrefix(rel, "/")

	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the store root", rel)
	}
	abs := filepath.Join(s.root, clean)

	// The file may not exist yet; resolve the deepest existing ancestor to
	// catch symlinks pointing out of the root.
	probe := abs
	for {
		resolved, err := filepath.EvalSymlinks(probe)
		if err == nil {
			if resolved != s.root && !strings.HasPrefix(resolved, s.root+string(filepath.Separator)) {
				return "", fmt.Errorf("path %q escapes the store root", rel)
			}
			break
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("resolve %s: %w", rel, err)
		}
		parent := filepath.Dir(probe)
		if parent == probe {
			break
		}
		probe = parent
	}
	return abs, nil
}
