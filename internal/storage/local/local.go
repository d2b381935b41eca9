package local

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dev-tams/prunekit/internal/storage/prunable"
)

type Store struct {
	name string
	base string
}

func New(name, basePath string) *Store {
	return &Store{name: name, base: basePath}
}

func (s *Store) Name() string { return s.name }

func (s *Store) BasePath() string { return s.base }

// Walk yields every regular file under base/root as a slash-separated path
// relative to base. A missing root yields nothing: an empty tree is a valid
// (if pointless) prune target.
func (s *Store) Walk(ctx context.Context, root string, fn func(prunable.Object) error) error {
	dir := filepath.Join(s.base, filepath.FromSlash(root))

	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == dir {
				return nil
			}
			return fmt.Errorf("walk %s: %w", p, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(s.base, p)
		if err != nil {
			return fmt.Errorf("rel %s: %w", p, err)
		}

		return fn(prunable.Object{
			Path: filepath.ToSlash(rel),
			Kind: prunable.KindObject,
		})
	})
}

// RemoveAll deletes base/path and everything under it. Paths escaping the
// base directory are rejected.
func (s *Store) RemoveAll(_ context.Context, path string) error {
	clean := filepath.Clean(filepath.FromSlash(path))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return fmt.Errorf("refusing to remove path outside base: %s", path)
	}

	p := filepath.Join(s.base, clean)
	if err := os.RemoveAll(p); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}
