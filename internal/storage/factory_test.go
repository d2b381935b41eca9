package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dev-tams/prunekit/internal/config"
	"github.com/dev-tams/prunekit/internal/storage/prunable"
)

func TestFromConfigBuildsLocalStore(t *testing.T) {
	base := t.TempDir()
	if err := os.MkdirAll(filepath.Join(base, "app", "2020-06-01"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(base, "app", "2020-06-01", "db.dump.gz"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg := &config.Config{
		Storage: []config.StorageConfig{
			{Name: "disk", Type: "local", Local: &config.LocalConfig{Path: base}},
		},
	}

	stores, err := FromConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	st, ok := stores["disk"]
	if !ok {
		t.Fatalf("store %q not built", "disk")
	}
	if st.Name() != "disk" {
		t.Fatalf("Name() = %q, want disk", st.Name())
	}

	var seen []string
	err = st.Walk(context.Background(), "app", func(obj prunable.Object) error {
		seen = append(seen, obj.Path)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(seen) != 1 || seen[0] != "2020-06-01/db.dump.gz" {
		t.Fatalf("Walk saw %v", seen)
	}

	if err := st.RemoveAll(context.Background(), "app/2020-06-01"); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "app", "2020-06-01")); !os.IsNotExist(err) {
		t.Fatalf("expected subtree gone, stat err = %v", err)
	}
}

func TestFromConfigByNamesFiltersAndRejects(t *testing.T) {
	cfg := &config.Config{
		Storage: []config.StorageConfig{
			{Name: "disk", Type: "local", Local: &config.LocalConfig{Path: t.TempDir()}},
			{Name: "bad", Type: "tape"},
		},
	}

	// Filtering skips the unknown backend entirely.
	stores, err := FromConfigByNames(context.Background(), cfg, map[string]struct{}{"disk": {}})
	if err != nil {
		t.Fatalf("FromConfigByNames: %v", err)
	}
	if len(stores) != 1 {
		t.Fatalf("got %d stores, want 1", len(stores))
	}

	if _, err := FromConfig(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unknown storage type")
	}
}
