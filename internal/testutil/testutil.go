// Package testutil provides shared test helpers for setting up slide
// catalogs and on-disk fixtures.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pathview/inkscan/internal/annostore"
	"github.com/pathview/inkscan/internal/inventory"
	"github.com/pathview/inkscan/internal/pyramid"
)

// TestDB creates a temporary SQLite catalog that is automatically cleaned up.
func TestDB(t *testing.T) *inventory.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "inkscan-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := inventory.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestStatus creates a status store backed by a temp file.
func TestStatus(t *testing.T) *annostore.StatusStore {
	t.Helper()
	dir := t.TempDir()
	return annostore.NewStatusStore(filepath.Join(dir, "ink_status.json"))
}

// WritePyramidMetadata writes pyramid metadata for a synthetic slide
// into dir and returns the metadata.
func WritePyramidMetadata(t *testing.T, dir, name string, width, height, tileSize int) *pyramid.Metadata {
	t.Helper()
	g := pyramid.NewGeometry(width, height, tileSize, 1)
	meta := pyramid.ComputeMetadata(g, name)
	if err := pyramid.WriteMetadata(pyramid.MetadataPath(dir, name), meta); err != nil {
		t.Fatal(err)
	}
	return meta
}
