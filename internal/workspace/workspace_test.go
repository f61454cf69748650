package workspace

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/martinp-labs/ipvc/internal/metadata"
	"github.com/martinp-labs/ipvc/internal/store"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScanFindsAddedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "a")
	writeFile(t, root, "sub/b.txt", "b")

	meta := metadata.New(store.New(store.NewMemoryBackend()))
	scanner := NewScanner(meta)

	changes, updated, err := scanner.Scan("repoHex", "main", "workspace", root)
	if err != nil {
		t.Fatal(err)
	}
	if len(changes.Added) != 2 {
		t.Fatalf("got %v", changes.Added)
	}
	if len(updated) != 2 {
		t.Fatalf("got %v", updated)
	}
}

func TestScanFindsModifiedAndRemoved(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "a")

	meta := metadata.New(store.New(store.NewMemoryBackend()))
	scanner := NewScanner(meta)

	_, updated, err := scanner.Scan("repoHex", "main", "workspace", root)
	if err != nil {
		t.Fatal(err)
	}
	if err := meta.Write("repoHex", "main", "workspace", updated); err != nil {
		t.Fatal(err)
	}

	// Modify a.txt with a distinct mtime.
	time.Sleep(2 * time.Millisecond)
	writeFile(t, root, "a.txt", "a-changed")
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(filepath.Join(root, "a.txt"), future, future); err != nil {
		t.Fatal(err)
	}

	changes, _, err := scanner.Scan("repoHex", "main", "workspace", root)
	if err != nil {
		t.Fatal(err)
	}
	if len(changes.Modified) != 1 || changes.Modified[0] != "a.txt" {
		t.Fatalf("got %v", changes.Modified)
	}

	if err := os.Remove(filepath.Join(root, "a.txt")); err != nil {
		t.Fatal(err)
	}
	changes, _, err = scanner.Scan("repoHex", "main", "workspace", root)
	if err != nil {
		t.Fatal(err)
	}
	if len(changes.Removed) != 1 || changes.Removed[0] != "a.txt" {
		t.Fatalf("got %v", changes.Removed)
	}
}

func TestSyncEngineWritesToStore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "hello")

	s := store.New(store.NewMemoryBackend())
	meta := metadata.New(s)
	engine := NewSyncEngine(s, meta)

	objChanges, numHashed, err := engine.Sync("repoHex", "main", "workspace", root)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if numHashed != 1 {
		t.Fatalf("got numHashed=%d, want 1", numHashed)
	}
	if len(objChanges) != 1 || objChanges[0].Type != store.Added {
		t.Fatalf("got %+v", objChanges)
	}

	data, err := s.Read("/ipvc/repos/repoHex/branches/main/workspace/data/bundle/files/a.txt")
	if err != nil {
		t.Fatalf("expected synced file in store: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("got %q", data)
	}
}
