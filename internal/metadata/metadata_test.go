package metadata

import (
	"testing"

	"github.com/martinp-labs/ipvc/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(store.New(store.NewMemoryBackend()))
}

func TestReadMissingReturnsEmpty(t *testing.T) {
	m := newTestStore(t)
	meta, err := m.Read("repoHex", "main", "workspace")
	if err != nil {
		t.Fatal(err)
	}
	if len(meta) != 0 {
		t.Fatalf("expected empty map, got %+v", meta)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	m := newTestStore(t)
	in := Map{"a.txt": {TimestampNS: 123}, "sub/b.txt": {TimestampNS: 456}}
	if err := m.Write("repoHex", "main", "workspace", in); err != nil {
		t.Fatal(err)
	}
	out, err := m.Read("repoHex", "main", "workspace")
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 || out["a.txt"].TimestampNS != 123 || out["sub/b.txt"].TimestampNS != 456 {
		t.Fatalf("got %+v", out)
	}
}

func TestRefsAreIndependent(t *testing.T) {
	m := newTestStore(t)
	if err := m.Write("repoHex", "main", "workspace", Map{"a.txt": {TimestampNS: 1}}); err != nil {
		t.Fatal(err)
	}
	stage, err := m.Read("repoHex", "main", "stage")
	if err != nil {
		t.Fatal(err)
	}
	if len(stage) != 0 {
		t.Fatalf("expected stage metadata to be independent, got %+v", stage)
	}
}
