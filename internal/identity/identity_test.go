package identity

import (
	"testing"

	"github.com/martinp-labs/ipvc/internal/store"
)

func newRegistrar(t *testing.T) *Registrar {
	t.Helper()
	return New(store.New(store.NewMemoryBackend()))
}

func TestRepoKeyIDDefaultsToSelf(t *testing.T) {
	r := newRegistrar(t)
	id, err := r.RepoKeyID("deadbeef")
	if err != nil {
		t.Fatal(err)
	}
	if id != DefaultKeyID {
		t.Fatalf("got %q, want %q", id, DefaultKeyID)
	}
	// Persisted, not just defaulted in memory.
	id2, err := r.RepoKeyID("deadbeef")
	if err != nil {
		t.Fatal(err)
	}
	if id2 != DefaultKeyID {
		t.Fatalf("got %q on reread", id2)
	}
}

func TestSetAndGetRepoName(t *testing.T) {
	r := newRegistrar(t)
	if name, err := r.RepoName("deadbeef"); err != nil || name != "" {
		t.Fatalf("expected empty name before set, got %q err=%v", name, err)
	}
	if err := r.SetRepoName("deadbeef", "myrepo"); err != nil {
		t.Fatal(err)
	}
	name, err := r.RepoName("deadbeef")
	if err != nil {
		t.Fatal(err)
	}
	if name != "myrepo" {
		t.Fatalf("got %q, want myrepo", name)
	}
}

func TestLoadIdsSeedsSelf(t *testing.T) {
	r := newRegistrar(t)
	reg, err := r.LoadIds()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reg.Local[DefaultKeyID]; !ok {
		t.Fatalf("expected seeded %q entry, got %+v", DefaultKeyID, reg.Local)
	}
}

func TestSetLocalMergesFields(t *testing.T) {
	r := newRegistrar(t)
	if err := r.SetLocal("self", Info{Name: "Ada"}); err != nil {
		t.Fatal(err)
	}
	if err := r.SetLocal("self", Info{Email: "ada@example.com"}); err != nil {
		t.Fatal(err)
	}
	reg, err := r.LoadIds()
	if err != nil {
		t.Fatal(err)
	}
	got := reg.Local["self"]
	if got.Name != "Ada" || got.Email != "ada@example.com" {
		t.Fatalf("got %+v", got)
	}
}
