package dag

import (
	"context"
	"errors"
	"testing"

	"github.com/martinp-labs/ipvc/internal/commit"
	"github.com/martinp-labs/ipvc/internal/refs"
	"github.com/martinp-labs/ipvc/internal/sign/testsigner"
	"github.com/martinp-labs/ipvc/internal/store"
)

func newRepo(t *testing.T) (*store.Store, *refs.Machinery, *commit.Builder) {
	t.Helper()
	s := store.New(store.NewMemoryBackend())
	r := refs.New(s)
	signer := testsigner.New("self", []byte("secret"), nil)
	b := commit.New(s, r, signer)
	return s, r, b
}

func commitFile(t *testing.T, s *store.Store, b *commit.Builder, repoHex, branch, content, msg string) string {
	t.Helper()
	path := "/ipvc/repos/" + repoHex + "/branches/" + branch + "/stage/data/bundle/files/a.txt"
	if err := s.Write(path, []byte(content), true, true); err != nil {
		t.Fatal(err)
	}
	hash, err := b.Commit(context.Background(), repoHex, branch, commit.Opts{Message: msg})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	return hash
}

func TestHistoryFirstParentChain(t *testing.T) {
	s, r, b := newRepo(t)
	if err := r.CreateBranch("repoHex", "main", ""); err != nil {
		t.Fatal(err)
	}
	commitFile(t, s, b, "repoHex", "main", "v1", "m1")
	commitFile(t, s, b, "repoHex", "main", "v2", "m2")
	third := commitFile(t, s, b, "repoHex", "main", "v3", "m3")

	hist, err := History(s, "/ipvc/repos/repoHex/branches/main/head")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 3 {
		t.Fatalf("got %d entries, want 3: %v", len(hist), hist)
	}
	if hist[0] != third {
		t.Fatalf("expected history to start at head, got %q want %q", hist[0], third)
	}
}

func TestLCASameCommit(t *testing.T) {
	s, r, b := newRepo(t)
	if err := r.CreateBranch("repoHex", "main", ""); err != nil {
		t.Fatal(err)
	}
	h := commitFile(t, s, b, "repoHex", "main", "v1", "m1")

	lca, err := LCA(s, h, h)
	if err != nil {
		t.Fatal(err)
	}
	if lca != h {
		t.Fatalf("LCA(x,x) should be x, got %q want %q", lca, h)
	}
}

func TestLCADivergentBranches(t *testing.T) {
	s, r, b := newRepo(t)
	if err := r.CreateBranch("repoHex", "main", ""); err != nil {
		t.Fatal(err)
	}
	base := commitFile(t, s, b, "repoHex", "main", "base", "base")

	if err := r.CreateBranch("repoHex", "other", base); err != nil {
		t.Fatal(err)
	}

	ourHash := commitFile(t, s, b, "repoHex", "other", "our change", "ours")
	theirHash := commitFile(t, s, b, "repoHex", "main", "their change", "theirs")

	lca, err := LCA(s, ourHash, theirHash)
	if err != nil {
		t.Fatalf("LCA: %v", err)
	}
	if lca != base {
		t.Fatalf("got %q, want base %q", lca, base)
	}
}

func TestLCAUnrelatedHistories(t *testing.T) {
	s, r, b := newRepo(t)
	if err := r.CreateBranch("repoHex", "a", ""); err != nil {
		t.Fatal(err)
	}
	if err := r.CreateBranch("repoHex", "b", ""); err != nil {
		t.Fatal(err)
	}
	h1 := commitFile(t, s, b, "repoHex", "a", "x", "m1")
	h2 := commitFile(t, s, b, "repoHex", "b", "y", "m2")

	_, err := LCA(s, h1, h2)
	if !errors.Is(err, ErrUnrelatedHistories) {
		t.Fatalf("got %v, want ErrUnrelatedHistories", err)
	}
}
