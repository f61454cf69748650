package repo

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/martinp-labs/ipvc/internal/layout"
	"github.com/martinp-labs/ipvc/internal/refs"
	"github.com/martinp-labs/ipvc/internal/sign/testsigner"
	"github.com/martinp-labs/ipvc/internal/store"
)

func newTestRepo(t *testing.T) (*Repo, *store.Store) {
	t.Helper()
	s := store.New(store.NewMemoryBackend())
	signer := testsigner.New("self", []byte("secret"), nil)
	root := t.TempDir()
	rp, err := Init(s, signer, root, "")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return rp, s
}

func writeDiskFile(t *testing.T, rp *Repo, name, content string) {
	t.Helper()
	path := filepath.Join(rp.RepoRoot, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestInitializeAndCommit(t *testing.T) {
	rp, _ := newTestRepo(t)
	writeDiskFile(t, rp, "a.txt", "hello")

	if _, err := rp.StageAdd("master"); err != nil {
		t.Fatalf("StageAdd: %v", err)
	}
	hash, err := rp.Commit(context.Background(), "master", "m1")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if hash == "" {
		t.Fatal("expected non-empty commit hash")
	}

	hist, err := rp.History("master")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 1 {
		t.Fatalf("got %d history entries, want 1: %v", len(hist), hist)
	}
}

func TestBranchAndFastForwardMerge(t *testing.T) {
	rp, _ := newTestRepo(t)
	writeDiskFile(t, rp, "a.txt", "hello")
	if _, err := rp.StageAdd("master"); err != nil {
		t.Fatal(err)
	}
	if _, err := rp.Commit(context.Background(), "master", "m1"); err != nil {
		t.Fatal(err)
	}

	if err := rp.CreateBranch("other", "", false); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}

	writeDiskFile(t, rp, "a.txt", "hello\nworld")
	if _, err := rp.StageAdd("master"); err != nil {
		t.Fatal(err)
	}
	if _, err := rp.Commit(context.Background(), "master", "m2"); err != nil {
		t.Fatal(err)
	}

	if err := rp.Checkout("other"); err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	result, err := rp.Merge(context.Background(), "other", "master")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !result.FastForward {
		t.Fatalf("expected a fast-forward merge, got %+v", result)
	}

	otherHead, err := rp.r.RefHash(rp.RepoHex, "other", refs.Head)
	if err != nil {
		t.Fatal(err)
	}
	masterHead, err := rp.r.RefHash(rp.RepoHex, "master", refs.Head)
	if err != nil {
		t.Fatal(err)
	}
	if otherHead != masterHead {
		t.Fatalf("expected other.head == master.head, got %q vs %q", otherHead, masterHead)
	}
}

func TestThreeWayMergeConflictAndAbort(t *testing.T) {
	rp, s := newTestRepo(t)
	writeDiskFile(t, rp, "a.txt", "line1\nline2\nline3\nline4")
	if _, err := rp.StageAdd("master"); err != nil {
		t.Fatal(err)
	}
	if _, err := rp.Commit(context.Background(), "master", "base"); err != nil {
		t.Fatal(err)
	}

	if err := rp.CreateBranch("other", "", false); err != nil {
		t.Fatal(err)
	}

	writeDiskFile(t, rp, "a.txt", "line1\nother\nline3\nline4")
	if _, err := rp.StageAdd("master"); err != nil {
		t.Fatal(err)
	}
	if _, err := rp.Commit(context.Background(), "master", "m2"); err != nil {
		t.Fatal(err)
	}

	if err := rp.Checkout("other"); err != nil {
		t.Fatal(err)
	}
	writeDiskFile(t, rp, "a.txt", "line1\nline2\nblerg\nline4")
	if _, err := rp.StageAdd("other"); err != nil {
		t.Fatal(err)
	}
	if _, err := rp.Commit(context.Background(), "other", "m3"); err != nil {
		t.Fatal(err)
	}

	originalOtherHead, err := rp.r.RefHash(rp.RepoHex, "other", refs.Head)
	if err != nil {
		t.Fatal(err)
	}

	result, err := rp.Merge(context.Background(), "other", "master")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !result.Conflicted {
		t.Fatalf("expected a conflict, got %+v", result)
	}

	st, err := rp.State("other")
	if err != nil {
		t.Fatal(err)
	}
	if st != MergePending {
		t.Fatalf("expected MERGE_PENDING, got %v", st)
	}

	data, err := s.Read(layout.BranchRef(rp.RepoHex, "other", refs.Workspace) + "/data/bundle/files/a.txt")
	if err != nil {
		t.Fatalf("reading conflicted workspace file: %v", err)
	}
	joined := string(data)
	if !strings.Contains(joined, ">>>>>>> other (ours)") || !strings.Contains(joined, "======= master (theirs)") {
		t.Fatalf("missing conflict markers: %q", joined)
	}

	if err := rp.MergeAbort("other"); err != nil {
		t.Fatalf("MergeAbort: %v", err)
	}

	st, err = rp.State("other")
	if err != nil {
		t.Fatal(err)
	}
	if st != Clean {
		t.Fatalf("expected CLEAN after abort, got %v", st)
	}

	restoredHead, err := rp.r.RefHash(rp.RepoHex, "other", refs.Head)
	if err != nil {
		t.Fatal(err)
	}
	if restoredHead != originalOtherHead {
		t.Fatalf("expected head restored to %q, got %q", originalOtherHead, restoredHead)
	}
}
