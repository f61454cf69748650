package publish

import (
	"testing"

	"github.com/martinp-labs/ipvc/internal/layout"
	"github.com/martinp-labs/ipvc/internal/refs"
	"github.com/martinp-labs/ipvc/internal/store"
)

func TestPreparePublishBranchFirstCallChanged(t *testing.T) {
	s := store.New(store.NewMemoryBackend())
	const repoHex, branch, key = "aabb", "master", "self"

	headPath := layout.BranchRef(repoHex, branch, refs.Head)
	if err := s.Write(headPath, []byte("commit-v1"), true, true); err != nil {
		t.Fatal(err)
	}

	result, err := PreparePublishBranch(s, repoHex, "myrepo", branch, key)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Changed {
		t.Fatalf("expected first publish to report Changed=true")
	}

	dst := layout.PublishedBranch(key, "myrepo", branch)
	st, err := s.Stat(dst)
	if err != nil {
		t.Fatalf("expected published copy at %s: %v", dst, err)
	}
	head, err := s.Stat(headPath)
	if err != nil {
		t.Fatal(err)
	}
	if st.Hash != head.Hash {
		t.Fatalf("published hash %s != head hash %s", st.Hash, head.Hash)
	}
}

func TestPreparePublishBranchUnchangedWhenHeadSame(t *testing.T) {
	s := store.New(store.NewMemoryBackend())
	const repoHex, branch, key = "aabb", "master", "self"

	headPath := layout.BranchRef(repoHex, branch, refs.Head)
	if err := s.Write(headPath, []byte("commit-v1"), true, true); err != nil {
		t.Fatal(err)
	}
	if _, err := PreparePublishBranch(s, repoHex, "myrepo", branch, key); err != nil {
		t.Fatal(err)
	}

	result, err := PreparePublishBranch(s, repoHex, "myrepo", branch, key)
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Fatalf("expected second publish with unchanged head to report Changed=false")
	}
}

func TestPreparePublishBranchChangedAfterNewCommit(t *testing.T) {
	s := store.New(store.NewMemoryBackend())
	const repoHex, branch, key = "aabb", "master", "self"

	headPath := layout.BranchRef(repoHex, branch, refs.Head)
	if err := s.Write(headPath, []byte("commit-v1"), true, true); err != nil {
		t.Fatal(err)
	}
	if _, err := PreparePublishBranch(s, repoHex, "myrepo", branch, key); err != nil {
		t.Fatal(err)
	}

	if err := s.Write(headPath, []byte("commit-v2-longer"), true, true); err != nil {
		t.Fatal(err)
	}
	result, err := PreparePublishBranch(s, repoHex, "myrepo", branch, key)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Changed {
		t.Fatalf("expected publish after a new commit to report Changed=true")
	}
}
