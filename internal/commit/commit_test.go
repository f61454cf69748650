package commit

import (
	"context"
	"errors"
	"testing"

	"github.com/martinp-labs/ipvc/internal/ipvcerr"
	"github.com/martinp-labs/ipvc/internal/refs"
	"github.com/martinp-labs/ipvc/internal/sign/testsigner"
	"github.com/martinp-labs/ipvc/internal/store"
)

func setup(t *testing.T) (*store.Store, *refs.Machinery, *Builder) {
	t.Helper()
	s := store.New(store.NewMemoryBackend())
	r := refs.New(s)
	signer := testsigner.New("self", []byte("secret"), nil)
	b := New(s, r, signer)
	if err := r.CreateBranch("repoHex", "main", ""); err != nil {
		t.Fatal(err)
	}
	return s, r, b
}

func TestCommitNothingToCommitWhenStageMatchesHead(t *testing.T) {
	_, _, b := setup(t)
	_, err := b.Commit(context.Background(), "repoHex", "main", Opts{Message: "m1"})
	if !errors.Is(err, ipvcerr.ErrNothingToCommit) {
		t.Fatalf("got %v, want ErrNothingToCommit", err)
	}
}

func TestCommitWritesMetadataAndLinksParent(t *testing.T) {
	s, _, b := setup(t)
	ctx := context.Background()

	if err := s.Write("/ipvc/repos/repoHex/branches/main/stage/data/bundle/files/a.txt", []byte("v1"), true, true); err != nil {
		t.Fatal(err)
	}
	hash1, err := b.Commit(ctx, "repoHex", "main", Opts{Message: "m1"})
	if err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if hash1 == "" {
		t.Fatal("expected non-empty commit hash")
	}

	meta, err := ReadMetadata(s, "/ipvc/repos/repoHex/branches/main/head")
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if meta.Message != "m1" {
		t.Fatalf("got message %q", meta.Message)
	}
	if meta.Author.PeerID != "self" {
		t.Fatalf("got author %+v", meta.Author)
	}

	// Second commit should link parent.
	if err := s.Write("/ipvc/repos/repoHex/branches/main/stage/data/bundle/files/a.txt", []byte("v2"), true, true); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Commit(ctx, "repoHex", "main", Opts{Message: "m2"}); err != nil {
		t.Fatalf("second commit: %v", err)
	}
	parentData, err := s.Read("/ipvc/repos/repoHex/branches/main/head/data/parent/data/bundle/files/a.txt")
	if err != nil {
		t.Fatalf("expected parent link to resolve to first commit: %v", err)
	}
	if string(parentData) != "v1" {
		t.Fatalf("got %q, want v1", parentData)
	}
}

func TestCommitSignsBundleAndData(t *testing.T) {
	s, _, b := setup(t)
	ctx := context.Background()
	if err := s.Write("/ipvc/repos/repoHex/branches/main/stage/data/bundle/files/a.txt", []byte("v1"), true, true); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Commit(ctx, "repoHex", "main", Opts{Message: "m1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Read("/ipvc/repos/repoHex/branches/main/head/bundle_signature"); err != nil {
		t.Fatalf("expected bundle_signature: %v", err)
	}
	if _, err := s.Read("/ipvc/repos/repoHex/branches/main/head/data_signature"); err != nil {
		t.Fatalf("expected data_signature: %v", err)
	}
}
