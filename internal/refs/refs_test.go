package refs

import (
	"testing"

	"github.com/martinp-labs/ipvc/internal/store"
)

func newTestMachinery(t *testing.T) *Machinery {
	t.Helper()
	return New(store.New(store.NewMemoryBackend()))
}

func TestCreateBranchAndActiveBranch(t *testing.T) {
	m := newTestMachinery(t)
	if err := m.CreateBranch("repoHex", "main", ""); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := m.SetActiveBranch("repoHex", "main"); err != nil {
		t.Fatal(err)
	}
	active, err := m.ActiveBranch("repoHex")
	if err != nil {
		t.Fatal(err)
	}
	if active != "main" {
		t.Fatalf("got %q, want main", active)
	}
}

func TestBranchesListsCreated(t *testing.T) {
	m := newTestMachinery(t)
	if err := m.CreateBranch("repoHex", "main", ""); err != nil {
		t.Fatal(err)
	}
	if err := m.CreateBranch("repoHex", "feature", ""); err != nil {
		t.Fatal(err)
	}
	branches, err := m.Branches("repoHex")
	if err != nil {
		t.Fatal(err)
	}
	if len(branches) != 2 || branches[0] != "feature" || branches[1] != "main" {
		t.Fatalf("got %v", branches)
	}
	exists, err := m.BranchExists("repoHex", "main")
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Fatal("expected main to exist")
	}
}

func TestRefToRefCopy(t *testing.T) {
	m := newTestMachinery(t)
	s := store.New(store.NewMemoryBackend())
	m = New(s)
	if err := m.CreateBranch("repoHex", "main", ""); err != nil {
		t.Fatal(err)
	}
	if err := s.Write("/ipvc/repos/repoHex/branches/main/workspace/file.txt", []byte("v1"), true, true); err != nil {
		t.Fatal(err)
	}
	if err := m.RefToRefCopy("repoHex", "main", Workspace, Stage); err != nil {
		t.Fatalf("RefToRefCopy: %v", err)
	}
	data, err := s.Read("/ipvc/repos/repoHex/branches/main/stage/file.txt")
	if err != nil {
		t.Fatalf("expected stage to carry workspace's content: %v", err)
	}
	if string(data) != "v1" {
		t.Fatalf("got %q", data)
	}
}
