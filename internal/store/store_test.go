package store

import (
	"os"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(NewMemoryBackend())
}

func TestWriteReadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	if err := s.Write("/a/b/c.txt", []byte("hello"), true, true); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := s.Read("/a/b/c.txt")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("got %q, want %q", data, "hello")
	}
}

func TestLs(t *testing.T) {
	s := newTestStore(t)
	if err := s.Write("/dir/a.txt", []byte("a"), true, true); err != nil {
		t.Fatal(err)
	}
	if err := s.Write("/dir/b.txt", []byte("b"), true, true); err != nil {
		t.Fatal(err)
	}
	entries, err := s.Ls("/dir")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
}

func TestRmRecursive(t *testing.T) {
	s := newTestStore(t)
	if err := s.Write("/dir/a.txt", []byte("a"), true, true); err != nil {
		t.Fatal(err)
	}
	if err := s.Rm("/dir", false); err == nil {
		t.Fatalf("expected error removing non-empty dir without recursive")
	}
	if err := s.Rm("/dir", true); err != nil {
		t.Fatalf("Rm recursive: %v", err)
	}
	if _, err := s.Stat("/dir"); err != ErrNotExist {
		t.Fatalf("expected ErrNotExist after rm, got %v", err)
	}
}

func TestCpCopiesSubtree(t *testing.T) {
	s := newTestStore(t)
	if err := s.Write("/src/a.txt", []byte("a"), true, true); err != nil {
		t.Fatal(err)
	}
	if err := s.Cp("/src", "/dst"); err != nil {
		t.Fatalf("Cp: %v", err)
	}
	data, err := s.Read("/dst/a.txt")
	if err != nil {
		t.Fatalf("Read copied file: %v", err)
	}
	if string(data) != "a" {
		t.Fatalf("got %q want %q", data, "a")
	}
	// src untouched
	if _, err := s.Read("/src/a.txt"); err != nil {
		t.Fatalf("src should be untouched: %v", err)
	}
}

func TestObjectDiffAddedRemovedModified(t *testing.T) {
	s := newTestStore(t)
	if err := s.Write("/t/keep.txt", []byte("same"), true, true); err != nil {
		t.Fatal(err)
	}
	if err := s.Write("/t/remove.txt", []byte("gone"), true, true); err != nil {
		t.Fatal(err)
	}
	if err := s.Write("/t/modify.txt", []byte("before"), true, true); err != nil {
		t.Fatal(err)
	}
	before, err := s.Stat("/t")
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Rm("/t/remove.txt", true); err != nil {
		t.Fatal(err)
	}
	if err := s.Write("/t/modify.txt", []byte("after"), true, true); err != nil {
		t.Fatal(err)
	}
	if err := s.Write("/t/added.txt", []byte("new"), true, true); err != nil {
		t.Fatal(err)
	}
	after, err := s.Stat("/t")
	if err != nil {
		t.Fatal(err)
	}

	changes, err := s.ObjectDiff(before.Hash, after.Hash)
	if err != nil {
		t.Fatalf("ObjectDiff: %v", err)
	}

	byPath := map[string]ChangeType{}
	for _, c := range changes {
		byPath[c.Path] = c.Type
	}
	if len(changes) != 3 {
		t.Fatalf("got %d changes, want 3: %+v", len(changes), changes)
	}
	if byPath["remove.txt"] != Removed {
		t.Errorf("remove.txt: got %v, want Removed", byPath["remove.txt"])
	}
	if byPath["modify.txt"] != Modified {
		t.Errorf("modify.txt: got %v, want Modified", byPath["modify.txt"])
	}
	if byPath["added.txt"] != Added {
		t.Errorf("added.txt: got %v, want Added", byPath["added.txt"])
	}
}

func TestObjectDiffIdenticalIsEmpty(t *testing.T) {
	s := newTestStore(t)
	if err := s.Write("/t/a.txt", []byte("x"), true, true); err != nil {
		t.Fatal(err)
	}
	st, err := s.Stat("/t")
	if err != nil {
		t.Fatal(err)
	}
	changes, err := s.ObjectDiff(st.Hash, st.Hash)
	if err != nil {
		t.Fatal(err)
	}
	if len(changes) != 0 {
		t.Fatalf("diff(X,X) should be empty, got %+v", changes)
	}
}

func TestAddHashesFile(t *testing.T) {
	s := newTestStore(t)
	dir := t.TempDir()
	path := dir + "/file.txt"
	if err := os.WriteFile(path, []byte("content"), 0o644); err != nil {
		t.Fatal(err)
	}
	hash, err := s.Add(path)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	data, err := s.Cat(hash)
	if err != nil {
		t.Fatalf("Cat: %v", err)
	}
	if string(data) != "content" {
		t.Fatalf("got %q want %q", data, "content")
	}
}
