package atomic

import (
	"errors"
	"testing"

	"github.com/martinp-labs/ipvc/internal/store"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	return store.New(store.NewMemoryBackend())
}

func TestRunCommitsOnSuccess(t *testing.T) {
	s := newStore(t)
	h := New(s)

	err := h.Run(func() error {
		return s.Write("/ipvc/repos/x/branches/main/head", []byte("v1"), true, true)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	data, err := s.Read("/ipvc/repos/x/branches/main/head")
	if err != nil || string(data) != "v1" {
		t.Fatalf("expected committed write, got %q err=%v", data, err)
	}
}

func TestRunRestoresOnFailure(t *testing.T) {
	s := newStore(t)
	h := New(s)

	if err := h.Run(func() error {
		return s.Write("/ipvc/a", []byte("before"), true, true)
	}); err != nil {
		t.Fatal(err)
	}

	wantErr := errors.New("boom")
	err := h.Run(func() error {
		if err := s.Write("/ipvc/a", []byte("after"), true, true); err != nil {
			return err
		}
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("got %v, want %v", err, wantErr)
	}

	data, err := s.Read("/ipvc/a")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "before" {
		t.Fatalf("expected rollback to %q, got %q", "before", data)
	}
}

func TestNestedRunIsPassthrough(t *testing.T) {
	s := newStore(t)
	h := New(s)

	calls := 0
	err := h.Run(func() error {
		return h.Run(func() error {
			calls++
			return s.Write("/ipvc/nested", []byte("v"), true, true)
		})
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("expected inner fn to run once, got %d", calls)
	}
}
