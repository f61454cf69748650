// Package atomic implements the snapshot/restore harness that wraps every
// mutating repo operation: copy the live namespace subtree aside before
// running, restore it if the operation fails, and do nothing extra when
// called from within an already-atomic operation (nesting is pass-through,
// matching a single outermost snapshot per call chain).
package atomic

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/martinp-labs/ipvc/internal/layout"
	"github.com/martinp-labs/ipvc/internal/store"
)

// Harness tracks whether the current goroutine-equivalent call chain is
// already inside an atomic operation, so nested calls don't snapshot
// redundantly.
type Harness struct {
	s        *store.Store
	depth    int32
	seq      int64
	snapshot atomic.Value // string: current snapshot id, when depth > 0
}

// New wraps s with an atomic-operation harness.
func New(s *store.Store) *Harness {
	return &Harness{s: s}
}

// Run executes fn atomically: on first entry it snapshots the live
// namespace, restoring it verbatim if fn returns an error. Nested calls
// run fn directly, deferring to the outermost Run's snapshot.
func (h *Harness) Run(fn func() error) error {
	if atomic.AddInt32(&h.depth, 1) > 1 {
		defer atomic.AddInt32(&h.depth, -1)
		return fn()
	}
	defer atomic.AddInt32(&h.depth, -1)

	// A per-Harness sequence number, not a timestamp: mutations already
	// serialize through one Harness (depth tracks that), so nanosecond
	// collisions would only be possible across distinct processes, which
	// never share a snapshot path. This avoids depending on a UUID
	// library purely to dodge a collision that can't occur here.
	id := fmt.Sprintf("%d", atomic.AddInt64(&h.seq, 1))
	h.snapshot.Store(id)
	snapshotPath := layout.SnapshotDir(id)

	hadLive := true
	if err := h.s.Cp(layout.Live(), snapshotPath); err != nil {
		if !errors.Is(err, store.ErrNotExist) {
			return fmt.Errorf("snapshotting namespace: %w", err)
		}
		hadLive = false
	}

	if err := fn(); err != nil {
		if _, statErr := h.s.Stat(layout.Live()); statErr == nil {
			if rmErr := h.s.Rm(layout.Live(), true); rmErr != nil {
				return fmt.Errorf("operation failed (%w) and rollback cleanup failed: %v", err, rmErr)
			}
		}
		if hadLive {
			if cpErr := h.s.Cp(snapshotPath, layout.Live()); cpErr != nil {
				return fmt.Errorf("operation failed (%w) and restore failed: %v", err, cpErr)
			}
			_ = h.s.Rm(snapshotPath, true)
		}
		return err
	}

	if hadLive {
		_ = h.s.Rm(snapshotPath, true)
	}
	return nil
}
