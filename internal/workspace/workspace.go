// Package workspace implements the workspace scanner and sync engine: it
// turns the current state of a repo's working directory into a diff
// against a ref's last-known state, using timestamp-cached metadata so
// unchanged files never get rehashed. Grounded on workspace_changes and
// add_fs_to_mfs in the reference implementation.
package workspace

import (
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/martinp-labs/ipvc/internal/layout"
	"github.com/martinp-labs/ipvc/internal/metadata"
	"github.com/martinp-labs/ipvc/internal/store"
)

// Changes is the result of a scan: paths relative to the repo root.
type Changes struct {
	Added    []string
	Removed  []string
	Modified []string
}

// Scanner walks a repo's working tree on disk and compares it against
// cached per-ref metadata.
type Scanner struct {
	meta *metadata.Store
}

// NewScanner wraps a metadata store.
func NewScanner(meta *metadata.Store) *Scanner {
	return &Scanner{meta: meta}
}

// Scan lists the files currently under repoRoot and classifies each as
// added, removed (present in cached metadata but absent on disk) or
// modified (mtime changed since the cached timestamp) relative to ref's
// cached metadata. It does not persist the new timestamps; it returns them,
// and SyncEngine.Sync writes them once the new tree is built.
func (s *Scanner) Scan(repoHex, branch, ref, repoRoot string) (Changes, metadata.Map, error) {
	cached, err := s.meta.Read(repoHex, branch, ref)
	if err != nil {
		return Changes{}, nil, err
	}

	onDisk := map[string]int64{}
	err = filepath.WalkDir(repoRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(repoRoot, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		onDisk[filepath.ToSlash(rel)] = info.ModTime().UnixNano()
		return nil
	})
	if err != nil {
		return Changes{}, nil, err
	}

	var changes Changes
	updated := metadata.Map{}

	for path, ts := range onDisk {
		if prev, ok := cached[path]; !ok {
			changes.Added = append(changes.Added, path)
		} else if prev.TimestampNS != ts {
			changes.Modified = append(changes.Modified, path)
		}
		updated[path] = metadata.FileMeta{TimestampNS: ts}
	}
	for path := range cached {
		if _, ok := onDisk[path]; !ok {
			changes.Removed = append(changes.Removed, path)
		}
	}

	return changes, updated, nil
}

// SyncEngine applies a Scanner's findings to a branch ref in the object
// store, re-hashing only added and modified files.
type SyncEngine struct {
	s    *store.Store
	meta *metadata.Store
	scan *Scanner
}

// NewSyncEngine wires a SyncEngine from its dependencies.
func NewSyncEngine(s *store.Store, meta *metadata.Store) *SyncEngine {
	return &SyncEngine{s: s, meta: meta, scan: NewScanner(meta)}
}

// Sync brings ref's stored file tree in line with repoRoot on disk,
// rehashing only files the scanner found added or modified, and returns
// the object-level changes plus how many files needed hashing.
func (e *SyncEngine) Sync(repoHex, branch, ref, repoRoot string) ([]store.Change, int, error) {
	changes, updatedMeta, err := e.scan.Scan(repoHex, branch, ref, repoRoot)
	if err != nil {
		return nil, 0, err
	}

	filesPath := layout.BranchInfo(repoHex, branch, ref+"/data/bundle/files")
	scratchPath := layout.BranchInfo(repoHex, branch, "tmp")

	_ = e.s.Rm(scratchPath, true) // best effort; absent on first sync
	beforeHash, beforeErr := e.statHash(filesPath)
	if beforeErr == nil {
		if err := e.s.Cp(filesPath, scratchPath); err != nil {
			return nil, 0, err
		}
	} else if err := e.s.Mkdir(scratchPath, true); err != nil {
		return nil, 0, err
	}

	for _, p := range append(append([]string{}, changes.Removed...), changes.Modified...) {
		_ = e.s.Rm(joinRel(scratchPath, p), true)
	}

	toHash := append(append([]string{}, changes.Added...), changes.Modified...)
	contents := make([][]byte, len(toHash))

	// Disk reads are independent of each other and of the store, so they
	// fan out; the store writes below stay sequential (the object store
	// doesn't promise concurrent-write safety on the same scratch tree).
	var g errgroup.Group
	for i, p := range toHash {
		i, p := i, p
		g.Go(func() error {
			data, err := os.ReadFile(filepath.Join(repoRoot, filepath.FromSlash(p)))
			if err != nil {
				return err
			}
			contents[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	for i, p := range toHash {
		if err := e.s.Write(joinRel(scratchPath, p), contents[i], true, true); err != nil {
			return nil, 0, err
		}
	}
	numHashed := len(toHash)

	afterHash, err := e.statHash(scratchPath)
	if err != nil {
		return nil, 0, err
	}

	if err := e.meta.Write(repoHex, branch, ref, updatedMeta); err != nil {
		return nil, 0, err
	}

	_ = e.s.Rm(filesPath, true)
	if err := e.s.Cp(scratchPath, filesPath); err != nil {
		return nil, 0, err
	}
	_ = e.s.Rm(scratchPath, true)

	objChanges, err := e.s.ObjectDiff(beforeHash, afterHash)
	if err != nil {
		return nil, 0, err
	}
	return objChanges, numHashed, nil
}

func (e *SyncEngine) statHash(path string) (string, error) {
	st, err := e.s.Stat(path)
	if err != nil {
		return "", err
	}
	return st.Hash, nil
}

func joinRel(base, rel string) string {
	return base + "/" + rel
}
