// Package metadata stores per-ref file timestamps so the workspace scanner
// can tell which files changed since the last scan without rehashing
// everything. Grounded on read_files_metadata/write_files_metadata and
// get_metadata_file in the reference implementation.
package metadata

import (
	"encoding/json"
	"errors"

	"github.com/martinp-labs/ipvc/internal/layout"
	"github.com/martinp-labs/ipvc/internal/store"
)

// FileMeta is the cached state for one tracked file.
type FileMeta struct {
	TimestampNS int64 `json:"timestamp_ns"`
}

// Map is path -> cached state, keyed by the path relative to the repo
// root.
type Map map[string]FileMeta

// Store reads and writes the files_metadata sidecar for a branch ref.
type Store struct {
	s *store.Store
}

// New wraps s.
func New(s *store.Store) *Store {
	return &Store{s: s}
}

// path is the store location of ref's metadata file within branch.
func (m *Store) path(repoHex, branch, ref string) string {
	return layout.BranchInfo(repoHex, branch, ref+"/data/bundle/files_metadata")
}

// Read returns the metadata map for ref, or an empty map if none has ever
// been written.
func (m *Store) Read(repoHex, branch, ref string) (Map, error) {
	data, err := m.s.Read(m.path(repoHex, branch, ref))
	if errors.Is(err, store.ErrNotExist) {
		return Map{}, nil
	}
	if err != nil {
		return nil, err
	}
	var meta Map
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// Write persists meta for ref.
func (m *Store) Write(repoHex, branch, ref string, meta Map) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return m.s.Write(m.path(repoHex, branch, ref), data, true, true)
}
