// Package refs implements the ref machinery: the head/stage/workspace
// triad every branch carries, the active-branch pointer, and the branch
// list. Grounded on get_active_branch/set_active_branch/repo_branches in
// the reference implementation.
package refs

import (
	"errors"
	"sort"

	"github.com/martinp-labs/ipvc/internal/layout"
	"github.com/martinp-labs/ipvc/internal/store"
)

// The three refs every branch carries.
const (
	Head      = "head"
	Stage     = "stage"
	Workspace = "workspace"
)

// Machinery reads and writes branch refs and the active-branch pointer.
type Machinery struct {
	s *store.Store
}

// New wraps s.
func New(s *store.Store) *Machinery {
	return &Machinery{s: s}
}

// ActiveBranch returns the currently checked-out branch for repoHex.
func (m *Machinery) ActiveBranch(repoHex string) (string, error) {
	data, err := m.s.Read(layout.RepoInfo(repoHex, "active_branch_name"))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SetActiveBranch checks out branch as the active branch for repoHex.
func (m *Machinery) SetActiveBranch(repoHex, branch string) error {
	return m.s.Write(layout.RepoInfo(repoHex, "active_branch_name"), []byte(branch), true, true)
}

// Branches lists repoHex's branches in a stable order.
func (m *Machinery) Branches(repoHex string) ([]string, error) {
	entries, err := m.s.Ls(layout.BranchesDir(repoHex))
	if errors.Is(err, store.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names, nil
}

// BranchExists reports whether branch is one of repoHex's branches,
// matching the pathresolver.BranchExists signature shape.
func (m *Machinery) BranchExists(repoHex, branch string) (bool, error) {
	branches, err := m.Branches(repoHex)
	if err != nil {
		return false, err
	}
	for _, b := range branches {
		if b == branch {
			return true, nil
		}
	}
	return false, nil
}

// RefHash returns the current hash ref (one of Head/Stage/Workspace) of
// branch resolves to.
func (m *Machinery) RefHash(repoHex, branch, ref string) (string, error) {
	st, err := m.s.Stat(layout.BranchRef(repoHex, branch, ref))
	if err != nil {
		return "", err
	}
	return st.Hash, nil
}

// CreateBranch initializes a new branch's head/stage/workspace refs, all
// pointing at fromHash (typically the parent branch's head, or empty for
// the first branch in a repo).
func (m *Machinery) CreateBranch(repoHex, branch, fromHash string) error {
	for _, ref := range []string{Head, Stage, Workspace} {
		dst := layout.BranchRef(repoHex, branch, ref)
		if fromHash == "" {
			if err := m.s.Mkdir(dst, true); err != nil {
				return err
			}
			continue
		}
		if err := m.s.Cp("/cid/"+fromHash, dst); err != nil {
			return err
		}
	}
	return nil
}

// RefToRefCopy overwrites toRef with a copy of fromRef's current content,
// within the same branch. Used by `stage add` (workspace -> stage),
// `stage remove` (head -> stage) and replay (workspace -> stage).
func (m *Machinery) RefToRefCopy(repoHex, branch, fromRef, toRef string) error {
	src := layout.BranchRef(repoHex, branch, fromRef)
	dst := layout.BranchRef(repoHex, branch, toRef)
	return m.s.Cp(src, dst)
}
