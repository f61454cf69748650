package repo

import (
	"github.com/martinp-labs/ipvc/internal/identity"
	"github.com/martinp-labs/ipvc/internal/ipvcerr"
	"github.com/martinp-labs/ipvc/internal/layout"
	"github.com/martinp-labs/ipvc/internal/publish"
	"github.com/martinp-labs/ipvc/internal/store"
)

// RepoID returns the signing key bound to this repo ("repo id").
func (rp *Repo) RepoID() (string, error) {
	return rp.ids.RepoKeyID(rp.RepoHex)
}

// SetRepoID rebinds this repo's signing key ("repo id KEY").
func (rp *Repo) SetRepoID(keyID string) error {
	return rp.ids.SetRepoKeyID(rp.RepoHex, keyID)
}

// RepoName returns this repo's display name ("repo name").
func (rp *Repo) RepoName() (string, error) {
	return rp.ids.RepoName(rp.RepoHex)
}

// SetRepoName sets this repo's display name ("repo name N").
func (rp *Repo) SetRepoName(name string) error {
	return rp.ids.SetRepoName(rp.RepoHex, name)
}

// ListedRepo is one entry of "repo ls": the (name, repoHex, path) triple
// the reference implementation's `repos` property reports.
type ListedRepo struct {
	Path string
	Hex  string
	Name string
}

// List enumerates every repository ipvc has ever initialized on this
// store, decoding each repo's hex-encoded root path back to a filesystem
// path and reading its display name.
func List(s *store.Store) ([]ListedRepo, error) {
	entries, err := s.Ls(layout.ReposPath())
	if err != nil {
		if err == store.ErrNotExist {
			return nil, nil
		}
		return nil, err
	}
	ids := identity.New(s)
	out := make([]ListedRepo, 0, len(entries))
	for _, e := range entries {
		repoPath, err := layout.RepoHexDecode(e.Name)
		if err != nil {
			continue
		}
		name, err := ids.RepoName(e.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, ListedRepo{Path: repoPath, Hex: e.Name, Name: name})
	}
	return out, nil
}

// Remove forgets the repository rooted at repoPath, deleting its entire
// object-store subtree. It does not touch the filesystem at repoPath.
func Remove(s *store.Store, repoPath string) error {
	repoHex := layout.RepoHex(repoPath)
	return s.Rm(layout.RepoDir(repoHex), true)
}

// PublishBranch stages branch's current head under this repo's bound
// identity key in the published tree ("repo publish"), reporting whether
// it changed since the last time this branch was staged. It does not
// perform any network transport; that is left to an external collaborator
// per spec.md.
func (rp *Repo) PublishBranch(branch string) (publish.Result, error) {
	key, err := rp.RepoID()
	if err != nil {
		return publish.Result{}, err
	}
	name, err := rp.RepoName()
	if err != nil {
		return publish.Result{}, err
	}
	if name == "" {
		name = rp.RepoHex
	}
	return publish.PreparePublishBranch(rp.s, rp.RepoHex, name, branch, key)
}

// Move renames the repository known at fromPath to toPath by relocating
// its object-store subtree to the new hex key.
func Move(s *store.Store, fromPath, toPath string) error {
	fromHex := layout.RepoHex(fromPath)
	toHex := layout.RepoHex(toPath)
	if _, err := s.Stat(layout.RepoDir(toHex)); err == nil {
		return ipvcerr.ErrRepoConflict
	}
	if err := s.Cp(layout.RepoDir(fromHex), layout.RepoDir(toHex)); err != nil {
		return err
	}
	return s.Rm(layout.RepoDir(fromHex), true)
}
