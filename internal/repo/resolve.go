package repo

import (
	"path"
	"strings"

	"github.com/martinp-labs/ipvc/internal/layout"
	"github.com/martinp-labs/ipvc/internal/pathresolver"
	"github.com/martinp-labs/ipvc/internal/store"
)

// ResolveStorePath expands a ref expression (per pathresolver's grammar)
// against branch as the "current branch" context, returning a full store
// path suitable for Diff, Stat, Read, etc.
func (rp *Repo) ResolveStorePath(branch, refpath string) (string, error) {
	resolved, err := pathresolver.Resolve(refpath, func(name string) bool {
		exists, _ := rp.r.BranchExists(rp.RepoHex, name)
		return exists
	})
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(resolved.StorePath, "/cid/") {
		return resolved.StorePath, nil
	}
	if resolved.Branch != "" {
		// "<branch>/head/data/bundle/files..." relative to the repo's
		// branches directory.
		return path.Join(layout.BranchesDir(rp.RepoHex), resolved.StorePath), nil
	}
	// "<ref>/data/bundle/files..." relative to the current branch's dir.
	return path.Join(layout.BranchDir(rp.RepoHex, branch), resolved.StorePath), nil
}

// ShowResult is what "branch show REF" renders: either a directory
// listing or one file's content, never both.
type ShowResult struct {
	IsDir   bool
	Entries []store.Entry
	Content []byte
}

// Show resolves refpath against branch and returns its listing or content.
func (rp *Repo) Show(branch, refpath string) (ShowResult, error) {
	storePath, err := rp.ResolveStorePath(branch, refpath)
	if err != nil {
		return ShowResult{}, err
	}
	st, err := rp.s.Stat(storePath)
	if err != nil {
		return ShowResult{}, err
	}
	if st.Kind == store.KindDir {
		entries, err := rp.s.Ls(storePath)
		if err != nil {
			return ShowResult{}, err
		}
		return ShowResult{IsDir: true, Entries: entries}, nil
	}
	data, err := rp.s.Cat(st.Hash)
	if err != nil {
		return ShowResult{}, err
	}
	return ShowResult{Content: data}, nil
}
