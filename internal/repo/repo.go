// Package repo is the Public API: it wires every other component
// (refs, workspace sync, commit, dag, diff, merge, replay, atomic,
// identity, cache) into the repo/branch/stage/diff/merge/replay surface
// the CLI drives. Grounded on the reference implementation's RepoAPI /
// BranchAPI / StageAPI / MergeAPI facade classes.
package repo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/martinp-labs/ipvc/internal/atomic"
	"github.com/martinp-labs/ipvc/internal/cache"
	"github.com/martinp-labs/ipvc/internal/commit"
	"github.com/martinp-labs/ipvc/internal/dag"
	"github.com/martinp-labs/ipvc/internal/diff"
	"github.com/martinp-labs/ipvc/internal/identity"
	"github.com/martinp-labs/ipvc/internal/ipvcerr"
	"github.com/martinp-labs/ipvc/internal/layout"
	"github.com/martinp-labs/ipvc/internal/merge"
	"github.com/martinp-labs/ipvc/internal/metadata"
	"github.com/martinp-labs/ipvc/internal/refs"
	"github.com/martinp-labs/ipvc/internal/replay"
	"github.com/martinp-labs/ipvc/internal/sign"
	"github.com/martinp-labs/ipvc/internal/store"
	"github.com/martinp-labs/ipvc/internal/workspace"
)

// State is the conflict-state machine's current value for a branch.
type State int

const (
	Clean State = iota
	MergePending
	ReplayPending
)

func (st State) String() string {
	switch st {
	case MergePending:
		return "merge_pending"
	case ReplayPending:
		return "replay_pending"
	default:
		return "clean"
	}
}

// Repo is the facade a CLI (or any caller) drives. One instance is bound
// to one filesystem repository root.
type Repo struct {
	s       *store.Store
	r       *refs.Machinery
	ids     *identity.Registrar
	meta    *metadata.Store
	sync    *workspace.SyncEngine
	builder *commit.Builder
	replay  *replay.Controller
	atomic  *atomic.Harness
	cache   *cache.Cache

	RepoHex  string
	RepoRoot string
}

// Open binds a Repo facade to an existing repository rooted at repoRoot.
func Open(s *store.Store, signer sign.Signer, repoRoot string) *Repo {
	r := refs.New(s)
	b := commit.New(s, r, signer)
	return &Repo{
		s:        s,
		r:        r,
		ids:      identity.New(s),
		meta:     metadata.New(s),
		sync:     workspace.NewSyncEngine(s, metadata.New(s)),
		builder:  b,
		replay:   replay.New(s, r, b),
		atomic:   atomic.New(s),
		cache:    cache.New(),
		RepoHex:  layout.RepoHex(repoRoot),
		RepoRoot: repoRoot,
	}
}

// Init creates a new repository at repoRoot with a single branch,
// "master", and checks it out as active.
func Init(s *store.Store, signer sign.Signer, repoRoot, name string) (*Repo, error) {
	repoHex := layout.RepoHex(repoRoot)
	if _, err := s.Stat(layout.RepoDir(repoHex)); err == nil {
		return nil, ipvcerr.ErrRepoConflict
	}

	rp := Open(s, signer, repoRoot)
	if err := rp.r.CreateBranch(repoHex, "master", ""); err != nil {
		return nil, err
	}
	if err := rp.r.SetActiveBranch(repoHex, "master"); err != nil {
		return nil, err
	}
	if name != "" {
		if err := rp.ids.SetRepoName(repoHex, name); err != nil {
			return nil, err
		}
	}
	if _, err := rp.ids.RepoKeyID(repoHex); err != nil {
		return nil, err
	}
	return rp, nil
}

// reservedNames mirrors the three ref names, which no branch may shadow.
var reservedNames = map[string]bool{refs.Head: true, refs.Stage: true, refs.Workspace: true}

func validName(name string) bool {
	if name == "" || reservedNames[name] {
		return false
	}
	for _, r := range name {
		if !(r >= 'a' && r <= 'z') && !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9') && r != '_' {
			return false
		}
	}
	return true
}

// ActiveBranch returns the currently checked-out branch name.
func (rp *Repo) ActiveBranch() (string, error) {
	v, err := rp.cache.GetOrCompute("active_branch", func() (any, error) {
		return rp.r.ActiveBranch(rp.RepoHex)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Branches lists the repo's branches.
func (rp *Repo) Branches() ([]string, error) {
	v, err := rp.cache.GetOrCompute("branches", func() (any, error) {
		return rp.r.Branches(rp.RepoHex)
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// State reports the conflict-state machine's value for branch, derived
// from which sibling refs are present.
func (rp *Repo) State(branch string) (State, error) {
	if _, err := rp.s.Stat(layout.BranchInfo(rp.RepoHex, branch, "replay_head")); err == nil {
		return ReplayPending, nil
	}
	if _, err := rp.s.Stat(layout.BranchInfo(rp.RepoHex, branch, "merge_head")); err == nil {
		return MergePending, nil
	}
	return Clean, nil
}

func (rp *Repo) guardClean(branch string) error {
	st, err := rp.State(branch)
	if err != nil {
		return err
	}
	if st != Clean {
		return ipvcerr.ErrPendingConflict
	}
	return nil
}

// CreateBranch creates branch from the current head of fromBranch (the
// active branch if fromBranch is ""), optionally checking it out.
func (rp *Repo) CreateBranch(branch, fromBranch string, checkout bool) error {
	if !validName(branch) {
		return ipvcerr.ErrBadName
	}
	return rp.atomic.Run(func() error {
		if fromBranch == "" {
			active, err := rp.r.ActiveBranch(rp.RepoHex)
			if err != nil {
				return err
			}
			fromBranch = active
		}
		fromHash, err := rp.r.RefHash(rp.RepoHex, fromBranch, refs.Head)
		if err != nil {
			return err
		}
		if err := rp.r.CreateBranch(rp.RepoHex, branch, fromHash); err != nil {
			return err
		}
		rp.cache.Invalidate("branches")
		if checkout {
			return rp.checkoutLocked(branch)
		}
		return nil
	})
}

// Checkout switches the active branch and replays its workspace ref to
// disk, preserving mtimes.
func (rp *Repo) Checkout(branch string) error {
	return rp.atomic.Run(func() error { return rp.checkoutLocked(branch) })
}

func (rp *Repo) checkoutLocked(branch string) error {
	exists, err := rp.r.BranchExists(rp.RepoHex, branch)
	if err != nil {
		return err
	}
	if !exists {
		return ipvcerr.ErrNoSuchRef
	}
	if err := rp.r.SetActiveBranch(rp.RepoHex, branch); err != nil {
		return err
	}
	rp.cache.Invalidate("active_branch")

	filesPath := layout.BranchRef(rp.RepoHex, branch, refs.Workspace) + "/data/bundle/files"
	metaMap, err := rp.meta.Read(rp.RepoHex, branch, refs.Workspace)
	if err != nil {
		return err
	}

	return rp.checkoutDir(filesPath, "", metaMap)
}

// checkoutDir recursively writes every file under storePath (relative to
// rel) onto disk under rp.RepoRoot, restoring cached mtimes.
func (rp *Repo) checkoutDir(storePath, rel string, metaMap metadata.Map) error {
	entries, err := rp.s.Ls(storePath)
	if errors.Is(err, store.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		childRel := e.Name
		if rel != "" {
			childRel = rel + "/" + e.Name
		}
		if e.Kind == store.KindDir {
			if err := rp.checkoutDir(storePath+"/"+e.Name, childRel, metaMap); err != nil {
				return err
			}
			continue
		}
		data, err := rp.s.Cat(e.Hash)
		if err != nil {
			return err
		}
		dst := filepath.Join(rp.RepoRoot, filepath.FromSlash(childRel))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			return err
		}
		if m, ok := metaMap[childRel]; ok {
			mt := time.Unix(0, m.TimestampNS)
			if err := os.Chtimes(dst, mt, mt); err != nil {
				return err
			}
		}
	}
	return nil
}

// History walks branch's first-parent chain, newest first.
func (rp *Repo) History(branch string) ([]string, error) {
	return dag.History(rp.s, layout.BranchRef(rp.RepoHex, branch, refs.Head))
}

// StageAdd syncs disk -> workspace ref, then copies workspace -> stage.
func (rp *Repo) StageAdd(branch string) ([]store.Change, error) {
	if err := rp.guardClean(branch); err != nil {
		return nil, err
	}
	var changes []store.Change
	err := rp.atomic.Run(func() error {
		c, _, err := rp.sync.Sync(rp.RepoHex, branch, refs.Workspace, rp.RepoRoot)
		if err != nil {
			return err
		}
		changes = c
		return rp.r.RefToRefCopy(rp.RepoHex, branch, refs.Workspace, refs.Stage)
	})
	return changes, err
}

// StageRemove reverts stage to head's content (the inverse of StageAdd).
func (rp *Repo) StageRemove(branch string) error {
	if err := rp.guardClean(branch); err != nil {
		return err
	}
	return rp.atomic.Run(func() error {
		return rp.r.RefToRefCopy(rp.RepoHex, branch, refs.Head, refs.Stage)
	})
}

// StageStatus reports what is staged: the file-level changes from head's
// tree to stage's tree. Disk and the workspace ref are not considered.
func (rp *Repo) StageStatus(branch string) ([]store.Change, error) {
	headFiles := layout.BranchRef(rp.RepoHex, branch, refs.Head) + "/data/bundle/files"
	stageFiles := layout.BranchRef(rp.RepoHex, branch, refs.Stage) + "/data/bundle/files"
	return diff.Changes(rp.s, headFiles, stageFiles)
}

// StageDiff renders StageStatus as a human-readable summary.
func (rp *Repo) StageDiff(branch string) (string, error) {
	changes, err := rp.StageStatus(branch)
	if err != nil {
		return "", err
	}
	return diff.FormatChanges(changes), nil
}

// Commit promotes stage into a new head commit.
func (rp *Repo) Commit(ctx context.Context, branch, message string) (string, error) {
	if err := rp.guardClean(branch); err != nil {
		return "", err
	}
	var hash string
	err := rp.atomic.Run(func() error {
		h, err := rp.builder.Commit(ctx, rp.RepoHex, branch, commit.Opts{Message: message})
		if err != nil {
			return err
		}
		hash = h
		return nil
	})
	return hash, err
}

// Uncommit moves head back to its parent, leaving stage untouched.
func (rp *Repo) Uncommit(branch string) error {
	if err := rp.guardClean(branch); err != nil {
		return err
	}
	return rp.atomic.Run(func() error {
		headPath := layout.BranchRef(rp.RepoHex, branch, refs.Head)
		parentPath := headPath + "/data/parent"
		if _, err := rp.s.Stat(parentPath); err != nil {
			if errors.Is(err, store.ErrNotExist) {
				return fmt.Errorf("%w: branch has no commits to uncommit", ipvcerr.ErrNoSuchCommit)
			}
			return err
		}
		if err := rp.s.Rm(headPath, true); err != nil {
			return err
		}
		return rp.s.Cp(parentPath, headPath)
	})
}

// Diff renders a file-level change summary between two ref expressions'
// resolved file trees (store paths, as produced by pathresolver.Resolve).
func (rp *Repo) Diff(fromStorePath, toStorePath string) (string, error) {
	changes, err := diff.Changes(rp.s, fromStorePath, toStorePath)
	if err != nil {
		return "", err
	}
	return diff.FormatChanges(changes), nil
}

// MergeResult reports the outcome of a Merge call.
type MergeResult struct {
	FastForward bool
	Conflicted  bool
	Files       []merge.FileResult
}

// Merge merges theirBranch's head into branch. A fast-forward is
// performed whenever branch's head is LCA of the two; otherwise a
// three-way content merge runs, writing pulled/merged files straight to
// workspace+stage and leaving conflicted files (with markers) in
// workspace only, flipping the branch into MERGE_PENDING.
func (rp *Repo) Merge(ctx context.Context, branch, theirBranch string) (MergeResult, error) {
	if err := rp.guardClean(branch); err != nil {
		return MergeResult{}, err
	}

	if dirty, err := rp.hasLocalChanges(branch); err != nil {
		return MergeResult{}, err
	} else if dirty {
		return MergeResult{}, ipvcerr.ErrPreMergeLocalChanges
	}

	var result MergeResult
	err := rp.atomic.Run(func() error {
		ourHash, err := rp.r.RefHash(rp.RepoHex, branch, refs.Head)
		if err != nil {
			return err
		}
		theirHash, err := rp.r.RefHash(rp.RepoHex, theirBranch, refs.Head)
		if err != nil {
			return err
		}

		lca, err := dag.LCA(rp.s, ourHash, theirHash)
		if err != nil {
			return err
		}
		if lca == ourHash {
			if err := rp.r.CreateBranch(rp.RepoHex, branch, theirHash); err != nil {
				return err
			}
			result = MergeResult{FastForward: true}
			return nil
		}
		if lca == theirHash {
			result = MergeResult{FastForward: false}
			return nil
		}

		lcaFiles := "/cid/" + lca + "/data/bundle/files"
		ourFiles := "/cid/" + ourHash + "/data/bundle/files"
		theirFiles := "/cid/" + theirHash + "/data/bundle/files"

		results, err := merge.MergeTree(rp.s, lcaFiles, ourFiles, theirFiles, branch, theirBranch)
		if err != nil {
			return err
		}

		// Back up head/stage/workspace before any per-file writes below,
		// so an abort restores the true pre-merge state rather than a
		// partially-applied one.
		if err := rp.s.Cp(layout.BranchRef(rp.RepoHex, branch, refs.Head), layout.BranchInfo(rp.RepoHex, branch, "merge_head")); err != nil {
			return err
		}
		if err := rp.s.Cp(layout.BranchRef(rp.RepoHex, branch, refs.Stage), layout.BranchInfo(rp.RepoHex, branch, "merge_stage")); err != nil {
			return err
		}
		if err := rp.s.Cp(layout.BranchRef(rp.RepoHex, branch, refs.Workspace), layout.BranchInfo(rp.RepoHex, branch, "merge_workspace")); err != nil {
			return err
		}

		conflicted := false
		for _, res := range results {
			workspacePath := layout.BranchRef(rp.RepoHex, branch, refs.Workspace) + "/data/bundle/files/" + res.Path
			if res.Removed {
				_ = rp.s.Rm(workspacePath, true)
				_ = rp.s.Rm(layout.BranchRef(rp.RepoHex, branch, refs.Stage)+"/data/bundle/files/"+res.Path, true)
				continue
			}
			if err := rp.s.Write(workspacePath, res.Content, true, true); err != nil {
				return err
			}
			if res.Class == merge.Conflict {
				conflicted = true
				continue
			}
			stagePath := layout.BranchRef(rp.RepoHex, branch, refs.Stage) + "/data/bundle/files/" + res.Path
			if err := rp.s.Write(stagePath, res.Content, true, true); err != nil {
				return err
			}
		}

		result = MergeResult{Conflicted: conflicted, Files: results}
		if conflicted {
			if err := rp.s.Write(layout.BranchInfo(rp.RepoHex, branch, "their_branch"), []byte(theirBranch), true, true); err != nil {
				return err
			}
			if err := rp.s.Cp("/cid/"+theirHash, layout.BranchInfo(rp.RepoHex, branch, "merge_parent")); err != nil {
				return err
			}
			var files []string
			for _, r := range results {
				if r.Class == merge.Conflict {
					files = append(files, r.Path)
				}
			}
			return rp.s.Write(layout.BranchInfo(rp.RepoHex, branch, "conflict_files"), []byte(strings.Join(files, "\n")), true, true)
		}

		_, err = rp.builder.Commit(ctx, rp.RepoHex, branch, commit.Opts{
			Message:     fmt.Sprintf("Merge %s into %s", theirBranch, branch),
			MergeParent: theirHash,
			IsMerge:     true,
		})
		if err != nil {
			return err
		}
		return rp.cleanupMergeSiblings(branch)
	})
	return result, err
}

// MergeAbort discards a MERGE_PENDING merge, restoring head/stage/workspace
// from the merge_* backups.
func (rp *Repo) MergeAbort(branch string) error {
	return rp.atomic.Run(func() error {
		for _, ref := range []string{refs.Head, refs.Stage, refs.Workspace} {
			dst := layout.BranchRef(rp.RepoHex, branch, ref)
			src := layout.BranchInfo(rp.RepoHex, branch, "merge_"+ref)
			if err := rp.s.Rm(dst, true); err != nil {
				return err
			}
			if err := rp.s.Cp(src, dst); err != nil {
				return err
			}
		}
		return rp.cleanupMergeSiblings(branch)
	})
}

// MergeResolve commits the resolved workspace as a merge commit, once the
// caller has removed all conflict markers.
func (rp *Repo) MergeResolve(ctx context.Context, branch, message string) error {
	return rp.atomic.Run(func() error {
		conflictFiles, err := rp.readLines(layout.BranchInfo(rp.RepoHex, branch, "conflict_files"))
		if err != nil {
			return err
		}
		for _, f := range conflictFiles {
			data, err := rp.s.Read(layout.BranchRef(rp.RepoHex, branch, refs.Workspace) + "/data/bundle/files/" + f)
			if err != nil {
				return err
			}
			if containsConflictMarkers(data) {
				return ipvcerr.ErrMarkersRemaining
			}
			stagePath := layout.BranchRef(rp.RepoHex, branch, refs.Stage) + "/data/bundle/files/" + f
			if err := rp.s.Write(stagePath, data, true, true); err != nil {
				return err
			}
		}

		theirBranchBytes, err := rp.s.Read(layout.BranchInfo(rp.RepoHex, branch, "their_branch"))
		if err != nil {
			return err
		}
		mergeParentHash, err := rp.statHash(layout.BranchInfo(rp.RepoHex, branch, "merge_parent"))
		if err != nil {
			return err
		}
		if message == "" {
			message = fmt.Sprintf("Merge %s into %s", string(theirBranchBytes), branch)
		}

		if _, err := rp.builder.Commit(ctx, rp.RepoHex, branch, commit.Opts{
			Message:     message,
			MergeParent: mergeParentHash,
			IsMerge:     true,
		}); err != nil {
			return err
		}
		return rp.cleanupMergeSiblings(branch)
	})
}

func (rp *Repo) cleanupMergeSiblings(branch string) error {
	for _, name := range []string{"merge_head", "merge_stage", "merge_workspace", "merge_parent", "their_branch", "conflict_files"} {
		_ = rp.s.Rm(layout.BranchInfo(rp.RepoHex, branch, name), true)
	}
	return nil
}

// Replay rebuilds branch's commits on top of theirBranch's head.
func (rp *Repo) Replay(ctx context.Context, branch, theirBranch string) (replay.Status, error) {
	if err := rp.guardClean(branch); err != nil {
		return replay.Done, err
	}
	var status replay.Status
	err := rp.atomic.Run(func() error {
		st, err := rp.replay.Start(ctx, rp.RepoHex, branch, theirBranch)
		status = st
		return err
	})
	return status, err
}

// ReplayResume continues a REPLAY_PENDING replay after conflict markers
// have been resolved on disk/workspace.
func (rp *Repo) ReplayResume(ctx context.Context, branch string) (replay.Status, error) {
	var status replay.Status
	err := rp.atomic.Run(func() error {
		st, err := rp.replay.Resume(ctx, rp.RepoHex, branch)
		status = st
		return err
	})
	return status, err
}

// ReplayAbort discards a REPLAY_PENDING replay.
func (rp *Repo) ReplayAbort(branch string) error {
	return rp.atomic.Run(func() error {
		return rp.replay.Abort(rp.RepoHex, branch)
	})
}

// hasLocalChanges reports whether stage or workspace differ from head —
// the pre-merge guard from the error taxonomy (pre_merge_local_changes).
func (rp *Repo) hasLocalChanges(branch string) (bool, error) {
	headFiles := layout.BranchRef(rp.RepoHex, branch, refs.Head) + "/data/bundle/files"
	for _, ref := range []string{refs.Stage, refs.Workspace} {
		refFiles := layout.BranchRef(rp.RepoHex, branch, ref) + "/data/bundle/files"
		changes, err := diff.Changes(rp.s, headFiles, refFiles)
		if err != nil {
			return false, err
		}
		if len(changes) > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (rp *Repo) statHash(path string) (string, error) {
	st, err := rp.s.Stat(path)
	if err != nil {
		return "", err
	}
	return st.Hash, nil
}

func (rp *Repo) readLines(path string) ([]string, error) {
	data, err := rp.s.Read(path)
	if errors.Is(err, store.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}

func containsConflictMarkers(data []byte) bool {
	s := string(data)
	return strings.Contains(s, "<<<<<<<") || strings.Contains(s, "=======") || strings.Contains(s, ">>>>>>>")
}
