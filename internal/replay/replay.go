// Package replay implements the Replay Controller: rebuilding our commits
// on top of their head, with resumable conflict state. Each replayed commit
// keeps its original message and is marked is_replay; its author and
// timestamp are those of the replaying Commit call, not the original's. Grounded on component design §4.9 and the
// reference implementation's replay/rebase flow.
package replay

import (
	"context"
	"fmt"

	"github.com/martinp-labs/ipvc/internal/commit"
	"github.com/martinp-labs/ipvc/internal/dag"
	"github.com/martinp-labs/ipvc/internal/diff"
	"github.com/martinp-labs/ipvc/internal/ipvcerr"
	"github.com/martinp-labs/ipvc/internal/layout"
	"github.com/martinp-labs/ipvc/internal/merge"
	"github.com/martinp-labs/ipvc/internal/refs"
	"github.com/martinp-labs/ipvc/internal/store"
)

// Status reports how a replay invocation ended.
type Status int

const (
	// Done means every one of our commits was replayed cleanly.
	Done Status = iota
	// ResumeRequired means a commit conflicted; call Resume after the
	// caller resolves conflict markers in the listed files.
	ResumeRequired
)

// Controller runs and resumes replay operations for one branch.
type Controller struct {
	s       *store.Store
	r       *refs.Machinery
	builder *commit.Builder
}

// New wires a Controller from its dependencies.
func New(s *store.Store, r *refs.Machinery, builder *commit.Builder) *Controller {
	return &Controller{s: s, r: r, builder: builder}
}

// siblingRefs are the replay_* backups taken before a replay begins.
var siblingRefs = []string{"replay_head", "replay_stage", "replay_workspace"}

// Start backs up our head/stage/workspace into replay_* siblings, fast
// forwards our refs onto theirBranch's head, and replays our commits one
// by one on top of it.
func (c *Controller) Start(ctx context.Context, repoHex, branch, theirBranch string) (Status, error) {
	ourHeadPath := layout.BranchRef(repoHex, branch, refs.Head)
	theirHeadPath := layout.BranchRef(repoHex, theirBranch, refs.Head)

	ourHead, err := c.hashOf(ourHeadPath)
	if err != nil {
		return Done, err
	}
	theirHead, err := c.hashOf(theirHeadPath)
	if err != nil {
		return Done, err
	}

	lca, err := dag.LCA(c.s, ourHead, theirHead)
	if err != nil {
		return Done, fmt.Errorf("finding common ancestor: %w", err)
	}

	ourCommits, err := commitsSince(c.s, ourHeadPath, lca)
	if err != nil {
		return Done, err
	}

	for _, ref := range []string{refs.Head, refs.Stage, refs.Workspace} {
		src := layout.BranchRef(repoHex, branch, ref)
		dst := layout.BranchInfo(repoHex, branch, "replay_"+ref)
		if err := c.s.Cp(src, dst); err != nil {
			return Done, fmt.Errorf("backing up %s: %w", ref, err)
		}
	}
	if err := c.s.Write(layout.BranchInfo(repoHex, branch, "their_branch"), []byte(theirBranch), true, true); err != nil {
		return Done, err
	}

	for _, ref := range []string{refs.Head, refs.Stage, refs.Workspace} {
		dst := layout.BranchRef(repoHex, branch, ref)
		if err := c.s.Rm(dst, true); err != nil {
			return Done, err
		}
		if err := c.s.Cp(theirHeadPath, dst); err != nil {
			return Done, err
		}
	}
	// stage/workspace are scratch refs during replay; they carry no
	// parent link of their own.
	for _, ref := range []string{refs.Stage, refs.Workspace} {
		dst := layout.BranchRef(repoHex, branch, ref)
		_ = c.s.Rm(dst+"/data/parent", true)
	}

	return c.replayFrom(ctx, repoHex, branch, theirBranch, ourCommits, 0)
}

// Resume continues a replay after the caller has resolved conflict markers
// in the files named by Conflicts.
func (c *Controller) Resume(ctx context.Context, repoHex, branch string) (Status, error) {
	theirBranch, err := c.theirBranchName(repoHex, branch)
	if err != nil {
		return Done, err
	}

	conflictCommit := layout.BranchInfo(repoHex, branch, "replay_conflict_commit")
	if _, err := c.s.Stat(conflictCommit); err != nil {
		return Done, ipvcerr.ErrNoSuchCommit
	}
	conflictFiles, err := c.Conflicts(repoHex, branch)
	if err != nil {
		return Done, err
	}
	for _, f := range conflictFiles {
		data, err := c.s.Read(layout.BranchRef(repoHex, branch, refs.Workspace) + "/data/bundle/files/" + f)
		if err != nil {
			return Done, err
		}
		if containsMarkers(data) {
			return Done, ipvcerr.ErrMarkersRemaining
		}
	}

	meta, err := commit.ReadMetadata(c.s, conflictCommit)
	if err != nil {
		return Done, err
	}
	if err := c.r.RefToRefCopy(repoHex, branch, refs.Workspace, refs.Stage); err != nil {
		return Done, err
	}
	if _, err := c.builder.Commit(ctx, repoHex, branch, commit.Opts{
		Message:       meta.Message,
		IsReplay:      true,
		ForceMetadata: true,
	}); err != nil {
		return Done, err
	}

	remaining, err := readRemaining(c.s, repoHex, branch)
	if err != nil {
		return Done, err
	}
	_ = c.s.Rm(conflictCommit, true)
	_ = c.s.Rm(layout.BranchInfo(repoHex, branch, "conflict_files"), true)

	if len(remaining) == 0 {
		c.cleanupSiblings(repoHex, branch)
		return Done, nil
	}
	return c.replayFrom(ctx, repoHex, branch, theirBranch, remaining, 0)
}

// Abort restores the pre-replay head/stage/workspace from the replay_*
// backups and removes all replay_* siblings.
func (c *Controller) Abort(repoHex, branch string) error {
	for _, ref := range []string{refs.Head, refs.Stage, refs.Workspace} {
		dst := layout.BranchRef(repoHex, branch, ref)
		src := layout.BranchInfo(repoHex, branch, "replay_"+ref)
		if err := c.s.Rm(dst, true); err != nil {
			return err
		}
		if err := c.s.Cp(src, dst); err != nil {
			return err
		}
	}
	c.cleanupSiblings(repoHex, branch)
	return nil
}

// Conflicts returns the workspace-relative paths containing conflict
// markers from the commit currently blocking replay.
func (c *Controller) Conflicts(repoHex, branch string) ([]string, error) {
	return readRemainingList(c.s, layout.BranchInfo(repoHex, branch, "conflict_files"))
}

func (c *Controller) cleanupSiblings(repoHex, branch string) {
	for _, name := range append([]string{"their_branch", "conflict_files", "replay_conflict_commit", "replay_remaining"}, siblingRefs...) {
		_ = c.s.Rm(layout.BranchInfo(repoHex, branch, name), true)
	}
}

// replayFrom merges and recommits ourCommits[startIdx:] one at a time on
// top of the branch's current head/stage/workspace.
func (c *Controller) replayFrom(ctx context.Context, repoHex, branch, theirBranch string, ourCommits []string, startIdx int) (Status, error) {
	theirFilesPath := layout.BranchRef(repoHex, branch, refs.Workspace) + "/data/bundle/files"

	for i := startIdx; i < len(ourCommits); i++ {
		commitHash := ourCommits[i]
		commitPath := "/cid/" + commitHash
		meta, err := commit.ReadMetadata(c.s, commitPath)
		if err != nil {
			return Done, err
		}

		parentPath := commitPath + "/data/parent"
		lcaFilesPath := theirFilesPath
		if _, err := c.s.Stat(parentPath); err == nil {
			lcaFilesPath = parentPath + "/data/bundle/files"
		}
		ourFilesPath := commitPath + "/data/bundle/files"

		results, err := merge.MergeTree(c.s, lcaFilesPath, ourFilesPath, theirFilesPath, branch, theirBranch)
		if err != nil {
			return Done, err
		}
		// MergeTree omits paths this commit's patch touched alone,
		// assuming the destination already equals "ours" — here the
		// destination is the replay workspace (their side), so those
		// patch-only changes still need to land.
		patchOnly, err := oursOnlyChanges(c.s, lcaFilesPath, ourFilesPath, theirFilesPath)
		if err != nil {
			return Done, err
		}
		results = append(results, patchOnly...)

		conflicted := false
		var conflictFiles []string
		for _, res := range results {
			workspacePath := layout.BranchRef(repoHex, branch, refs.Workspace) + "/data/bundle/files/" + res.Path
			if res.Removed {
				_ = c.s.Rm(workspacePath, true)
				continue
			}
			if err := c.s.Write(workspacePath, res.Content, true, true); err != nil {
				return Done, err
			}
			if res.Class == merge.Conflict {
				conflicted = true
				conflictFiles = append(conflictFiles, res.Path)
			}
		}

		if conflicted {
			if err := c.s.Cp(commitPath, layout.BranchInfo(repoHex, branch, "replay_conflict_commit")); err != nil {
				return Done, err
			}
			if err := writeRemainingList(c.s, layout.BranchInfo(repoHex, branch, "conflict_files"), conflictFiles); err != nil {
				return Done, err
			}
			if err := writeRemaining(c.s, repoHex, branch, ourCommits[i+1:]); err != nil {
				return Done, err
			}
			return ResumeRequired, nil
		}

		if err := c.r.RefToRefCopy(repoHex, branch, refs.Workspace, refs.Stage); err != nil {
			return Done, err
		}
		if _, err := c.builder.Commit(ctx, repoHex, branch, commit.Opts{
			Message:       meta.Message,
			IsReplay:      true,
			ForceMetadata: true,
		}); err != nil {
			return Done, err
		}
	}

	c.cleanupSiblings(repoHex, branch)
	return Done, nil
}

// theirBranchName loads the branch name saved by Start for a replay in
// progress.
func (c *Controller) theirBranchName(repoHex, branch string) (string, error) {
	data, err := c.s.Read(layout.BranchInfo(repoHex, branch, "their_branch"))
	if err != nil {
		return "", fmt.Errorf("reading replay's their_branch: %w", err)
	}
	return string(data), nil
}

// oursOnlyChanges returns, as already-resolved FileResults, the paths a
// commit's patch touched that the destination side never independently
// touched — the case MergeTree's own "ours" side omits under its normal
// merge-into-ours assumption.
func oursOnlyChanges(s *store.Store, lcaFilesPath, ourFilesPath, theirFilesPath string) ([]merge.FileResult, error) {
	ourChanges, err := diff.Changes(s, lcaFilesPath, ourFilesPath)
	if err != nil {
		return nil, err
	}
	theirChanges, err := diff.Changes(s, lcaFilesPath, theirFilesPath)
	if err != nil {
		return nil, err
	}
	touchedByThem := map[string]bool{}
	for _, ch := range theirChanges {
		touchedByThem[ch.Path] = true
	}

	var results []merge.FileResult
	for _, ch := range ourChanges {
		if touchedByThem[ch.Path] {
			continue
		}
		if ch.Type == store.Removed {
			results = append(results, merge.FileResult{Path: ch.Path, Class: merge.Pulled, Removed: true})
			continue
		}
		content, err := s.Cat(ch.After)
		if err != nil {
			return nil, err
		}
		results = append(results, merge.FileResult{Path: ch.Path, Class: merge.Pulled, Content: content})
	}
	return results, nil
}

func (c *Controller) hashOf(path string) (string, error) {
	st, err := c.s.Stat(path)
	if err != nil {
		return "", err
	}
	return st.Hash, nil
}

// commitsSince returns the hashes of headPath's first-parent history back
// to (but not including) lcaHash, oldest first.
func commitsSince(s *store.Store, headPath, lcaHash string) ([]string, error) {
	hist, err := dag.History(s, headPath)
	if err != nil {
		return nil, err
	}
	var ours []string
	for _, h := range hist {
		if h == lcaHash {
			break
		}
		ours = append(ours, h)
	}
	// hist is newest-first; replay must apply oldest-first.
	for i, j := 0, len(ours)-1; i < j; i, j = i+1, j-1 {
		ours[i], ours[j] = ours[j], ours[i]
	}
	return ours, nil
}

func containsMarkers(data []byte) bool {
	s := string(data)
	return contains(s, "<<<<<<<") || contains(s, "=======") || contains(s, ">>>>>>>")
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
