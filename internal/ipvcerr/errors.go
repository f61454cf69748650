// Package ipvcerr defines the sentinel errors surfaced to ipvc-go users.
//
// Callers should use errors.Is to check for a specific condition rather than
// comparing error strings:
//
//	if errors.Is(err, ipvcerr.ErrPendingConflict) {
//	    // branch is mid-merge or mid-replay
//	}
package ipvcerr

import "errors"

var (
	// ErrNoRepoHere is returned when the current directory is outside any
	// known repository.
	ErrNoRepoHere = errors.New("no ipvc repository here")

	// ErrRepoConflict is returned by init/mv when the target repo root
	// already exists or overlaps another repository.
	ErrRepoConflict = errors.New("repository already exists at this path")

	// ErrBadName is returned for non-alphanumeric branch names or names
	// colliding with the reserved {head, stage, workspace} set.
	ErrBadName = errors.New("invalid or reserved name")

	// ErrNoSuchRef is returned when a ref expression does not resolve.
	ErrNoSuchRef = errors.New("no such ref")

	// ErrNoSuchCommit is returned when the DAG walker cannot find a named
	// commit.
	ErrNoSuchCommit = errors.New("no such commit")

	// ErrNothingToCommit is returned when stage and head share a hash and
	// no commit metadata was supplied programmatically.
	ErrNothingToCommit = errors.New("nothing to commit")

	// ErrPendingConflict is returned when a mutating operation is invoked
	// while the branch is in MERGE_PENDING or REPLAY_PENDING state.
	ErrPendingConflict = errors.New("branch has a pending merge or replay, resolve or abort it first")

	// ErrPreMergeLocalChanges is returned when stage or workspace touches
	// paths also touched by the incoming side of a merge.
	ErrPreMergeLocalChanges = errors.New("local changes conflict with incoming changes, commit or stash first")

	// ErrMarkersRemaining is returned when resolve is invoked while
	// conflict markers are still present in a previously-conflicted file.
	ErrMarkersRemaining = errors.New("conflict markers remain in one or more files")

	// ErrUnrelatedHistories is returned when LCA discovery exhausts both
	// frontiers without finding an intersection.
	ErrUnrelatedHistories = errors.New("branches do not share a common ancestor")

	// ErrStoreFailure names an underlying object-store failure. Errors from
	// the store are returned as they are, not wrapped in ErrStoreFailure;
	// Code maps any error that is not one of the sentinels above to
	// store_failure.
	ErrStoreFailure = errors.New("object store operation failed")
)

// Code maps an error (or a chain wrapping one of the sentinels above) to
// the CLI exit-code taxonomy name from the external interfaces spec, for use
// in user-facing messages and process exit paths.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoRepoHere):
		return "no_repo_here"
	case errors.Is(err, ErrRepoConflict):
		return "repo_conflict"
	case errors.Is(err, ErrBadName):
		return "bad_name"
	case errors.Is(err, ErrNoSuchCommit):
		return "no_such_commit"
	case errors.Is(err, ErrNoSuchRef):
		return "no_such_ref"
	case errors.Is(err, ErrNothingToCommit):
		return "nothing_to_commit"
	case errors.Is(err, ErrPendingConflict):
		return "pending_conflict"
	case errors.Is(err, ErrPreMergeLocalChanges):
		return "pre_merge_local_changes"
	case errors.Is(err, ErrMarkersRemaining):
		return "markers_remaining"
	case errors.Is(err, ErrUnrelatedHistories):
		return "unrelated_histories"
	case errors.Is(err, ErrStoreFailure):
		return "store_failure"
	default:
		return "store_failure"
	}
}

// IsRetryable reports whether the operation that produced err is likely to
// succeed if simply retried, as opposed to requiring user intervention
// (resolve, abort, rename, etc).
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrStoreFailure)
}
