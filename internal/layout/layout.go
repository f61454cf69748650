// Package layout centralizes the mutable-namespace path scheme every other
// package builds store paths from. All paths are relative to the object
// store's single mutable root (see internal/store) and rooted under
// "ipvc/", leaving "ipvc_snapshots/" free as a sibling subtree the atomic
// harness can swap in and out without touching live data.
package layout

import (
	"encoding/hex"
	"path"
)

const root = "ipvc"

// RepoHex encodes a filesystem repo path into the directory-name-safe hex
// string used to key it under ipvc/repos/.
func RepoHex(repoPath string) string {
	return hex.EncodeToString([]byte(repoPath))
}

// RepoHexDecode reverses RepoHex.
func RepoHexDecode(repoHex string) (string, error) {
	b, err := hex.DecodeString(repoHex)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// IdsPath is the registry of local and remote signing identities.
func IdsPath() string { return path.Join(root, "ids") }

// ReposPath lists every repo ipvc knows about, keyed by RepoHex.
func ReposPath() string { return path.Join(root, "repos") }

// RepoDir is the root directory for one repository.
func RepoDir(repoHex string) string { return path.Join(ReposPath(), repoHex) }

// RepoInfo addresses a repo-scoped file: "id", "name", "active_branch_name".
func RepoInfo(repoHex, info string) string { return path.Join(RepoDir(repoHex), info) }

// BranchesDir lists a repo's branches.
func BranchesDir(repoHex string) string { return path.Join(RepoDir(repoHex), "branches") }

// BranchDir is the root directory for one branch.
func BranchDir(repoHex, branch string) string { return path.Join(BranchesDir(repoHex), branch) }

// BranchRef addresses one of a branch's three refs: "head", "stage",
// "workspace".
func BranchRef(repoHex, branch, ref string) string {
	return path.Join(BranchDir(repoHex, branch), ref)
}

// BranchInfo addresses a path within a branch, e.g.
// "<ref>/data/bundle/files_metadata" or a replay sibling like
// "replay_head".
func BranchInfo(repoHex, branch, info string) string {
	return path.Join(BranchDir(repoHex, branch), info)
}

// PublishedDir is the root of one identity's published repos.
func PublishedDir(key string) string { return path.Join(root, "published", key) }

// PublishedBranch is where a branch is staged for IPNS publication.
func PublishedBranch(key, repoName, branch string) string {
	return path.Join(PublishedDir(key), "repos", repoName, branch)
}

// SnapshotDir is where the atomic harness copies the live "ipvc" subtree
// before a mutating operation, so it can be restored on failure.
func SnapshotDir(id string) string {
	return path.Join("ipvc_snapshots", id)
}

// Live is the root of the live (non-snapshot) namespace, the subtree the
// atomic harness snapshots wholesale.
func Live() string { return root }
