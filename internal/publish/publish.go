// Package publish keeps the shape of the IPNS-publish surface spec.md
// leaves as an external collaborator: tracking which hash of a branch was
// last staged for publication, so a caller (the CLI's "repo publish", or a
// future libp2p/IPNS transport) can tell whether there's anything new to
// push without re-deriving that from first principles every time.
//
// The actual network transport is out of scope; PreparePublishBranch only
// stages the branch's current head under layout.PublishedBranch and
// reports whether it changed since the last call.
package publish

import (
	"errors"

	"github.com/martinp-labs/ipvc/internal/layout"
	"github.com/martinp-labs/ipvc/internal/refs"
	"github.com/martinp-labs/ipvc/internal/store"
)

// Result reports what PreparePublishBranch did.
type Result struct {
	Hash    string
	Changed bool
}

// PreparePublishBranch copies branch's current head into the published
// tree under key (an identity key ID from internal/identity), returning
// whether the staged hash differs from what was there before.
func PreparePublishBranch(s *store.Store, repoHex, repoName, branch, key string) (Result, error) {
	headPath := layout.BranchRef(repoHex, branch, refs.Head)
	head, err := s.Stat(headPath)
	if err != nil {
		return Result{}, err
	}

	dst := layout.PublishedBranch(key, repoName, branch)
	prev, err := s.Stat(dst)
	changed := true
	if err == nil {
		changed = prev.Hash != head.Hash
	} else if !errors.Is(err, store.ErrNotExist) {
		return Result{}, err
	}

	if changed {
		_ = s.Rm(dst, true) // best effort; absent on first publish
		if err := s.Cp(headPath, dst); err != nil {
			return Result{}, err
		}
	}

	return Result{Hash: head.Hash, Changed: changed}, nil
}
