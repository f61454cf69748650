// Package dag implements the DAG Walker: first-parent history traversal and
// LCA discovery over the parent/merge_parent reachability graph. Grounded
// on component design §4.6.
package dag

import (
	"errors"

	"github.com/martinp-labs/ipvc/internal/ipvcerr"
	"github.com/martinp-labs/ipvc/internal/store"
)

// ErrUnrelatedHistories is returned by LCA when both frontiers are
// exhausted without ever intersecting. It is the ipvcerr sentinel itself,
// so ipvcerr.Code reports it as unrelated_histories.
var ErrUnrelatedHistories = ipvcerr.ErrUnrelatedHistories

// History returns the hashes of path's ancestry, following data/parent
// only (first-parent linear history), starting with the commit itself and
// ending at the root commit.
func History(s *store.Store, headPath string) ([]string, error) {
	var hashes []string
	current := headPath
	for {
		st, err := s.Stat(current)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, st.Hash)

		parentPath := current + "/data/parent"
		if _, err := s.Stat(parentPath); err != nil {
			if errors.Is(err, store.ErrNotExist) {
				break
			}
			return nil, err
		}
		current = parentPath
	}
	return hashes, nil
}

// expand returns the parent and merge_parent hashes of the commit node
// addressed by commitHash (read through /cid/<hash>); either is "" when
// that link is absent.
func expand(s *store.Store, commitHash string) (parentHash, mergeParentHash string, err error) {
	base := "/cid/" + commitHash
	if h, err := statHashIfExists(s, base+"/data/parent"); err != nil {
		return "", "", err
	} else {
		parentHash = h
	}
	if h, err := statHashIfExists(s, base+"/data/merge_parent"); err != nil {
		return "", "", err
	} else {
		mergeParentHash = h
	}
	return parentHash, mergeParentHash, nil
}

func statHashIfExists(s *store.Store, path string) (string, error) {
	st, err := s.Stat(path)
	if errors.Is(err, store.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return st.Hash, nil
}

// LCA finds the lowest common ancestor of aHash and bHash by balanced BFS:
// each iteration expands one frontier node per side through parent and
// merge_parent, testing for intersection. Returns ErrUnrelatedHistories if
// both frontiers are exhausted without ever intersecting. Under multiple
// candidate LCAs, any one is returned; the merge algorithm is symmetric
// under that choice.
func LCA(s *store.Store, aHash, bHash string) (string, error) {
	if aHash == bHash {
		return aHash, nil
	}

	seenA := map[string]bool{aHash: true}
	seenB := map[string]bool{bHash: true}
	frontierA := []string{aHash}
	frontierB := []string{bHash}

	for len(frontierA) > 0 || len(frontierB) > 0 {
		if len(frontierA) > 0 {
			next, err := stepFrontier(s, &frontierA, seenA, seenB)
			if err != nil {
				return "", err
			}
			if next != "" {
				return next, nil
			}
		}
		if len(frontierB) > 0 {
			next, err := stepFrontier(s, &frontierB, seenB, seenA)
			if err != nil {
				return "", err
			}
			if next != "" {
				return next, nil
			}
		}
	}

	return "", ErrUnrelatedHistories
}

// stepFrontier pops one node from frontier, expands it through
// parent/merge_parent, and returns the first newly-discovered hash already
// present in otherSeen (an LCA), or "" if none found this step.
func stepFrontier(s *store.Store, frontier *[]string, mySeen, otherSeen map[string]bool) (string, error) {
	node := (*frontier)[0]
	*frontier = (*frontier)[1:]

	parentHash, mergeParentHash, err := expand(s, node)
	if err != nil {
		return "", err
	}

	for _, h := range []string{parentHash, mergeParentHash} {
		if h == "" || mySeen[h] {
			continue
		}
		mySeen[h] = true
		*frontier = append(*frontier, h)
		if otherSeen[h] {
			return h, nil
		}
	}
	return "", nil
}
