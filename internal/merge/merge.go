// Package merge implements the three-way, content-level Merge Kernel:
// classifying each changed file as pulled, merged, or conflicted, and
// reconstructing conflicted file content via the diff-of-diffs algorithm.
// Grounded on MergeAPI in the reference implementation (particularly its
// _3way_merge line-reconciliation loop) and component design §4.8.
package merge

import (
	"fmt"
	"strings"

	"github.com/martinp-labs/ipvc/internal/diff"
	"github.com/martinp-labs/ipvc/internal/store"
)

// FileClass is the per-file outcome of a three-way merge.
type FileClass int

const (
	// Pulled files changed only on their side; our content is replaced
	// verbatim with theirs.
	Pulled FileClass = iota
	// Merged files changed on both sides but reconciled without
	// conflict.
	Merged
	// Conflict files changed on both sides in ways that could not be
	// reconciled; Content carries embedded conflict markers.
	Conflict
)

func (c FileClass) String() string {
	switch c {
	case Pulled:
		return "pulled"
	case Merged:
		return "merged"
	case Conflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// FileResult is one file's merge outcome.
type FileResult struct {
	Path    string
	Class   FileClass
	Content []byte
	Removed bool
}

// MergeTree computes the three-way merge of the files trees rooted at
// ourFilesPath and theirFilesPath against their common ancestor at
// lcaFilesPath, returning one FileResult per path touched by either side.
// Paths changed only on our side are omitted: our tree already holds the
// correct content for them.
func MergeTree(s *store.Store, lcaFilesPath, ourFilesPath, theirFilesPath, ourBranch, theirBranch string) ([]FileResult, error) {
	ourChanges, err := diff.Changes(s, lcaFilesPath, ourFilesPath)
	if err != nil {
		return nil, err
	}
	theirChanges, err := diff.Changes(s, lcaFilesPath, theirFilesPath)
	if err != nil {
		return nil, err
	}

	ourByPath := map[string]store.Change{}
	for _, c := range ourChanges {
		ourByPath[c.Path] = c
	}
	theirByPath := map[string]store.Change{}
	for _, c := range theirChanges {
		theirByPath[c.Path] = c
	}

	var results []FileResult
	for path, theirChange := range theirByPath {
		ourChange, ourAlsoChanged := ourByPath[path]
		if !ourAlsoChanged {
			if theirChange.Type == store.Removed {
				results = append(results, FileResult{Path: path, Class: Pulled, Removed: true})
				continue
			}
			content, err := s.Cat(theirChange.After)
			if err != nil {
				return nil, err
			}
			results = append(results, FileResult{Path: path, Class: Pulled, Content: content})
			continue
		}

		result, err := mergeOneFile(s, path, lcaFilesPath, ourChange, theirChange, ourBranch, theirBranch)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

func mergeOneFile(s *store.Store, path, lcaFilesPath string, ourChange, theirChange store.Change, ourBranch, theirBranch string) (FileResult, error) {
	if ourChange.Type == store.Removed && theirChange.Type == store.Removed {
		return FileResult{Path: path, Class: Merged, Removed: true}, nil
	}

	lcaContent, err := readOrEmpty(s, lcaFilesPath+"/"+path)
	if err != nil {
		return FileResult{}, err
	}
	ourContent, err := changeContent(s, ourChange)
	if err != nil {
		return FileResult{}, err
	}
	theirContent, err := changeContent(s, theirChange)
	if err != nil {
		return FileResult{}, err
	}

	merged, conflicted := MergeLines(
		diff.SplitLines(string(lcaContent)),
		diff.SplitLines(string(ourContent)),
		diff.SplitLines(string(theirContent)),
		ourBranch, theirBranch,
	)
	content := []byte(strings.Join(merged, "\n"))
	if len(merged) > 0 {
		content = append(content, '\n')
	}

	class := Merged
	if conflicted {
		class = Conflict
	}
	return FileResult{Path: path, Class: class, Content: content}, nil
}

func changeContent(s *store.Store, c store.Change) ([]byte, error) {
	if c.Type == store.Removed {
		return nil, nil
	}
	return s.Cat(c.After)
}

func readOrEmpty(s *store.Store, path string) ([]byte, error) {
	data, err := s.Read(path)
	if err == store.ErrNotExist {
		return nil, nil
	}
	return data, err
}

// anchor is one lca line's fate in a single side's diff against lca:
// whether that side kept it (Unchanged) or dropped it (InLeft, whether
// deleted outright or replaced), plus whatever lines that side inserted
// immediately before it.
type anchor struct {
	insBefore []string
	op        diff.LineOp
}

// segments restructures an NDiff(lca, side) result into one anchor per lca
// line (NDiff emits exactly one Unchanged or InLeft record per lca
// element, in lca order), bucketing each run of InRight insertions under
// the next anchor they precede. Trailing insertions after the last lca
// line are returned separately.
func segments(lines []diff.Line, lcaLen int) ([]anchor, []string) {
	out := make([]anchor, 0, lcaLen)
	var pending []string
	for _, l := range lines {
		switch l.Op {
		case diff.InRight:
			pending = append(pending, l.Text)
		default: // Unchanged or InLeft: consumes one lca line
			out = append(out, anchor{insBefore: pending, op: l.Op})
			pending = nil
		}
	}
	return out, pending
}

// MergeLines reconciles lca/our/their line sequences of one file via a
// diff3-style three-way merge: ours and theirs are each diffed against
// lca independently, then walked in lockstep by lca position (rather than
// re-diffing the two edit scripts against each other, which discards the
// positional correspondence a row only one side touched still has).
func MergeLines(lca, ours, theirs []string, ourBranch, theirBranch string) ([]string, bool) {
	ourAnchors, ourTrailing := segments(diff.NDiff(lca, ours), len(lca))
	theirAnchors, theirTrailing := segments(diff.NDiff(lca, theirs), len(lca))

	var out []string
	conflicted := false

	emitGap := func(ourIns, theirIns []string) {
		switch {
		case len(ourIns) == 0 && len(theirIns) == 0:
			return
		case len(ourIns) == 0:
			out = append(out, theirIns...)
		case len(theirIns) == 0:
			out = append(out, ourIns...)
		case sameLines(ourIns, theirIns):
			out = append(out, ourIns...)
		default:
			out = append(out, fmt.Sprintf(">>>>>>> %s (ours)", ourBranch))
			out = append(out, ourIns...)
			out = append(out, fmt.Sprintf("======= %s (theirs)", theirBranch))
			out = append(out, theirIns...)
			out = append(out, "<<<<<<<")
			conflicted = true
		}
	}

	for i, lcaLine := range lca {
		emitGap(ourAnchors[i].insBefore, theirAnchors[i].insBefore)
		if ourAnchors[i].op == diff.Unchanged && theirAnchors[i].op == diff.Unchanged {
			out = append(out, lcaLine)
		}
		// Otherwise at least one side dropped this line; if both did, the
		// deletion is consistent, and if only one did, that side's change
		// wins (the other side left it untouched).
	}
	emitGap(ourTrailing, theirTrailing)

	return out, conflicted
}

func sameLines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
