// Package diff implements the Diff Engine: file-level change sets via the
// store's object-diff, and line-level diffs via a classical
// longest-common-subsequence differ producing ndiff-style output. Grounded
// on get_mfs_changes/_format_changes in the reference implementation and
// Python's difflib.ndiff semantics it wraps.
package diff

import (
	"fmt"
	"strings"

	"github.com/martinp-labs/ipvc/internal/store"
)

// Changes computes the file-level diff between the trees rooted at
// fromPath and toPath.
func Changes(s *store.Store, fromPath, toPath string) ([]store.Change, error) {
	fromHash, err := statHash(s, fromPath)
	if err != nil {
		return nil, err
	}
	toHash, err := statHash(s, toPath)
	if err != nil {
		return nil, err
	}
	return s.ObjectDiff(fromHash, toHash)
}

func statHash(s *store.Store, path string) (string, error) {
	st, err := s.Stat(path)
	if err != nil {
		return "", err
	}
	return st.Hash, nil
}

// FormatChanges renders a file-level change list the way the CLI prints
// `stage status` / `stage diff` summaries: one line per path, prefixed
// with +, -, or ~ for Added/Removed/Modified.
func FormatChanges(changes []store.Change) string {
	var b strings.Builder
	for _, c := range changes {
		var prefix string
		switch c.Type {
		case store.Added:
			prefix = "+"
		case store.Removed:
			prefix = "-"
		case store.Modified:
			prefix = "~"
		}
		fmt.Fprintf(&b, "%s %s\n", prefix, c.Path)
	}
	return b.String()
}

// LineOp is one line of an ndiff-style line-level diff.
type LineOp int

const (
	// Unchanged lines are present, unmodified, in both sequences.
	Unchanged LineOp = iota
	// InRight lines appear only in the right-hand sequence ("+ ").
	InRight
	// InLeft lines appear only in the left-hand sequence ("- ").
	InLeft
)

// Line is one emitted ndiff record. Hint lines ("? ") are never emitted;
// the classical differ below discards them as the spec directs.
type Line struct {
	Op   LineOp
	Text string
}

// SplitLines splits text on "\n", discarding the trailing empty element a
// terminal newline produces so it doesn't register as a phantom blank
// line.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// NDiff produces a line-level diff between a and b using the classical
// longest-common-subsequence algorithm, in the same "  "/"+ "/"- " shape as
// Python's difflib.ndiff (with "? " hint lines omitted, since nothing here
// consumes them).
func NDiff(a, b []string) []Line {
	lcs := lcsTable(a, b)
	return backtrack(a, b, lcs, 0, 0)
}

// lcsTable builds the standard dynamic-programming LCS length table.
func lcsTable(a, b []string) [][]int {
	n, m := len(a), len(b)
	table := make([][]int, n+1)
	for i := range table {
		table[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				table[i][j] = table[i+1][j+1] + 1
			} else if table[i+1][j] >= table[i][j+1] {
				table[i][j] = table[i+1][j]
			} else {
				table[i][j] = table[i][j+1]
			}
		}
	}
	return table
}

func backtrack(a, b []string, table [][]int, i, j int) []Line {
	var out []Line
	for i < len(a) && j < len(b) {
		if a[i] == b[j] {
			out = append(out, Line{Op: Unchanged, Text: a[i]})
			i++
			j++
			continue
		}
		if table[i+1][j] >= table[i][j+1] {
			out = append(out, Line{Op: InLeft, Text: a[i]})
			i++
		} else {
			out = append(out, Line{Op: InRight, Text: b[j]})
			j++
		}
	}
	for ; i < len(a); i++ {
		out = append(out, Line{Op: InLeft, Text: a[i]})
	}
	for ; j < len(b); j++ {
		out = append(out, Line{Op: InRight, Text: b[j]})
	}
	return out
}
