// Package pathresolver implements the ref-path grammar from the component
// design: parsing strings like "@head~^/path", "@branch/path" or
// "@<hash>/path" into a (branch, store path, workspace path) triple.
package pathresolver

import (
	"path"
	"strings"

	"github.com/martinp-labs/ipvc/internal/ipvcerr"
)

// filesSuffix is appended after the leading ref has been expanded, per the
// ordering rule: "~"/"^" are applied before this suffix, never after.
const filesSuffix = "data/bundle/files"

// Resolved is the (branch, store-path, workspace-path) triple the resolver
// produces. Branch is empty when the expression refers to the current
// branch (head/stage/workspace, or a bare path).
type Resolved struct {
	Branch        string
	StorePath     string
	WorkspacePath string
}

// BranchExists reports whether name is a branch of the current repository.
// Implemented by the caller (the ref machinery owns the branch list).
type BranchExists func(name string) bool

// Resolve parses refpath according to the grammar in the component design:
//
//	@head, @stage, @workspace    -- current branch's ref
//	~                            -- /data/parent (chainable)
//	^                            -- /data/merge_parent (chainable)
//	@<branch>/...                -- <branch>/head/...
//	@<hash>/...                  -- /cid/<hash>/data/bundle/files/...
//	bare path                    -- workspace/data/bundle/files/<path>
func Resolve(refpath string, branchExists BranchExists) (Resolved, error) {
	ref, rest := separateRefPath(refpath)
	if ref == "" {
		// Bare path: workspace/data/bundle/files/<path>
		return Resolved{
			StorePath:     joinStore("workspace/"+filesSuffix, rest),
			WorkspacePath: rest,
		}, nil
	}

	token := strings.TrimPrefix(ref, "@")

	if _, expanded, ok := expandStandardRef(token); ok {
		return Resolved{
			StorePath:     joinStore(expanded+"/"+filesSuffix, rest),
			WorkspacePath: rest,
		}, nil
	}

	if branchExists != nil && branchExists(token) {
		return Resolved{
			Branch:        token,
			StorePath:     joinStore(token+"/head/"+filesSuffix, rest),
			WorkspacePath: rest,
		}, nil
	}

	if looksLikeHash(token) {
		return Resolved{
			StorePath:     joinStore("/cid/"+token+"/"+filesSuffix, rest),
			WorkspacePath: rest,
		}, nil
	}

	return Resolved{}, ipvcerr.ErrNoSuchRef
}

// separateRefPath splits "@ref/rest/of/path" into ("@ref", "rest/of/path").
// A path with no leading '@' segment returns ("", path) unchanged.
func separateRefPath(refpath string) (ref string, rest string) {
	clean := strings.TrimPrefix(refpath, "/")
	if clean == "" {
		return "", ""
	}
	parts := strings.SplitN(clean, "/", 2)
	if !strings.HasPrefix(parts[0], "@") {
		return "", clean
	}
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

// expandStandardRef recognizes "head", "stage", "workspace" optionally
// followed by any number of '~' (parent) and '^' (merge_parent) markers,
// e.g. "head~^~" or "stage". It returns the base name and the expanded
// store-relative path segment (e.g. "head/data/parent/data/merge_parent").
func expandStandardRef(token string) (base string, expanded string, ok bool) {
	for _, b := range []string{"head", "stage", "workspace"} {
		if token == b {
			return b, b, true
		}
		if strings.HasPrefix(token, b) {
			suffix := token[len(b):]
			if isParentMarkers(suffix) {
				var sb strings.Builder
				sb.WriteString(b)
				for _, r := range suffix {
					switch r {
					case '~':
						sb.WriteString("/data/parent")
					case '^':
						sb.WriteString("/data/merge_parent")
					}
				}
				return b, sb.String(), true
			}
		}
	}
	return "", "", false
}

func isParentMarkers(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r != '~' && r != '^' {
			return false
		}
	}
	return true
}

// looksLikeHash is a permissive syntactic check: lowercase hex of a
// plausible content-hash length. The actual existence check happens when
// the resolved store path is stat'd against the object store.
func looksLikeHash(s string) bool {
	if len(s) < 6 {
		return false
	}
	for _, r := range s {
		if !(r >= '0' && r <= '9') && !(r >= 'a' && r <= 'f') {
			return false
		}
	}
	return true
}

func joinStore(base, rest string) string {
	if rest == "" {
		return base
	}
	return path.Join(base, rest)
}
