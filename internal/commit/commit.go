// Package commit implements the Commit Builder: promoting a branch's stage
// ref into a new head commit node, linking parent/merge_parent, signing,
// and recording commit metadata. Grounded on CommitAPI.commit in the
// reference implementation and the commit-node layout from the data model.
package commit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/martinp-labs/ipvc/internal/ipvcerr"
	"github.com/martinp-labs/ipvc/internal/layout"
	"github.com/martinp-labs/ipvc/internal/refs"
	"github.com/martinp-labs/ipvc/internal/sign"
	"github.com/martinp-labs/ipvc/internal/store"
)

// Author identifies who made a commit.
type Author struct {
	PeerID    string `json:"peer_id"`
	PublicKey string `json:"public_key"`
}

// Metadata is the commit_metadata JSON document written under a commit
// node's data/ subtree.
type Metadata struct {
	Message   string `json:"message"`
	Author    Author `json:"author"`
	Timestamp string `json:"timestamp"`
	IsMerge   bool   `json:"is_merge,omitempty"`
	IsReplay  bool   `json:"is_replay,omitempty"`
}

// Signatures holds the two independent signatures a commit node carries:
// one over the bundle (files + files_metadata), one over the full data
// subtree (bundle + commit_metadata + parent links).
type Signatures struct {
	Bundle sign.Signature
	Data   sign.Signature
}

// Builder promotes a branch's stage ref into a new head commit.
type Builder struct {
	s      *store.Store
	r      *refs.Machinery
	signer sign.Signer
}

// New wires a Builder from its dependencies.
func New(s *store.Store, r *refs.Machinery, signer sign.Signer) *Builder {
	return &Builder{s: s, r: r, signer: signer}
}

// Opts carries the optional programmatic inputs the Replay Controller
// supplies to bypass the normal "nothing to commit" guard and stamp
// is_replay and a specific message. The timestamp is always the time of
// the Commit call.
type Opts struct {
	Message       string
	MergeParent   string // commit hash, empty unless this is a merge commit
	IsMerge       bool
	IsReplay      bool
	ForceMetadata bool // skip the stage==head guard (used by replay)
}

// Commit materializes stage as a new head commit and returns the new head
// commit node's hash.
func (b *Builder) Commit(ctx context.Context, repoHex, branch string, opts Opts) (string, error) {
	headPath := layout.BranchRef(repoHex, branch, refs.Head)
	stagePath := layout.BranchRef(repoHex, branch, refs.Stage)

	stageHash, err := b.hashOf(stagePath)
	if err != nil {
		return "", err
	}
	priorHeadHash, err := b.hashOf(headPath)
	if err != nil {
		return "", err
	}
	priorIsCommit, err := b.hasCommitMetadata(headPath)
	if err != nil {
		return "", err
	}

	if !opts.ForceMetadata && stageHash == priorHeadHash {
		return "", ipvcerr.ErrNothingToCommit
	}

	peerID, err := b.signer.KeyID(ctx)
	if err != nil {
		return "", fmt.Errorf("resolving signing identity: %w", err)
	}

	meta := Metadata{
		Message:   opts.Message,
		Author:    Author{PeerID: peerID, PublicKey: peerID},
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		IsMerge:   opts.IsMerge,
		IsReplay:  opts.IsReplay,
	}

	if err := b.s.Rm(headPath, true); err != nil && !errors.Is(err, store.ErrNotExist) {
		return "", fmt.Errorf("clearing head: %w", err)
	}
	if err := b.s.Cp(stagePath, headPath); err != nil {
		return "", fmt.Errorf("promoting stage to head: %w", err)
	}

	if priorIsCommit {
		if err := b.s.Cp("/cid/"+priorHeadHash, headPath+"/data/parent"); err != nil {
			return "", fmt.Errorf("linking parent: %w", err)
		}
	}
	if opts.MergeParent != "" {
		if err := b.s.Cp("/cid/"+opts.MergeParent, headPath+"/data/merge_parent"); err != nil {
			return "", fmt.Errorf("linking merge_parent: %w", err)
		}
	}

	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	if err := b.s.Write(headPath+"/data/commit_metadata", metaBytes, true, true); err != nil {
		return "", fmt.Errorf("writing commit_metadata: %w", err)
	}

	sigs, err := b.sign(ctx, headPath)
	if err != nil {
		return "", err
	}
	if err := b.writeSignatures(headPath, sigs); err != nil {
		return "", err
	}

	// stage already carries the same data/bundle content as head (it was
	// the copy source), satisfying the post-commit invariant without
	// further writes; stage's own parent/signature fields, if any from a
	// previous life as a head, are irrelevant since only data/bundle is
	// compared.
	return b.hashOf(headPath)
}

// hasCommitMetadata reports whether path already carries a commit_metadata
// document, i.e. is a real prior commit rather than a freshly initialized
// (empty) ref with no commits yet.
func (b *Builder) hasCommitMetadata(path string) (bool, error) {
	_, err := b.s.Stat(path + "/data/commit_metadata")
	if errors.Is(err, store.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (b *Builder) hashOf(path string) (string, error) {
	st, err := b.s.Stat(path)
	if errors.Is(err, store.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return st.Hash, nil
}

func (b *Builder) sign(ctx context.Context, headPath string) (Signatures, error) {
	bundleHash, err := b.hashOf(headPath + "/data/bundle")
	if err != nil {
		return Signatures{}, err
	}
	dataHash, err := b.hashOf(headPath + "/data")
	if err != nil {
		return Signatures{}, err
	}

	bundleSig, err := b.signer.Sign(ctx, []byte(bundleHash))
	if err != nil {
		return Signatures{}, fmt.Errorf("signing bundle: %w", err)
	}
	dataSig, err := b.signer.Sign(ctx, []byte(dataHash))
	if err != nil {
		return Signatures{}, fmt.Errorf("signing data: %w", err)
	}
	return Signatures{Bundle: bundleSig, Data: dataSig}, nil
}

func (b *Builder) writeSignatures(headPath string, sigs Signatures) error {
	bundleBytes, err := json.Marshal(sigs.Bundle)
	if err != nil {
		return err
	}
	if err := b.s.Write(headPath+"/bundle_signature", bundleBytes, true, true); err != nil {
		return err
	}
	dataBytes, err := json.Marshal(sigs.Data)
	if err != nil {
		return err
	}
	return b.s.Write(headPath+"/data_signature", dataBytes, true, true)
}

// ReadMetadata loads the commit_metadata document for the commit node at
// path (a store path or a /cid/<hash> reference).
func ReadMetadata(s *store.Store, commitPath string) (Metadata, error) {
	data, err := s.Read(commitPath + "/data/commit_metadata")
	if err != nil {
		return Metadata{}, err
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("corrupt commit_metadata: %w", err)
	}
	return meta, nil
}
