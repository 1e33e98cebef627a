// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mediagit/mediagit/modules/plumbing"
)

// rebaseStateDir/rebaseStateFile locate the persisted rebase record under
// the repository's gitDir, per §6's on-disk layout
// ("rebase-apply/state.json (in-progress rebase)").
const (
	rebaseStateDir  = "rebase-apply"
	rebaseStateFile = "state.json"
)

// RebaseState is §4.10's rebase-state record, persisted across invocations
// so a rebase can be resumed or aborted after a crash or an unresolved
// conflict. Its absence on disk means no rebase is in progress.
type RebaseState struct {
	OriginalHead   plumbing.Hash          `json:"original_head"`
	OriginalBranch plumbing.ReferenceName `json:"original_branch"`
	Upstream       plumbing.Hash          `json:"upstream"`
	CommitsRemaining []plumbing.Hash      `json:"commits_remaining"`
	CurrentCommit  plumbing.Hash          `json:"current_commit"`
	CurrentIndex   int                    `json:"current_index"`
	Total          int                    `json:"total"`
	ConflictFiles  []string               `json:"conflict_files"`
	NewParent      plumbing.Hash          `json:"new_parent"`
}

func (r *Repository) rebaseStatePath() string {
	return filepath.Join(r.GitDir, rebaseStateDir, rebaseStateFile)
}

// HasRebaseState reports whether a rebase is currently in progress.
func (r *Repository) HasRebaseState() bool {
	_, err := os.Stat(r.rebaseStatePath())
	return err == nil
}

// LoadRebaseState reads the persisted rebase record. Returns a KindNotFound
// KindError if no rebase is in progress.
func (r *Repository) LoadRebaseState() (*RebaseState, error) {
	path := r.rebaseStatePath()
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, plumbing.NewKindError(plumbing.KindNotFound, "load rebase state", "", fmt.Errorf("no rebase in progress"))
		}
		return nil, plumbing.NewKindError(plumbing.KindIoError, fmt.Sprintf("read %s", path), "", err)
	}
	var st RebaseState
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, plumbing.NewKindError(plumbing.KindCorruption, fmt.Sprintf("parse %s", path), "", err)
	}
	return &st, nil
}

// writeRebaseState persists st via temp-file-then-rename, matching the
// Index's and RefDB's atomic-write idiom.
func (r *Repository) writeRebaseState(st *RebaseState) error {
	path := r.rebaseStatePath()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return plumbing.NewKindError(plumbing.KindIoError, fmt.Sprintf("create %s", dir), "", err)
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return plumbing.NewKindError(plumbing.KindStateError, fmt.Sprintf("encode %s", path), "", err)
	}
	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return plumbing.NewKindError(plumbing.KindIoError, fmt.Sprintf("stage %s", path), "", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return plumbing.NewKindError(plumbing.KindIoError, fmt.Sprintf("write %s", path), "", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return plumbing.NewKindError(plumbing.KindIoError, fmt.Sprintf("write %s", path), "", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return plumbing.NewKindError(plumbing.KindIoError, fmt.Sprintf("commit %s", path), "", err)
	}
	return nil
}

// RebaseBegin starts a new rebase of commits onto upstream, recording
// original_head/original_branch so Abort can restore them. A rebase already
// in progress is a StateError: callers must Continue or Abort it first.
func (r *Repository) RebaseBegin(ctx context.Context, upstream plumbing.Hash, commits []plumbing.Hash) (*RebaseState, error) {
	if r.HasRebaseState() {
		return nil, plumbing.NewKindError(plumbing.KindStateError, "rebase begin", "run 'rebase --continue' or 'rebase --abort'", fmt.Errorf("a rebase is already in progress"))
	}
	head, err := r.Head(ctx)
	if err != nil {
		return nil, err
	}
	branch, err := r.currentBranch()
	if err != nil {
		return nil, err
	}
	remaining := make([]plumbing.Hash, len(commits))
	copy(remaining, commits)
	st := &RebaseState{
		OriginalHead:     head,
		OriginalBranch:   branch,
		Upstream:         upstream,
		CommitsRemaining: remaining,
		CurrentCommit:    plumbing.ZeroHash,
		CurrentIndex:     0,
		Total:            len(commits),
		NewParent:        upstream,
	}
	if err := r.writeRebaseState(st); err != nil {
		return nil, err
	}
	return st, nil
}

// popNext removes and returns the first remaining commit, or ZeroHash if
// none remain.
func popNext(st *RebaseState) plumbing.Hash {
	if len(st.CommitsRemaining) == 0 {
		return plumbing.ZeroHash
	}
	next := st.CommitsRemaining[0]
	st.CommitsRemaining = st.CommitsRemaining[1:]
	return next
}

// RebaseAdvance records that the commit most recently applied produced
// appliedAs (pass plumbing.ZeroHash if nothing was applied yet, i.e. the
// very first call after RebaseBegin), then pops the next commit to replay.
// IsComplete reports true on the returned state once CommitsRemaining is
// exhausted and CurrentCommit is zero.
func (r *Repository) RebaseAdvance(ctx context.Context, appliedAs plumbing.Hash) (*RebaseState, error) {
	st, err := r.LoadRebaseState()
	if err != nil {
		return nil, err
	}
	if !appliedAs.IsZero() {
		st.NewParent = appliedAs
	}
	st.ConflictFiles = nil
	st.CurrentCommit = popNext(st)
	if !st.CurrentCommit.IsZero() {
		st.CurrentIndex++
	}
	if err := r.writeRebaseState(st); err != nil {
		return nil, err
	}
	return st, nil
}

// RebaseSkipCurrent drops the current commit without replaying it and
// advances to the next one, leaving new_parent unchanged.
func (r *Repository) RebaseSkipCurrent(ctx context.Context) (*RebaseState, error) {
	st, err := r.LoadRebaseState()
	if err != nil {
		return nil, err
	}
	st.ConflictFiles = nil
	st.CurrentCommit = popNext(st)
	if !st.CurrentCommit.IsZero() {
		st.CurrentIndex++
	}
	if err := r.writeRebaseState(st); err != nil {
		return nil, err
	}
	return st, nil
}

// RebaseRecordConflict persists the set of paths left with unresolved
// conflict markers after attempting to replay the current commit, so a
// later RebaseContinue knows what the caller was supposed to resolve.
func (r *Repository) RebaseRecordConflict(ctx context.Context, files []string) (*RebaseState, error) {
	st, err := r.LoadRebaseState()
	if err != nil {
		return nil, err
	}
	st.ConflictFiles = files
	if err := r.writeRebaseState(st); err != nil {
		return nil, err
	}
	return st, nil
}

// RebaseContinue resumes a rebase after the caller has resolved the
// conflict_files of the current commit and committed the result as
// resolvedAs. It is a StateError to call Continue while conflict_files is
// still non-empty — resolve and stage every listed path first.
func (r *Repository) RebaseContinue(ctx context.Context, resolvedAs plumbing.Hash) (*RebaseState, error) {
	st, err := r.LoadRebaseState()
	if err != nil {
		return nil, err
	}
	if len(st.ConflictFiles) > 0 {
		return nil, plumbing.NewKindError(plumbing.KindStateError, "rebase continue", "resolve and stage the conflicted paths first",
			fmt.Errorf("unresolved conflicts remain in: %v", st.ConflictFiles))
	}
	return r.RebaseAdvance(ctx, resolvedAs)
}

// RebaseAbort restores original_head on original_branch, checks the working
// tree back out to it, and discards the rebase state.
func (r *Repository) RebaseAbort(ctx context.Context) error {
	st, err := r.LoadRebaseState()
	if err != nil {
		return err
	}
	ref := plumbing.NewHashReference(st.OriginalBranch, st.OriginalHead)
	if err := r.Refs.ReferenceUpdate(ref, nil); err != nil {
		return plumbing.NewKindError(plumbing.KindIoError, "restore original branch", "", err)
	}
	if err := r.Checkout(ctx, st.OriginalHead, CheckoutOptions{Force: true}); err != nil {
		return err
	}
	return r.clearRebaseState()
}

// RebaseComplete discards the rebase state once every commit has been
// successfully replayed. Callers should check IsComplete first.
func (r *Repository) RebaseComplete(ctx context.Context) error {
	return r.clearRebaseState()
}

func (r *Repository) clearRebaseState() error {
	if err := os.RemoveAll(filepath.Join(r.GitDir, rebaseStateDir)); err != nil {
		return plumbing.NewKindError(plumbing.KindIoError, "discard rebase state", "", err)
	}
	return nil
}

// IsComplete reports whether every commit this rebase scheduled has been
// replayed or skipped.
func (st *RebaseState) IsComplete() bool {
	return st.CurrentCommit.IsZero() && len(st.CommitsRemaining) == 0 && st.CurrentIndex >= st.Total
}
