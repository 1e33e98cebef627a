// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mediagit/mediagit/modules/mediagit/graph"
	"github.com/mediagit/mediagit/modules/mediagit/object"
	"github.com/mediagit/mediagit/modules/mediagit/repository"
	"github.com/mediagit/mediagit/modules/plumbing"
	"github.com/mediagit/mediagit/pkg/mediagit"
	"github.com/spf13/cobra"
)

// writeWorkingFile materializes data at name under worktree, creating parent
// directories as needed, matching checkout's own materialize step.
func writeWorkingFile(worktree, name string, data []byte) error {
	abs := filepath.Join(worktree, name)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return err
	}
	return os.WriteFile(abs, data, 0o644)
}

// commitsSince walks first-parent history from tip back to (but excluding)
// stop, returning them oldest-first: the order §4.10's rebase replays them
// onto the new upstream.
func commitsSince(ctx context.Context, r *repository.Repository, tip, stop plumbing.Hash) ([]plumbing.Hash, error) {
	var commits []plumbing.Hash
	for h := tip; !h.IsZero() && h != stop; {
		commits = append(commits, h)
		c, err := r.Objects.Commit(ctx, h)
		if err != nil {
			return nil, err
		}
		if len(c.Parents) == 0 {
			h = plumbing.ZeroHash
			continue
		}
		h = c.Parents[0]
	}
	for i, j := 0, len(commits)-1; i < j; i, j = i+1, j-1 {
		commits[i], commits[j] = commits[j], commits[i]
	}
	return commits, nil
}

// replayCommit re-applies oid's change onto newParent via a three-way merge
// against oid's own parent tree as base, mirroring a single cherry-pick step
// of §4.10's rebase. Returns the new commit oid, or a non-nil conflict list
// when the replay needs manual resolution.
func replayCommit(ctx context.Context, r *repository.Repository, oid, newParent plumbing.Hash) (plumbing.Hash, []graph.FileConflict, error) {
	commit, err := r.Objects.Commit(ctx, oid)
	if err != nil {
		return plumbing.ZeroHash, nil, err
	}
	theirTree, err := r.Objects.Tree(ctx, commit.Tree)
	if err != nil {
		return plumbing.ZeroHash, nil, err
	}

	var baseTree *object.Tree
	if len(commit.Parents) > 0 {
		parentCommit, err := r.Objects.Commit(ctx, commit.Parents[0])
		if err != nil {
			return plumbing.ZeroHash, nil, err
		}
		baseTree, err = r.Objects.Tree(ctx, parentCommit.Tree)
		if err != nil {
			return plumbing.ZeroHash, nil, err
		}
	} else {
		baseTree = object.NewTree(nil)
	}

	newParentCommit, err := r.Objects.Commit(ctx, newParent)
	if err != nil {
		return plumbing.ZeroHash, nil, err
	}
	ourTree, err := r.Objects.Tree(ctx, newParentCommit.Tree)
	if err != nil {
		return plumbing.ZeroHash, nil, err
	}

	result, err := graph.MergeTrees(ctx, r.Objects, baseTree, ourTree, theirTree)
	if err != nil {
		return plumbing.ZeroHash, nil, err
	}
	if len(result.Conflicts) > 0 {
		if err := r.Checkout(ctx, newParent, repository.CheckoutOptions{Force: true}); err != nil {
			return plumbing.ZeroHash, nil, err
		}
		for _, e := range result.Tree.Entries {
			if err := materializeForRebase(ctx, r, e); err != nil {
				return plumbing.ZeroHash, nil, err
			}
		}
		return plumbing.ZeroHash, result.Conflicts, nil
	}

	var buf bytes.Buffer
	if err := result.Tree.Encode(&buf); err != nil {
		return plumbing.ZeroHash, nil, err
	}
	treeOid, err := r.Objects.Write(ctx, object.TreeObject, buf.Bytes())
	if err != nil {
		return plumbing.ZeroHash, nil, err
	}

	newCommit := &object.Commit{
		Author:    commit.Author,
		Committer: object.Signature{Name: commit.Committer.Name, Email: commit.Committer.Email, When: time.Now()},
		Parents:   []plumbing.Hash{newParent},
		Tree:      treeOid,
		Message:   commit.Message,
	}
	var cbuf bytes.Buffer
	if err := newCommit.Encode(&cbuf); err != nil {
		return plumbing.ZeroHash, nil, err
	}
	return r.Objects.Write(ctx, object.CommitObject, cbuf.Bytes())
}

func materializeForRebase(ctx context.Context, r *repository.Repository, e *object.TreeEntry) error {
	data, err := r.Objects.Read(ctx, e.Hash)
	if err != nil {
		return err
	}
	return writeWorkingFile(r.WorkTree, e.Name, data)
}

// runRebaseLoop advances st, applying commits onto NewParent until either the
// rebase completes or a replay conflicts, in which case it records the
// conflict and returns for the user to resolve and `rebase --continue`.
func runRebaseLoop(ctx context.Context, cmd *cobra.Command, r *repository.Repository, st *repository.RebaseState) error {
	for !st.CurrentCommit.IsZero() {
		newCommit, conflicts, err := replayCommit(ctx, r, st.CurrentCommit, st.NewParent)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			files := make([]string, len(conflicts))
			for i, c := range conflicts {
				files[i] = c.Path
				cmd.Printf("CONFLICT: %s: %s\n", c.Path, c.Reason)
			}
			if _, err := r.RebaseRecordConflict(ctx, files); err != nil {
				return err
			}
			return &mediagit.ErrExitCode{ExitCode: 1, Message: "fix conflicts and run 'mediagit rebase --continue'"}
		}
		st, err = r.RebaseAdvance(ctx, newCommit)
		if err != nil {
			return err
		}
	}
	return finishRebase(ctx, cmd, r, st)
}

func finishRebase(ctx context.Context, cmd *cobra.Command, r *repository.Repository, st *repository.RebaseState) error {
	newRef := plumbing.NewHashReference(st.OriginalBranch, st.NewParent)
	oldRef, err := r.Refs.Reference(st.OriginalBranch)
	if err != nil && err != plumbing.ErrReferenceNotFound {
		return err
	}
	if err := r.Refs.ReferenceUpdate(newRef, oldRef); err != nil {
		return fmt.Errorf("rebase: update %s: %w", st.OriginalBranch, err)
	}
	if err := r.Checkout(ctx, st.NewParent, repository.CheckoutOptions{Force: true}); err != nil {
		return err
	}
	if err := r.RebaseComplete(ctx); err != nil {
		return err
	}
	cmd.Printf("successfully rebased %s onto %s\n", st.OriginalBranch.Short(), st.NewParent)
	return nil
}

func newRebaseCommand(g *Globals) *cobra.Command {
	var (
		continueFlag bool
		skipFlag     bool
		abortFlag    bool
	)
	cmd := &cobra.Command{
		Use:   "rebase <upstream>",
		Short: "Reapply commits on top of another base commit",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			worktree, _, err := mediagit.FindRepoDir(g.CWD)
			if err != nil {
				return err
			}
			r, err := repository.Open(worktree)
			if err != nil {
				return err
			}
			defer r.Close()
			ctx := context.Background()

			switch {
			case abortFlag:
				return r.RebaseAbort(ctx)
			case skipFlag:
				st, err := r.RebaseSkipCurrent(ctx)
				if err != nil {
					return err
				}
				return runRebaseLoop(ctx, cmd, r, st)
			case continueFlag:
				st, err := r.LoadRebaseState()
				if err != nil {
					return err
				}
				resolved, err := replayResolution(ctx, r, st)
				if err != nil {
					return err
				}
				if _, err := r.RebaseRecordConflict(ctx, nil); err != nil {
					return err
				}
				st, err = r.RebaseContinue(ctx, resolved)
				if err != nil {
					return err
				}
				return runRebaseLoop(ctx, cmd, r, st)
			}

			if len(args) == 0 {
				return fmt.Errorf("rebase: an upstream branch must be given")
			}
			if r.HasRebaseState() {
				return fmt.Errorf("rebase: a rebase is already in progress, use --continue or --abort")
			}

			upstreamRef, err := r.Refs.Reference(plumbing.NewBranchReferenceName(args[0]))
			if err != nil {
				return fmt.Errorf("rebase: %w", err)
			}
			upstream := upstreamRef.Hash()

			ours, err := r.Head(ctx)
			if err != nil {
				return err
			}
			bases, err := graph.MergeBase(ctx, r.Objects, ours, upstream)
			if err != nil {
				return err
			}
			var base plumbing.Hash
			if len(bases) > 0 {
				base = bases[0]
			}
			if base == ours {
				cmd.Println("Current branch is up to date.")
				return nil
			}

			commits, err := commitsSince(ctx, r, ours, base)
			if err != nil {
				return err
			}
			st, err := r.RebaseBegin(ctx, upstream, commits)
			if err != nil {
				return err
			}
			st, err = r.RebaseAdvance(ctx, plumbing.ZeroHash)
			if err != nil {
				return err
			}
			return runRebaseLoop(ctx, cmd, r, st)
		},
	}
	cmd.Flags().BoolVar(&continueFlag, "continue", false, "continue a rebase after resolving conflicts")
	cmd.Flags().BoolVar(&skipFlag, "skip", false, "skip the current commit and continue")
	cmd.Flags().BoolVar(&abortFlag, "abort", false, "abort the rebase and restore the original branch")
	return cmd
}

// replayResolution builds the tree the user staged to resolve the current
// commit's conflicts, the same index-overlay algorithm Repository.Commit
// uses, and writes the resulting commit onto st.NewParent.
func replayResolution(ctx context.Context, r *repository.Repository, st *repository.RebaseState) (plumbing.Hash, error) {
	newParentCommit, err := r.Objects.Commit(ctx, st.NewParent)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	newParentTree, err := r.Objects.Tree(ctx, newParentCommit.Tree)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	original, err := r.Objects.Commit(ctx, st.CurrentCommit)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	tree := newParentTree.Remove(r.Index.DeletedPaths()...)
	staged := r.Index.Entries()
	overlay := make([]*object.TreeEntry, len(staged))
	for i, e := range staged {
		overlay[i] = &object.TreeEntry{Name: e.Path, Mode: e.Mode, Hash: e.OID}
	}
	tree = tree.Merge(overlay...)

	var buf bytes.Buffer
	if err := tree.Encode(&buf); err != nil {
		return plumbing.ZeroHash, err
	}
	treeOid, err := r.Objects.Write(ctx, object.TreeObject, buf.Bytes())
	if err != nil {
		return plumbing.ZeroHash, err
	}

	commit := &object.Commit{
		Author:    original.Author,
		Committer: object.Signature{Name: original.Committer.Name, Email: original.Committer.Email, When: time.Now()},
		Parents:   []plumbing.Hash{st.NewParent},
		Tree:      treeOid,
		Message:   original.Message,
	}
	var cbuf bytes.Buffer
	if err := commit.Encode(&cbuf); err != nil {
		return plumbing.ZeroHash, err
	}
	commitOid, err := r.Objects.Write(ctx, object.CommitObject, cbuf.Bytes())
	if err != nil {
		return plumbing.ZeroHash, err
	}

	snapshot := r.Index.Snapshot()
	r.Index.Clear()
	if err := r.Index.Write(); err != nil {
		r.Index.Restore(snapshot)
		return plumbing.ZeroHash, err
	}
	return commitOid, nil
}
