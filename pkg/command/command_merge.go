// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/mediagit/mediagit/modules/mediagit/config"
	"github.com/mediagit/mediagit/modules/mediagit/graph"
	"github.com/mediagit/mediagit/modules/mediagit/object"
	"github.com/mediagit/mediagit/modules/mediagit/repository"
	"github.com/mediagit/mediagit/modules/plumbing"
	"github.com/mediagit/mediagit/pkg/mediagit"
	"github.com/spf13/cobra"
)

// currentBranchName resolves HEAD to the branch reference it names, falling
// back to the default branch when HEAD is missing or detached.
func currentBranchName(r *repository.Repository) (plumbing.ReferenceName, error) {
	head, err := r.Refs.HEAD()
	if err != nil {
		return "", err
	}
	if head == nil || head.Type() != plumbing.SymbolicReference {
		return plumbing.Mainline, nil
	}
	return head.Target(), nil
}

func newMergeCommand(g *Globals) *cobra.Command {
	return &cobra.Command{
		Use:   "merge <branch>",
		Short: "Join two or more development histories together",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			worktree, gitDir, err := mediagit.FindRepoDir(g.CWD)
			if err != nil {
				return err
			}
			r, err := repository.Open(worktree)
			if err != nil {
				return err
			}
			defer r.Close()

			cfg, err := config.Load(gitDir)
			if err != nil {
				return err
			}

			ctx := context.Background()
			ours, err := r.Head(ctx)
			if err != nil {
				return err
			}
			branchName, err := currentBranchName(r)
			if err != nil {
				return err
			}
			ourRef, err := r.Refs.Reference(branchName)
			if err != nil {
				return fmt.Errorf("merge: resolve %s: %w", branchName, err)
			}
			theirRef, err := r.Refs.Reference(plumbing.NewBranchReferenceName(args[0]))
			if err != nil {
				return fmt.Errorf("merge: %w", err)
			}
			theirs := theirRef.Hash()

			bases, err := graph.MergeBase(ctx, r.Objects, ours, theirs)
			if err != nil {
				return err
			}
			var baseOid plumbing.Hash
			if len(bases) > 0 {
				baseOid = bases[0]
			}

			if baseOid == theirs {
				cmd.Println("Already up to date.")
				return nil
			}

			if baseOid == ours {
				// Fast-forward: our branch has not diverged, so adopt theirs directly.
				newRef := plumbing.NewHashReference(branchName, theirs)
				if err := r.Refs.ReferenceUpdate(newRef, ourRef); err != nil {
					return fmt.Errorf("merge: fast-forward: %w", err)
				}
				if err := r.Checkout(ctx, theirs, repository.CheckoutOptions{Force: true}); err != nil {
					return err
				}
				cmd.Println("Fast-forward")
				return nil
			}

			var baseTree *object.Tree
			if !baseOid.IsZero() {
				baseCommit, err := r.Objects.Commit(ctx, baseOid)
				if err != nil {
					return err
				}
				baseTree, err = r.Objects.Tree(ctx, baseCommit.Tree)
				if err != nil {
					return err
				}
			} else {
				baseTree = object.NewTree(nil)
			}
			ourCommit, err := r.Objects.Commit(ctx, ours)
			if err != nil {
				return err
			}
			ourTree, err := r.Objects.Tree(ctx, ourCommit.Tree)
			if err != nil {
				return err
			}
			theirCommit, err := r.Objects.Commit(ctx, theirs)
			if err != nil {
				return err
			}
			theirTree, err := r.Objects.Tree(ctx, theirCommit.Tree)
			if err != nil {
				return err
			}

			result, err := graph.MergeTrees(ctx, r.Objects, baseTree, ourTree, theirTree)
			if err != nil {
				return err
			}
			if len(result.Conflicts) > 0 {
				for _, c := range result.Conflicts {
					cmd.Printf("CONFLICT: %s: %s\n", c.Path, c.Reason)
				}
				return &mediagit.ErrExitCode{ExitCode: 1, Message: "fix conflicts and commit the result"}
			}

			var buf bytes.Buffer
			if err := result.Tree.Encode(&buf); err != nil {
				return err
			}
			treeOid, err := r.Objects.Write(ctx, object.TreeObject, buf.Bytes())
			if err != nil {
				return err
			}

			sig := object.Signature{Name: cfg.User.Name, Email: cfg.User.Email, When: time.Now()}
			commit := &object.Commit{
				Author:    sig,
				Committer: sig,
				Parents:   []plumbing.Hash{ours, theirs},
				Tree:      treeOid,
				Message:   fmt.Sprintf("Merge branch '%s'", args[0]),
			}
			var cbuf bytes.Buffer
			if err := commit.Encode(&cbuf); err != nil {
				return err
			}
			commitOid, err := r.Objects.Write(ctx, object.CommitObject, cbuf.Bytes())
			if err != nil {
				return err
			}

			newRef := plumbing.NewHashReference(branchName, commitOid)
			if err := r.Refs.ReferenceUpdate(newRef, ourRef); err != nil {
				return fmt.Errorf("merge: update %s: %w", branchName, err)
			}
			if err := r.Checkout(ctx, commitOid, repository.CheckoutOptions{Force: true}); err != nil {
				return err
			}
			cmd.Printf("created merge commit %s\n", commitOid)
			return nil
		},
	}
}
