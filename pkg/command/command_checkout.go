// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"

	"github.com/mediagit/mediagit/modules/mediagit/repository"
	"github.com/mediagit/mediagit/modules/plumbing"
	"github.com/mediagit/mediagit/pkg/mediagit"
	"github.com/spf13/cobra"
)

func newCheckoutCommand(g *Globals) *cobra.Command {
	var (
		force     bool
		newBranch string
	)
	cmd := &cobra.Command{
		Use:   "checkout <branch|commit>",
		Short: "Switch branches or restore working-tree files",
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
			opts := repository.CheckoutOptions{Force: force}

			if newBranch != "" {
				head, err := r.Head(ctx)
				if err != nil {
					return err
				}
				branchRef := plumbing.NewHashReference(plumbing.NewBranchReferenceName(newBranch), head)
				if err := r.Refs.ReferenceUpdate(branchRef, nil); err != nil {
					return fmt.Errorf("checkout: create branch %s: %w", newBranch, err)
				}
				if err := r.CheckoutBranch(ctx, branchRef.Name(), opts); err != nil {
					return err
				}
				cmd.Printf("switched to a new branch '%s'\n", newBranch)
				return nil
			}

			if len(args) == 0 {
				return fmt.Errorf("checkout: a branch or commit must be given")
			}
			name := args[0]

			branchName := plumbing.NewBranchReferenceName(name)
			if _, err := r.Refs.Reference(branchName); err == nil {
				if err := r.CheckoutBranch(ctx, branchName, opts); err != nil {
					return err
				}
				cmd.Printf("switched to branch '%s'\n", name)
				return nil
			}

			oid, err := plumbing.NewHashEx(name)
			if err != nil {
				return fmt.Errorf("checkout: %q is not a known branch or commit", name)
			}
			if err := r.Checkout(ctx, oid, opts); err != nil {
				return err
			}
			head := plumbing.NewHashReference(plumbing.HEAD, oid)
			if err := r.Refs.ReferenceUpdate(head, nil); err != nil {
				return fmt.Errorf("checkout: detach HEAD at %s: %w", oid, err)
			}
			cmd.Printf("HEAD is now at %s\n", oid.Prefix())
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite local modifications without safety checks")
	cmd.Flags().StringVarP(&newBranch, "branch", "b", "", "create and check out a new branch")
	return cmd
}
