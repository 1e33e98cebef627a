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

func newBranchCommand(g *Globals) *cobra.Command {
	var deleteName string
	cmd := &cobra.Command{
		Use:   "branch [name]",
		Short: "List, create or delete branches",
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

			if deleteName != "" {
				ref, err := r.Refs.Reference(plumbing.NewBranchReferenceName(deleteName))
				if err != nil {
					return fmt.Errorf("branch: delete %s: %w", deleteName, err)
				}
				if err := r.Refs.ReferenceRemove(ref); err != nil {
					return fmt.Errorf("branch: delete %s: %w", deleteName, err)
				}
				cmd.Printf("deleted branch %s\n", deleteName)
				return nil
			}

			if len(args) == 1 {
				head, err := r.Head(context.Background())
				if err != nil {
					return err
				}
				ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(args[0]), head)
				if err := r.Refs.ReferenceUpdate(ref, nil); err != nil {
					return fmt.Errorf("branch: create %s: %w", args[0], err)
				}
				return nil
			}

			db, err := r.Refs.References()
			if err != nil {
				return err
			}
			currentBranch, err := r.Refs.HEAD()
			if err != nil {
				return err
			}
			var current plumbing.ReferenceName
			if currentBranch != nil && currentBranch.Type() == plumbing.SymbolicReference {
				current = currentBranch.Target()
			}
			for _, ref := range db.References() {
				if !ref.Name().IsBranch() {
					continue
				}
				marker := "  "
				if ref.Name() == current {
					marker = "* "
				}
				cmd.Printf("%s%s\n", marker, ref.Name().BranchName())
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&deleteName, "delete", "d", "", "delete a branch")
	return cmd
}
