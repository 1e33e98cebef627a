// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"

	"github.com/mediagit/mediagit/modules/mediagit/repository"
	"github.com/mediagit/mediagit/modules/plumbing"
	"github.com/mediagit/mediagit/pkg/mediagit"
	"github.com/spf13/cobra"
)

func newStatusCommand(g *Globals) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the staging area status",
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

			head, err := r.Head(context.Background())
			if err != nil {
				return err
			}
			if head == plumbing.ZeroHash {
				cmd.Println("No commits yet")
			} else {
				cmd.Printf("HEAD at %s\n", head)
			}

			staged := r.Index.Entries()
			deleted := r.Index.DeletedPaths()
			if len(staged) == 0 && len(deleted) == 0 {
				cmd.Println("nothing to commit, working tree clean")
				return nil
			}
			cmd.Println("Changes to be committed:")
			for _, e := range staged {
				cmd.Printf("\tnew file:   %s\n", e.Path)
			}
			for _, p := range deleted {
				cmd.Printf("\tdeleted:    %s\n", p)
			}
			return nil
		},
	}
}
