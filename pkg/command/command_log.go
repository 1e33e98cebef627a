// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"io"

	"github.com/mediagit/mediagit/modules/mediagit/object"
	"github.com/mediagit/mediagit/modules/mediagit/repository"
	"github.com/mediagit/mediagit/modules/plumbing"
	"github.com/mediagit/mediagit/pkg/mediagit"
	"github.com/spf13/cobra"
)

func newLogCommand(g *Globals) *cobra.Command {
	return &cobra.Command{
		Use:   "log",
		Short: "Show commit logs",
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
			head, err := r.Head(ctx)
			if err != nil {
				return err
			}
			if head == plumbing.ZeroHash {
				cmd.Println("No commits yet")
				return nil
			}
			start, err := r.Objects.Commit(ctx, head)
			if err != nil {
				return err
			}
			iter := object.NewCommitPreorderIter(start, nil, nil)
			defer iter.Close()
			for {
				c, err := iter.Next(ctx)
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return err
				}
				cmd.Printf("commit %s\n", c.Hash)
				cmd.Printf("Author: %s <%s>\n", c.Author.Name, c.Author.Email)
				cmd.Printf("Date:   %s\n\n", c.Author.When)
				cmd.Printf("    %s\n\n", c.Message)
			}
		},
	}
}
