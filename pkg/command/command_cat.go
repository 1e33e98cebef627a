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

func newCatFileCommand(g *Globals) *cobra.Command {
	return &cobra.Command{
		Use:     "cat-file <type> <oid>",
		Aliases: []string{"cat"},
		Short:   "Provide contents or details of repository objects",
		Args:    cobra.ExactArgs(2),
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

			oid := plumbing.NewHash(args[1])
			if oid.IsZero() {
				return fmt.Errorf("cat-file: '%s' is not a valid object id", args[1])
			}

			ctx := context.Background()
			switch args[0] {
			case "blob":
				raw, err := r.Objects.Read(ctx, oid)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(raw)
				return err
			case "tree":
				tr, err := r.Objects.Tree(ctx, oid)
				if err != nil {
					return err
				}
				for _, e := range tr.Entries {
					cmd.Printf("%s %s\t%s\n", e.Mode, e.Hash, e.Name)
				}
				return nil
			case "commit":
				c, err := r.Objects.Commit(ctx, oid)
				if err != nil {
					return err
				}
				cmd.Printf("tree %s\n", c.Tree)
				for _, p := range c.Parents {
					cmd.Printf("parent %s\n", p)
				}
				cmd.Printf("author %s\ncommitter %s\n\n%s\n", c.Author.String(), c.Committer.String(), c.Message)
				return nil
			case "tag":
				t, err := r.Objects.Tag(ctx, oid)
				if err != nil {
					return err
				}
				cmd.Printf("object %s\ntag %s\n%s\n", t.Hash, t.Name, t.Message)
				return nil
			default:
				return fmt.Errorf("cat-file: unknown object type '%s'", args[0])
			}
		},
	}
}
