// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"os"

	"github.com/mediagit/mediagit/modules/mediagit/object"
	"github.com/mediagit/mediagit/modules/mediagit/repository"
	"github.com/mediagit/mediagit/modules/plumbing"
	"github.com/mediagit/mediagit/pkg/mediagit"
	"github.com/spf13/cobra"
)

func newHashObjectCommand(g *Globals) *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "hash-object <file>",
		Short: "Compute the object id for a file, optionally writing it to the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("hash-object '%s': %w", args[0], err)
			}

			if !write {
				cmd.Println(plumbing.HashBytes(data))
				return nil
			}

			worktree, _, err := mediagit.FindRepoDir(g.CWD)
			if err != nil {
				return err
			}
			r, err := repository.Open(worktree)
			if err != nil {
				return err
			}
			defer r.Close()

			oid, err := r.Objects.Write(context.Background(), object.BlobObject, data)
			if err != nil {
				return fmt.Errorf("hash-object '%s': %w", args[0], err)
			}
			cmd.Println(oid)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "write the object into the object database")
	return cmd
}
