// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mediagit/mediagit/modules/mediagit/repository"
	"github.com/mediagit/mediagit/pkg/mediagit"
	"github.com/spf13/cobra"
)

func newRmCommand(g *Globals) *cobra.Command {
	var cached bool
	cmd := &cobra.Command{
		Use:   "rm <pathspec>...",
		Short: "Remove files from the working tree and the index",
		Args:  cobra.MinimumNArgs(1),
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

			for _, path := range args {
				rel := path
				if filepath.IsAbs(rel) {
					rel, err = filepath.Rel(worktree, rel)
					if err != nil {
						return fmt.Errorf("rm '%s': %w", path, err)
					}
				}
				r.Index.MarkDeleted(rel)
				if !cached {
					abs := filepath.Join(worktree, rel)
					if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
						return fmt.Errorf("rm '%s': %w", path, err)
					}
				}
				g.dbgPrint("removed %s", rel)
			}
			return r.Index.Write()
		},
	}
	cmd.Flags().BoolVar(&cached, "cached", false, "only remove from the index, keep the working-tree file")
	return cmd
}
