// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"

	"github.com/mediagit/mediagit/modules/mediagit/fsck"
	"github.com/mediagit/mediagit/modules/mediagit/repository"
	"github.com/mediagit/mediagit/pkg/mediagit"
	"github.com/spf13/cobra"
)

func newGCCommand(g *Globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Clean up unreachable objects",
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

			report, err := fsck.Run(context.Background(), r, fsck.Options{Repair: true})
			if err != nil {
				return err
			}
			pruned := 0
			for _, issue := range report.Issues {
				if issue.Kind == fsck.Dangling {
					pruned++
				}
			}
			cmd.Printf("pruned %d unreachable objects\n", pruned)
			return nil
		},
	}
	return cmd
}
