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

func newFsckCommand(g *Globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fsck",
		Short: "Verify the connectivity and validity of objects in the database",
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

			report, err := fsck.Run(context.Background(), r, fsck.Options{})
			if err != nil {
				return err
			}
			for _, issue := range report.Issues {
				cmd.Println(issue.String())
			}
			cmd.Printf("scanned %d objects, %d reachable\n", report.ScannedCount, report.ReachableCount)
			if !report.Passed() {
				return &mediagit.ErrExitCode{ExitCode: 1, Message: "fsck found errors"}
			}
			return nil
		},
	}
	return cmd
}
