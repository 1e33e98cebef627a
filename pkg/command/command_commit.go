// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mediagit/mediagit/modules/mediagit/config"
	"github.com/mediagit/mediagit/modules/mediagit/fsck"
	"github.com/mediagit/mediagit/modules/mediagit/object"
	"github.com/mediagit/mediagit/modules/mediagit/repository"
	"github.com/mediagit/mediagit/pkg/mediagit"
	"github.com/spf13/cobra"
)

// ErrMissingAuthor is returned when neither the repository-local nor the
// global config names a user.name/user.email pair to sign commits with.
var ErrMissingAuthor = errors.New("author identity unknown")

func newCommitCommand(g *Globals) *cobra.Command {
	var messages []string
	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Record staged changes to the repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(messages) == 0 {
				return errors.New("commit: no message given, use -m to provide one")
			}
			worktree, gitDir, err := mediagit.FindRepoDir(g.CWD)
			if err != nil {
				return err
			}
			r, err := repository.Open(worktree)
			if err != nil {
				return err
			}
			defer r.Close()

			report, err := fsck.Verify(context.Background(), r)
			if err != nil {
				return fmt.Errorf("commit: %w", err)
			}
			if !report.Passed() {
				for _, issue := range report.Issues {
					fmt.Fprintln(cmd.ErrOrStderr(), issue.String())
				}
				return &mediagit.ErrExitCode{ExitCode: 1, Message: "refusing to commit onto a corrupt history, run 'mediagit fsck'"}
			}

			cfg, err := config.Load(gitDir)
			if err != nil {
				return err
			}
			if cfg.User.Empty() {
				fmt.Fprintf(cmd.ErrOrStderr(), `mediagit commit: %s
*** Please tell me who you are.

Run

    mediagit config --global user.email "you@example.com"
    mediagit config --global user.name "Your Name"

to set your account's default identity.
`, ErrMissingAuthor)
				return &mediagit.ErrExitCode{ExitCode: 128, Message: ErrMissingAuthor.Error()}
			}

			sig := object.Signature{Name: cfg.User.Name, Email: cfg.User.Email, When: time.Now()}
			oid, err := r.Commit(context.Background(), sig, strings.Join(messages, "\n\n"))
			if err != nil {
				return fmt.Errorf("commit: %w", err)
			}
			cmd.Printf("created commit %s\n", oid)
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&messages, "message", "m", nil, "use the given message as the commit message")
	return cmd
}
