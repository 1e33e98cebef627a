// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mediagit/mediagit/modules/mediagit/config"
	"github.com/mediagit/mediagit/modules/mediagit/fsck"
	"github.com/mediagit/mediagit/modules/mediagit/repository"
	"github.com/mediagit/mediagit/pkg/mediagit"
	"github.com/mediagit/mediagit/pkg/server"
	"github.com/spf13/cobra"
)

// remoteToken resolves the bearer token authorizing a push/pull: the
// --token flag takes precedence, falling back to MEDIAGIT_TOKEN so
// credentials never need to appear on a command line visible in a shell
// history or process listing.
func remoteToken(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("MEDIAGIT_TOKEN")
}

func remoteURL(cfg *config.Config, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if cfg.Core.Remote == "" {
		return "", errors.New("no remote configured, set one with 'mediagit config core.remote <url>' or pass --remote")
	}
	return cfg.Core.Remote, nil
}

func newPushCommand(g *Globals) *cobra.Command {
	var (
		remote string
		token  string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Update the remote with local branch objects and refs",
		RunE: func(cmd *cobra.Command, args []string) error {
			worktree, gitDir, err := mediagit.FindRepoDir(g.CWD)
			if err != nil {
				return err
			}
			r, err := repository.Open(worktree)
			if err != nil {
				return err
			}
			defer r.Close()

			ctx := context.Background()
			report, err := fsck.Verify(ctx, r)
			if err != nil {
				return fmt.Errorf("push: %w", err)
			}
			if !report.Passed() {
				for _, issue := range report.Issues {
					fmt.Fprintln(cmd.ErrOrStderr(), issue.String())
				}
				return &mediagit.ErrExitCode{ExitCode: 1, Message: "refusing to push a corrupt history, run 'mediagit fsck'"}
			}

			cfg, err := config.Load(gitDir)
			if err != nil {
				return err
			}
			base, err := remoteURL(cfg, remote)
			if err != nil {
				return err
			}
			client, err := server.NewClient(base, remoteToken(token))
			if err != nil {
				return err
			}

			branch, err := currentBranchName(r)
			if err != nil {
				return err
			}
			ref, err := r.Refs.Reference(branch)
			if err != nil {
				return fmt.Errorf("push: %w", err)
			}
			head := ref.Hash()

			remoteRefs, err := client.InfoRefs(ctx)
			if err != nil {
				return fmt.Errorf("push: %w", err)
			}
			var have []string
			var oldOID *string
			for _, rr := range remoteRefs.Refs {
				if rr.Name == branch.String() && rr.OID != "" {
					have = []string{rr.OID}
					oid := rr.OID
					oldOID = &oid
				}
			}

			pack, err := client.ObjectsWant(ctx, []string{head.String()}, have)
			if err != nil {
				return fmt.Errorf("push: %w", err)
			}
			if len(pack) > 0 {
				if err := client.ObjectsPack(ctx, pack); err != nil {
					return fmt.Errorf("push: %w", err)
				}
			}

			update := server.RefUpdateRequest{Name: branch.String(), OldOID: oldOID, NewOID: head.String()}
			resp, err := client.RefsUpdate(ctx, []server.RefUpdateRequest{update}, force)
			if err != nil {
				return fmt.Errorf("push: %w", err)
			}
			if !resp.Success {
				for _, res := range resp.Results {
					if !res.Success {
						return fmt.Errorf("push: %s: %s", res.RefName, res.Error)
					}
				}
				return errors.New("push: rejected by remote")
			}
			cmd.Printf("pushed %s to %s\n", head, branch)
			return nil
		},
	}
	cmd.Flags().StringVar(&remote, "remote", "", "remote URL to push to (defaults to core.remote)")
	cmd.Flags().StringVar(&token, "token", "", "bearer token authorizing the push (defaults to $MEDIAGIT_TOKEN)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "bypass the fast-forward check")
	return cmd
}
