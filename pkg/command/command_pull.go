// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/mediagit/mediagit/modules/mediagit/backend/pack"
	"github.com/mediagit/mediagit/modules/mediagit/config"
	"github.com/mediagit/mediagit/modules/mediagit/graph"
	"github.com/mediagit/mediagit/modules/mediagit/repository"
	"github.com/mediagit/mediagit/modules/plumbing"
	"github.com/mediagit/mediagit/pkg/mediagit"
	"github.com/mediagit/mediagit/pkg/server"
	"github.com/spf13/cobra"
)

// ingestPack decodes a fetched pack and writes each object into r's object
// database, mirroring the server's own PackTransaction ingest so a partial
// fetch never leaves orphan objects visible to readers.
func ingestPack(ctx context.Context, r *repository.Repository, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	pr, err := pack.NewReader(data)
	if err != nil {
		return err
	}
	tx, err := r.Objects.Begin()
	if err != nil {
		return err
	}
	for _, oid := range pr.ListObjects() {
		typ, payload, err := pr.GetObject(oid)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.AddObject(oid, typ, payload); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit(ctx)
}

func newPullCommand(g *Globals) *cobra.Command {
	var (
		remote string
		token  string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Fetch from the remote and fast-forward the current branch",
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

			ctx := context.Background()
			branch, err := currentBranchName(r)
			if err != nil {
				return err
			}

			remoteRefs, err := client.InfoRefs(ctx)
			if err != nil {
				return fmt.Errorf("pull: %w", err)
			}
			var remoteHead string
			for _, rr := range remoteRefs.Refs {
				if rr.Name == branch.String() {
					remoteHead = rr.OID
				}
			}
			if remoteHead == "" {
				return fmt.Errorf("pull: remote has no %s", branch)
			}
			remoteOID := plumbing.NewHash(remoteHead)

			localHead, err := r.Head(ctx)
			if err != nil {
				return err
			}
			if remoteOID == localHead {
				cmd.Println("Already up to date.")
				return nil
			}

			var have []string
			if !localHead.IsZero() {
				have = []string{localHead.String()}
			}
			packData, err := client.ObjectsWant(ctx, []string{remoteHead}, have)
			if err != nil {
				return fmt.Errorf("pull: %w", err)
			}
			if err := ingestPack(ctx, r, packData); err != nil {
				return fmt.Errorf("pull: %w", err)
			}
			if !localHead.IsZero() && !force {
				bases, err := graph.MergeBase(ctx, r.Objects, localHead, remoteOID)
				if err != nil {
					return fmt.Errorf("pull: %w", err)
				}
				if len(bases) == 0 || bases[0] != localHead {
					return errors.New("pull: not fast-forward")
				}
			}

			oldRef, err := r.Refs.Reference(branch)
			if err != nil && err != plumbing.ErrReferenceNotFound {
				return fmt.Errorf("pull: %w", err)
			}
			if oldRef != nil && !force && oldRef.Hash() != localHead {
				return errors.New("pull: local branch changed since read, retry")
			}
			newRef := plumbing.NewHashReference(branch, remoteOID)
			if err := r.Refs.ReferenceUpdate(newRef, oldRef); err != nil {
				return fmt.Errorf("pull: %w", err)
			}
			if err := r.Checkout(ctx, remoteOID, repository.CheckoutOptions{Force: force}); err != nil {
				return err
			}
			cmd.Printf("updated %s to %s\n", branch, remoteOID)
			return nil
		},
	}
	cmd.Flags().StringVar(&remote, "remote", "", "remote URL to pull from (defaults to core.remote)")
	cmd.Flags().StringVar(&token, "token", "", "bearer token authorizing the pull (defaults to $MEDIAGIT_TOKEN)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite local modifications without safety checks")
	return cmd
}
