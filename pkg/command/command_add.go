// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mediagit/mediagit/modules/mediagit/index"
	"github.com/mediagit/mediagit/modules/mediagit/object"
	"github.com/mediagit/mediagit/modules/mediagit/repository"
	"github.com/mediagit/mediagit/modules/plumbing/filemode"
	"github.com/mediagit/mediagit/pkg/mediagit"
	"github.com/spf13/cobra"
)

func modeOf(info os.FileInfo) filemode.FileMode {
	if info.Mode()&0111 != 0 {
		return filemode.Executable
	}
	return filemode.Regular
}

func newAddCommand(g *Globals) *cobra.Command {
	return &cobra.Command{
		Use:   "add <pathspec>...",
		Short: "Add file contents to the index",
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

			ctx := context.Background()
			for _, path := range args {
				abs := path
				if !filepath.IsAbs(abs) {
					abs = filepath.Join(worktree, path)
				}
				info, err := os.Stat(abs)
				if err != nil {
					return fmt.Errorf("add '%s': %w", path, err)
				}
				if info.IsDir() {
					return fmt.Errorf("add '%s': staging whole directories is not yet supported, add files individually", path)
				}
				data, err := os.ReadFile(abs)
				if err != nil {
					return fmt.Errorf("add '%s': %w", path, err)
				}
				oid, err := r.Objects.Write(ctx, object.BlobObject, data)
				if err != nil {
					return fmt.Errorf("add '%s': %w", path, err)
				}
				rel, err := filepath.Rel(worktree, abs)
				if err != nil {
					return fmt.Errorf("add '%s': %w", path, err)
				}
				r.Index.AddEntry(index.Entry{
					Path: rel,
					OID:  oid,
					Mode: modeOf(info),
					Size: info.Size(),
				})
				g.dbgPrint("staged %s as %s", rel, oid)
			}
			return r.Index.Write()
		},
	}
}
