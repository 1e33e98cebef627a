// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"github.com/mediagit/mediagit/modules/mediagit/config"
	"github.com/mediagit/mediagit/pkg/mediagit"
	"github.com/spf13/cobra"
)

func newConfigCommand(g *Globals) *cobra.Command {
	var global bool
	cmd := &cobra.Command{
		Use:   "config <key> [value]",
		Short: "Get and set repository or global options",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var gitDir string
			if !global {
				_, found, err := mediagit.FindRepoDir(g.CWD)
				if err != nil {
					return err
				}
				gitDir = found
			}

			cfg, err := config.Load(gitDir)
			if err != nil {
				return err
			}

			if len(args) == 1 {
				value, err := config.Get(cfg, args[0])
				if err != nil {
					return err
				}
				cmd.Println(value)
				return nil
			}

			if err := config.Set(cfg, args[0], args[1]); err != nil {
				return err
			}
			if global {
				return config.SaveGlobal(cfg)
			}
			return config.SaveLocal(gitDir, cfg)
		},
	}
	cmd.Flags().BoolVar(&global, "global", false, "operate on the global (per-user) configuration")
	return cmd
}
