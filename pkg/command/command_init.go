// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"fmt"

	"github.com/mediagit/mediagit/modules/mediagit/repository"
	"github.com/spf13/cobra"
)

func newInitCommand(g *Globals) *cobra.Command {
	return &cobra.Command{
		Use:   "init [directory]",
		Short: "Create an empty mediagit repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			directory := "."
			if len(args) == 1 {
				directory = args[0]
			}
			r, err := repository.Init(directory)
			if err != nil {
				return fmt.Errorf("init '%s': %w", directory, err)
			}
			defer r.Close()
			cmd.Printf("Initialized empty mediagit repository in %s\n", r.GitDir)
			return nil
		},
	}
}
