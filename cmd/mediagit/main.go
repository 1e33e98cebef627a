// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/mediagit/mediagit/pkg/command"
	"github.com/mediagit/mediagit/pkg/mediagit"
	"github.com/mediagit/mediagit/pkg/version"
)

func main() {
	root := command.NewRootCommand(version.GetVersionString())
	if err := root.Execute(); err != nil {
		if e, ok := err.(*mediagit.ErrExitCode); ok {
			os.Exit(e.ExitCode)
		}
		fmt.Fprintf(os.Stderr, "mediagit: %v\n", err)
		os.Exit(1)
	}
}
