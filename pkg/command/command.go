// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package command implements the mediagit CLI's subcommands on top of
// modules/mediagit/repository, using github.com/spf13/cobra for argument
// parsing and github.com/sirupsen/logrus for diagnostic output.
package command

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Globals holds flags and shared services every subcommand uses.
type Globals struct {
	CWD     string
	Verbose bool
	Log     *logrus.Logger
}

func (g *Globals) dbgPrint(format string, args ...any) {
	g.Log.Debugf(format, args...)
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return log
}

// NewRootCommand builds the mediagit cobra command tree.
func NewRootCommand(version string) *cobra.Command {
	g := &Globals{Log: newLogger()}
	root := &cobra.Command{
		Use:           "mediagit",
		Short:         "A content-addressed version control system for large binary media",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if g.Verbose {
				g.Log.SetLevel(logrus.DebugLevel)
			}
		},
	}
	root.PersistentFlags().StringVar(&g.CWD, "cwd", "", "set the path to the repository worktree")
	root.PersistentFlags().BoolVarP(&g.Verbose, "verbose", "V", false, "make the operation more talkative")

	root.AddCommand(
		newInitCommand(g),
		newAddCommand(g),
		newCommitCommand(g),
		newStatusCommand(g),
		newLogCommand(g),
		newConfigCommand(g),
		newCatFileCommand(g),
		newRmCommand(g),
		newBranchCommand(g),
		newCheckoutCommand(g),
		newMergeCommand(g),
		newRebaseCommand(g),
		newFsckCommand(g),
		newGCCommand(g),
		newHashObjectCommand(g),
		newPushCommand(g),
		newPullCommand(g),
	)
	return root
}
