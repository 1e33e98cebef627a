// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package mediagit holds the small pieces of CLI-facing glue that sit above
// modules/mediagit/repository: locating an existing repository from a
// working directory, and a typed exit-code error the CLI's main() unwraps
// to choose its process exit status.
package mediagit

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mediagit/mediagit/modules/mediagit/repository"
)

// ErrNotRepository is returned by FindRepoDir when cwd is not inside a
// directory tree managed by mediagit.
type ErrNotRepository struct {
	CWD string
}

func (e *ErrNotRepository) Error() string {
	return fmt.Sprintf("'%s' is not inside a mediagit repository", e.CWD)
}

// FindRepoDir walks up from cwd (or the process working directory, when cwd
// is empty) looking for a .mediagit directory, returning the worktree root
// and the .mediagit directory path.
func FindRepoDir(cwd string) (worktree string, gitDir string, err error) {
	if len(cwd) == 0 {
		if cwd, err = os.Getwd(); err != nil {
			return "", "", err
		}
	}
	current, err := filepath.Abs(cwd)
	if err != nil {
		return "", "", err
	}
	for {
		candidate := filepath.Join(current, repository.DotDir)
		if info, statErr := os.Stat(candidate); statErr == nil && info.IsDir() {
			return current, candidate, nil
		}
		parent := filepath.Dir(current)
		if current == parent {
			return "", "", &ErrNotRepository{CWD: cwd}
		}
		current = parent
	}
}

// ErrExitCode carries a process exit code chosen by a command, surfaced by
// main() after cobra returns the error up the command tree.
type ErrExitCode struct {
	ExitCode int
	Message  string
}

func (e *ErrExitCode) Error() string { return e.Message }

func IsExitCode(err error, code int) bool {
	e, ok := err.(*ErrExitCode)
	return ok && e.ExitCode == code
}
