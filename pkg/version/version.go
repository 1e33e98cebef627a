// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package version holds build-time version metadata, set via -ldflags at
// release build time and left empty for local/dev builds.
package version

import (
	"fmt"
	"os"
	"path/filepath"
)

var (
	version     string
	buildCommit string
	buildTime   string
)

// GetVersionString returns a standard version header for --version output.
func GetVersionString() string {
	return fmt.Sprintf("%s %v (%s), built %v", filepath.Base(os.Args[0]), version, buildCommit, buildTime)
}

func GetVersion() string {
	return version
}

func GetBuildCommit() string {
	return buildCommit
}
