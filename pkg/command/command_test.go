// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestInitAddCommitStatusLogFlow(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", t.TempDir())

	_, err := runCLI(t, "--cwd", dir, "init", dir)
	require.NoError(t, err)
	require.DirExists(t, filepath.Join(dir, ".mediagit"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644))
	_, err = runCLI(t, "--cwd", dir, "add", filepath.Join(dir, "a.txt"))
	require.NoError(t, err)

	statusOut, err := runCLI(t, "--cwd", dir, "status")
	require.NoError(t, err)
	require.Contains(t, statusOut, "a.txt")

	_, err = runCLI(t, "--cwd", dir, "config", "user.name", "tester")
	require.NoError(t, err)
	_, err = runCLI(t, "--cwd", dir, "config", "user.email", "tester@example.com")
	require.NoError(t, err)

	commitOut, err := runCLI(t, "--cwd", dir, "commit", "-m", "initial commit")
	require.NoError(t, err)
	require.Contains(t, commitOut, "created commit")

	logOut, err := runCLI(t, "--cwd", dir, "log")
	require.NoError(t, err)
	require.Contains(t, logOut, "initial commit")

	cleanStatus, err := runCLI(t, "--cwd", dir, "status")
	require.NoError(t, err)
	require.Contains(t, cleanStatus, "nothing to commit")
}

func TestCommitWithoutMessageFails(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", t.TempDir())

	_, err := runCLI(t, "--cwd", dir, "init", dir)
	require.NoError(t, err)

	_, err = runCLI(t, "--cwd", dir, "commit")
	require.Error(t, err)
}

func TestCommitWithoutIdentityFails(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", t.TempDir())

	_, err := runCLI(t, "--cwd", dir, "init", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644))
	_, err = runCLI(t, "--cwd", dir, "add", filepath.Join(dir, "a.txt"))
	require.NoError(t, err)

	_, err = runCLI(t, "--cwd", dir, "commit", "-m", "no identity set")
	require.Error(t, err)
}

func TestConfigGlobalRoundtrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", t.TempDir())

	_, err := runCLI(t, "--cwd", dir, "init", dir)
	require.NoError(t, err)

	_, err = runCLI(t, "config", "--global", "user.name", "global-tester")
	require.NoError(t, err)

	out, err := runCLI(t, "config", "--global", "user.name")
	require.NoError(t, err)
	require.Contains(t, out, "global-tester")
}
