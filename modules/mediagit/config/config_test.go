package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOverwritePrefersOtherNonEmptyFields(t *testing.T) {
	base := &Config{Core: Core{DefaultBranch: "mainline", Remote: "origin"}, User: User{Name: "a", Email: "a@example.com"}}
	layer := &Config{Core: Core{Remote: "upstream"}, User: User{Email: "b@example.com"}}

	base.Overwrite(layer)

	require.Equal(t, "mainline", base.Core.DefaultBranch)
	require.Equal(t, "upstream", base.Core.Remote)
	require.Equal(t, "a", base.User.Name)
	require.Equal(t, "b@example.com", base.User.Email)
}

func TestSaveLocalThenLoadRoundtrips(t *testing.T) {
	gitDir := t.TempDir()
	cfg := &Config{Core: Core{DefaultBranch: "mainline"}, User: User{Name: "tester", Email: "tester@example.com"}}
	require.NoError(t, SaveLocal(gitDir, cfg))
	require.FileExists(t, filepath.Join(gitDir, LocalFileName))

	loaded, err := Load(gitDir)
	require.NoError(t, err)
	require.Equal(t, "tester", loaded.User.Name)
	require.Equal(t, "mainline", loaded.Core.DefaultBranch)
}

func TestLoadWithMissingLocalFileFallsBackToBaseline(t *testing.T) {
	loaded, err := Load(t.TempDir())
	require.NoError(t, err)
	require.Empty(t, loaded.User.Name)
}

func TestGetAndSetKnownKeys(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, Set(cfg, "user.name", "tester"))
	require.NoError(t, Set(cfg, "core.remote", "origin"))

	name, err := Get(cfg, "user.name")
	require.NoError(t, err)
	require.Equal(t, "tester", name)

	remote, err := Get(cfg, "core.remote")
	require.NoError(t, err)
	require.Equal(t, "origin", remote)
}

func TestGetAndSetRejectUnknownKey(t *testing.T) {
	cfg := &Config{}
	err := Set(cfg, "bogus.key", "x")
	require.True(t, IsErrBadConfigKey(err))

	_, err = Get(cfg, "bogus.key")
	require.True(t, IsErrBadConfigKey(err))
}

func TestUserEmptyRequiresBothFields(t *testing.T) {
	u := &User{Name: "tester"}
	require.True(t, u.Empty())
	u.Email = "tester@example.com"
	require.False(t, u.Empty())
}
