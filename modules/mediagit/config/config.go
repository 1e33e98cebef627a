// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package config implements the layered TOML configuration read by the CLI
// and repository packages: a system file, a per-user global file, and a
// per-repository local file, each overwriting the fields set by the one
// before it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	EnvConfigSystem = "MEDIAGIT_CONFIG_SYSTEM"
	LocalFileName   = "config.toml"
	GlobalFileName  = "~/.mediagitconfig.toml"
)

var ErrKeyNotFound = errors.New("key not found")

// ErrBadConfigKey is returned when a dotted key passed to Get/Set does not
// map onto a known section.field pair.
type ErrBadConfigKey struct {
	Key string
}

func (err *ErrBadConfigKey) Error() string {
	return fmt.Sprintf("bad mediagit config key '%s'", err.Key)
}

func IsErrBadConfigKey(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*ErrBadConfigKey)
	return ok
}

func overwrite(a, b string) string {
	if len(b) != 0 {
		return b
	}
	return a
}

// User identifies the author/committer recorded on new commits (§4.8).
type User struct {
	Name  string `toml:"name,omitempty"`
	Email string `toml:"email,omitempty"`
}

func (u *User) Empty() bool {
	return u == nil || len(u.Name) == 0 || len(u.Email) == 0
}

func (u *User) Overwrite(o *User) {
	u.Name = overwrite(u.Name, o.Name)
	u.Email = overwrite(u.Email, o.Email)
}

// Core holds the per-repository defaults the engine consults: the default
// branch (§4.9's Mainline), the remote used by push/pull's transport (§6),
// and the storage tier backend.Database picks for new objects (§4.4).
type Core struct {
	DefaultBranch   string `toml:"defaultBranch,omitempty"`
	Remote          string `toml:"remote,omitempty"`
	CompressionTier string `toml:"compressionTier,omitempty"`
	CacheBytes      int64  `toml:"cacheBytes,omitzero"`
}

func (c *Core) Overwrite(o *Core) {
	c.DefaultBranch = overwrite(c.DefaultBranch, o.DefaultBranch)
	c.Remote = overwrite(c.Remote, o.Remote)
	c.CompressionTier = overwrite(c.CompressionTier, o.CompressionTier)
	if o.CacheBytes > 0 {
		c.CacheBytes = o.CacheBytes
	}
}

type Config struct {
	Core Core `toml:"core,omitempty"`
	User User `toml:"user,omitempty"`
}

// Overwrite applies co's non-zero fields on top of c, co being the
// higher-precedence layer (global over system, local over global).
func (c *Config) Overwrite(co *Config) {
	c.Core.Overwrite(&co.Core)
	c.User.Overwrite(&co.User)
}

func configSystemPath() string {
	if p, ok := os.LookupEnv(EnvConfigSystem); ok {
		return p
	}
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	prefix := filepath.Dir(exe)
	if filepath.Base(prefix) == "bin" {
		prefix = filepath.Dir(prefix)
	}
	return filepath.Join(prefix, "etc", "mediagit.toml")
}

func expandUser(p string) string {
	if p == "~" || len(p) == 0 {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return home
	}
	if len(p) >= 2 && p[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, p[2:])
	}
	return p
}

func LoadSystem() (*Config, error) {
	systemPath := configSystemPath()
	if len(systemPath) == 0 {
		return nil, os.ErrNotExist
	}
	var cfg Config
	if _, err := os.Stat(systemPath); err != nil {
		return nil, err
	}
	if _, err := toml.DecodeFile(systemPath, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LoadGlobal() (*Config, error) {
	var cfg Config
	userPath := expandUser(GlobalFileName)
	if _, err := os.Stat(userPath); err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, err
	}
	if _, err := toml.DecodeFile(userPath, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadBaseline layers the global config over the system config.
func LoadBaseline() (*Config, error) {
	gc, err := LoadGlobal()
	if err != nil {
		return nil, err
	}
	sc, err := LoadSystem()
	if os.IsNotExist(err) {
		return gc, nil
	}
	if err != nil {
		return nil, err
	}
	sc.Overwrite(gc)
	return sc, nil
}

// Load layers the repository-local config (gitDir/config.toml) over the
// system+global baseline. gitDir may be empty, in which case only the
// baseline is returned.
func Load(gitDir string) (*Config, error) {
	cfg, err := LoadBaseline()
	if err != nil {
		return nil, err
	}
	if len(gitDir) == 0 {
		return cfg, nil
	}
	localPath := filepath.Join(gitDir, LocalFileName)
	if _, err := os.Stat(localPath); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	var rc Config
	if _, err := toml.DecodeFile(localPath, &rc); err != nil {
		return nil, err
	}
	cfg.Overwrite(&rc)
	return cfg, nil
}

func atomicEncode(path string, a any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmpPath := filepath.Join(dir, fmt.Sprintf(".mediagit-config-%d.toml", time.Now().UnixNano()))
	if err := func() error {
		fd, err := os.Create(tmpPath)
		if err != nil {
			return err
		}
		defer fd.Close()
		enc := toml.NewEncoder(fd)
		enc.Indent = ""
		return enc.Encode(a)
	}(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

// UpdateOptions names the destination layer and the values Set should apply.
type UpdateOptions struct {
	Global bool
	Values map[string]any
}

// SaveLocal persists cfg to gitDir/config.toml.
func SaveLocal(gitDir string, cfg *Config) error {
	return atomicEncode(filepath.Join(gitDir, LocalFileName), cfg)
}

// SaveGlobal persists cfg to the per-user config file.
func SaveGlobal(cfg *Config) error {
	return atomicEncode(expandUser(GlobalFileName), cfg)
}

// Get resolves a dotted key (e.g. "user.name", "core.remote") against cfg.
func Get(cfg *Config, key string) (string, error) {
	switch key {
	case "user.name":
		return cfg.User.Name, nil
	case "user.email":
		return cfg.User.Email, nil
	case "core.defaultBranch":
		return cfg.Core.DefaultBranch, nil
	case "core.remote":
		return cfg.Core.Remote, nil
	case "core.compressionTier":
		return cfg.Core.CompressionTier, nil
	default:
		return "", &ErrBadConfigKey{Key: key}
	}
}

// Set applies a dotted key/value pair to cfg in place.
func Set(cfg *Config, key, value string) error {
	switch key {
	case "user.name":
		cfg.User.Name = value
	case "user.email":
		cfg.User.Email = value
	case "core.defaultBranch":
		cfg.Core.DefaultBranch = value
	case "core.remote":
		cfg.Core.Remote = value
	case "core.compressionTier":
		cfg.Core.CompressionTier = value
	default:
		return &ErrBadConfigKey{Key: key}
	}
	return nil
}
