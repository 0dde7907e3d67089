// Package config loads and validates snaptest configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	snaperrors "snaptest/internal/errors"
	"snaptest/internal/version"
)

// Configuration keys.
const (
	KeyOutputDir  = "output_dir"
	KeySources    = "sources"
	KeyShell      = "shell"
	KeyWorkDir    = "workdir"
	KeyScratchDir = "scratch_dir"
	KeyTimeout    = "timeout"
	KeyEnvFile    = "env_file"
	KeyRequires   = "requires"
)

// Default configuration values
const (
	DefaultConfigName = ".snaptest"
	DefaultShell      = "sh"
	EnvPrefix         = "SNAPTEST_CFG"
)

// Config holds the resolved snaptest configuration. All paths are absolute.
type Config struct {
	// File is the config file that was read, empty when none was found.
	File       string
	OutputDir  string
	Sources    []string
	Shell      string
	WorkDir    string
	ScratchDir string
	Timeout    time.Duration
	EnvFile    string
	// Env holds the variables read from EnvFile.
	Env map[string]string
	// Requires is a semver constraint the running snaptest must satisfy.
	Requires string
}

// NewViper returns a viper instance with snaptest defaults and environment
// bindings (SNAPTEST_CFG_OUTPUT_DIR, SNAPTEST_CFG_SOURCES, ...).
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyShell, DefaultShell)
	v.SetDefault(KeyTimeout, "0s")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	return v
}

// Load reads the config file at path, or searches for .snaptest.{yaml,yml,json,toml}
// in the working directory when path is empty, then validates the result.
// Relative paths in the file are resolved against the file's directory.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, snaperrors.Wrap(snaperrors.EConfig, "cannot read config file", err)
		}
	}

	baseDir, err := os.Getwd()
	if err != nil {
		return nil, snaperrors.Wrap(snaperrors.EConfig, "cannot determine working directory", err)
	}
	cfg := &Config{}
	if used := v.ConfigFileUsed(); used != "" {
		abs, err := filepath.Abs(used)
		if err != nil {
			return nil, snaperrors.Wrap(snaperrors.EConfig, "cannot resolve config path", err)
		}
		cfg.File = abs
		baseDir = filepath.Dir(abs)
	}

	if err := cfg.resolve(v, baseDir); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) resolve(v *viper.Viper, baseDir string) error {
	var err error

	if c.Requires = v.GetString(KeyRequires); c.Requires != "" {
		if err := version.Satisfies(c.Requires); err != nil {
			return configError(KeyRequires, "version requirement not met", err)
		}
	}

	if c.OutputDir, err = requireDir(v, KeyOutputDir, baseDir, ""); err != nil {
		return err
	}

	sources := v.GetStringSlice(KeySources)
	if len(sources) == 0 {
		return configError(KeySources, "at least one definition source is required", nil)
	}
	for _, src := range sources {
		abs := absPath(baseDir, src)
		info, statErr := os.Stat(abs)
		if statErr != nil {
			return configError(KeySources, "definition source "+abs+" does not exist", statErr)
		}
		if info.IsDir() {
			return configError(KeySources, "definition source "+abs+" is a directory", nil)
		}
		c.Sources = append(c.Sources, abs)
	}

	c.Shell = v.GetString(KeyShell)
	if c.Shell == "" {
		c.Shell = DefaultShell
	}

	if c.WorkDir, err = requireDir(v, KeyWorkDir, baseDir, baseDir); err != nil {
		return err
	}
	if c.ScratchDir, err = requireDir(v, KeyScratchDir, baseDir, os.TempDir()); err != nil {
		return err
	}

	c.Timeout = v.GetDuration(KeyTimeout)
	if c.Timeout < 0 {
		return configError(KeyTimeout, fmt.Sprintf("timeout must not be negative, got %s", c.Timeout), nil)
	}

	if envFile := v.GetString(KeyEnvFile); envFile != "" {
		c.EnvFile = absPath(baseDir, envFile)
		c.Env, err = godotenv.Read(c.EnvFile)
		if err != nil {
			return configError(KeyEnvFile, "cannot read env file "+c.EnvFile, err)
		}
	}

	return nil
}

// requireDir resolves key to an absolute existing directory. An empty value
// falls back to def; an empty def makes the key mandatory.
func requireDir(v *viper.Viper, key, baseDir, def string) (string, error) {
	raw := v.GetString(key)
	if raw == "" {
		if def == "" {
			return "", configError(key, key+" is required", nil)
		}
		raw = def
	}

	dir := absPath(baseDir, raw)
	info, err := os.Stat(dir)
	if err != nil {
		return "", configError(key, dir+" does not exist", err)
	}
	if !info.IsDir() {
		return "", configError(key, dir+" is not a directory", nil)
	}
	return dir, nil
}

func absPath(baseDir, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(baseDir, p)
}

func configError(key, msg string, cause error) error {
	return snaperrors.WrapWithDetails(snaperrors.EConfig, msg, cause, map[string]string{"key": key})
}
