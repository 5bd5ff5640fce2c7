package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/sghaida/plugdi/builtin"
	"github.com/sghaida/plugdi/plugin"
	"github.com/sghaida/plugdi/scan"
)

// Config is the root of a configuration file.
type Config struct {
	Registry RegistryConfig `yaml:"registry" toml:"registry"`
	Log      LogConfig      `yaml:"log" toml:"log"`
}

// RegistryConfig describes where plugins are found.
type RegistryConfig struct {
	// Roots are searched in order. Each names either a directory or a zip
	// archive.
	Roots []RootConfig `yaml:"roots" toml:"roots"`
	// Packages are scanned in addition to the main source on every lookup.
	Packages []string `yaml:"packages" toml:"packages"`
	// DefaultPackage is scanned when the main source is empty.
	DefaultPackage string `yaml:"default_package" toml:"default_package"`
	// Builtin adds the sources of the builtin package as the last root.
	Builtin bool `yaml:"builtin" toml:"builtin"`
}

// RootConfig is one loading root.
type RootConfig struct {
	Name    string `yaml:"name,omitempty" toml:"name,omitempty"`
	Prefix  string `yaml:"prefix" toml:"prefix"`
	Dir     string `yaml:"dir,omitempty" toml:"dir,omitempty"`
	Archive string `yaml:"archive,omitempty" toml:"archive,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Registry: RegistryConfig{
			DefaultPackage: plugin.DefaultPackage,
			Builtin:        true,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// UnsupportedFormatError is returned for a file extension Load cannot read.
type UnsupportedFormatError struct{ Path string }

// Error implements the error interface.
func (e UnsupportedFormatError) Error() string {
	return "config: unsupported format " + strings.TrimPrefix(filepath.Ext(e.Path), ".") + " of " + e.Path
}

// Load reads path on top of Default, applies environment overrides and
// validates the result. An empty path loads the defaults alone.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := cfg.decode(path, data); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) decode(path string, data []byte) error {
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".toml":
		err = toml.Unmarshal(data, c)
	default:
		return UnsupportedFormatError{Path: path}
	}
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// Validate checks the roots and the log settings.
func (c Config) Validate() error {
	var errs []error
	for i, r := range c.Registry.Roots {
		if (r.Dir == "") == (r.Archive == "") {
			errs = append(errs, fmt.Errorf("config: root %d: exactly one of dir and archive must be set", i))
		}
	}
	if _, err := c.Log.level(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Log.format(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// NewLoader builds a scan.Loader over the configured roots. The caller closes
// the loader to release archives.
func (c Config) NewLoader() (*scan.Loader, error) {
	l := scan.NewLoader()
	for _, r := range c.Registry.Roots {
		switch {
		case r.Archive != "":
			if err := l.AddArchive(r.Prefix, r.Archive); err != nil {
				return nil, errors.Join(err, l.Close())
			}
		case r.Name != "":
			l.AddRoot(scan.Root{Name: r.Name, Prefix: r.Prefix, FS: os.DirFS(r.Dir)})
		default:
			l.AddDir(r.Prefix, r.Dir)
		}
	}
	if c.Registry.Builtin {
		l.AddRoot(builtin.Root())
	}
	return l, nil
}

// NewRegistry builds a plugin registry reading loader.
func (c Config) NewRegistry(loader *scan.Loader) *plugin.Registry {
	return plugin.NewRegistry(loader, plugin.WithDefaultPackage(c.Registry.DefaultPackage))
}
