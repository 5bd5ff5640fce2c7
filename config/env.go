package config

import (
	"fmt"
	"strconv"
	"strings"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PLUGDI_"

// LookupFunc reads one environment variable. os.LookupEnv is one.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides fields from environment variables read with lookup.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	if v, ok := lookup(EnvPrefix + "LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := lookup(EnvPrefix + "LOG_FORMAT"); ok {
		c.Log.Format = v
	}
	if v, ok := lookup(EnvPrefix + "DEFAULT_PACKAGE"); ok {
		c.Registry.DefaultPackage = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvPrefix + "PACKAGES"); ok {
		c.Registry.Packages = splitList(v)
	}
	if v, ok := lookup(EnvPrefix + "BUILTIN"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: %sBUILTIN: %w", EnvPrefix, err)
		}
		c.Registry.Builtin = b
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
