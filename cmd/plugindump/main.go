// cmd/plugindump/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	slogcontext "github.com/veqryn/slog-context"
	"gopkg.in/yaml.v3"

	"github.com/sghaida/plugdi/config"
	"github.com/sghaida/plugdi/plugin"
)

// This binary prints plugin metadata.
//
// It has two sources:
// - cache files given as arguments, merged in argument order (first key wins)
// - a configuration file (-config), in which case the plugin registry of that
//   configuration is built and every namespace it knows is printed
//
// Output is YAML by default or TOML with -format toml.

// Dump is the printed document.
type Dump struct {
	Namespaces []NamespaceDump `yaml:"namespaces" toml:"namespaces"`
}

// NamespaceDump lists the plugins of one namespace in key order.
type NamespaceDump struct {
	Name    string       `yaml:"name" toml:"name"`
	Plugins []PluginDump `yaml:"plugins" toml:"plugins"`
}

// PluginDump is one entry.
type PluginDump struct {
	Key       string `yaml:"key" toml:"key"`
	Name      string `yaml:"name" toml:"name"`
	Class     string `yaml:"class" toml:"class"`
	Element   string `yaml:"element" toml:"element"`
	Printable bool   `yaml:"printable,omitempty" toml:"printable,omitempty"`
	Defer     bool   `yaml:"defer,omitempty" toml:"defer,omitempty"`
	Priority  *int32 `yaml:"priority,omitempty" toml:"priority,omitempty"`
}

func pluginDump(e plugin.Entry) PluginDump {
	d := PluginDump{
		Key:       e.Key,
		Name:      e.Name,
		Class:     e.ClassName,
		Element:   e.ElementName(),
		Printable: e.Printable,
		Defer:     e.DeferChildren,
	}
	if v, ok := e.Priority.Value(); ok {
		d.Priority = &v
	}
	return d
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("plugindump", flag.ContinueOnError)
	flags.SetOutput(stderr)

	configPath := flags.String("config", "", "configuration file (.yaml, .yml or .toml)")
	format := flags.String("format", "yaml", "output format: yaml or toml")
	namespace := flags.String("namespace", "", "print only this namespace")

	if err := flags.Parse(args); err != nil {
		return 2
	}

	if (*configPath == "") == (flags.NArg() == 0) {
		_, _ = fmt.Fprintln(stderr, "usage: plugindump [-format yaml|toml] [-namespace name] (-config <file> | <cache file>...)")
		return 2
	}

	var (
		dump Dump
		err  error
	)
	if *configPath != "" {
		dump, err = fromConfig(*configPath, stderr)
	} else {
		dump, err = fromFiles(flags.Args())
	}
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "plugindump:", err)
		return 1
	}
	dump = dump.only(*namespace)

	if err := write(stdout, *format, dump); err != nil {
		_, _ = fmt.Fprintln(stderr, "plugindump:", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// fromFiles decodes and merges cache files.
func fromFiles(paths []string) (Dump, error) {
	merged := plugin.NewCache()
	for _, p := range paths {
		one, err := decodeFile(p)
		if err != nil {
			return Dump{}, err
		}
		merged.Merge(one)
	}

	var d Dump
	for _, name := range merged.Namespaces() {
		ns := NamespaceDump{Name: name}
		for _, e := range merged.Entries(name) {
			ns.Plugins = append(ns.Plugins, pluginDump(e))
		}
		d.Namespaces = append(d.Namespaces, ns)
	}
	return d.sorted(), nil
}

func decodeFile(path string) (*plugin.Cache, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c := plugin.NewCache()
	if err := c.Decode(f); err != nil {
		return nil, plugin.DecodeError{Resource: path, Err: err}
	}
	return c, nil
}

// fromConfig builds the registry described by a configuration file and dumps
// every namespace it finds, including the configured packages.
func fromConfig(path string, stderr io.Writer) (Dump, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return Dump{}, err
	}
	log, err := cfg.Log.NewLogger(stderr)
	if err != nil {
		return Dump{}, err
	}
	ctx := slogcontext.NewCtx(context.Background(), log)

	loader, err := cfg.NewLoader()
	if err != nil {
		return Dump{}, err
	}
	defer loader.Close()

	reg := cfg.NewRegistry(loader)
	for _, pkg := range cfg.Registry.Packages {
		reg.LoadPackage(ctx, pkg)
	}

	var d Dump
	for _, name := range reg.Namespaces(ctx) {
		ns := NamespaceDump{Name: name}
		for _, t := range reg.GetNamespace(ctx, name, cfg.Registry.Packages).Types() {
			ns.Plugins = append(ns.Plugins, pluginDump(t.Entry()))
		}
		d.Namespaces = append(d.Namespaces, ns)
	}
	return d.sorted(), nil
}

func (d Dump) sorted() Dump {
	slices.SortFunc(d.Namespaces, func(a, b NamespaceDump) int {
		return strings.Compare(plugin.NormalizeKey(a.Name), plugin.NormalizeKey(b.Name))
	})
	for i := range d.Namespaces {
		slices.SortFunc(d.Namespaces[i].Plugins, func(a, b PluginDump) int { return strings.Compare(a.Key, b.Key) })
	}
	return d
}

// only keeps the namespace named name; an empty name keeps all.
func (d Dump) only(name string) Dump {
	if name == "" {
		return d
	}
	for _, ns := range d.Namespaces {
		if strings.EqualFold(ns.Name, name) {
			return Dump{Namespaces: []NamespaceDump{ns}}
		}
	}
	return Dump{}
}

func write(w io.Writer, format string, d Dump) error {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(d); err != nil {
			return err
		}
		return enc.Close()
	case "toml":
		return toml.NewEncoder(w).Encode(d)
	}
	return errors.New("unknown format " + strconv.Quote(format))
}
