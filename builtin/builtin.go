package builtin

import (
	"embed"

	"github.com/sghaida/plugdi/plugin"
	"github.com/sghaida/plugdi/scan"
)

// Package is the import path of this package, the registry's default
// fallback package.
const Package = plugin.DefaultPackage

//go:embed *.go
var sources embed.FS

// Root serves the sources of this package to a scan.Loader.
func Root() scan.Root {
	return scan.Root{Name: "builtin", Prefix: Package, FS: sources}
}
