// Command plugincache writes the binary plugin cache of a source tree.
//
// It scans Go sources for //plugdi:plugin directives and writes every entry
// found to plugdi/plugins.dat, the resource a plugin.Registry reads before
// falling back to package scanning. Namespaces and keys are sorted, so the
// same sources always produce the same bytes.
//
// Usage:
//
//	plugincache [-dir .] [-prefix import/path] [-pkg pkg,...] [-out file] [-log-level warn]
//
// When -prefix is empty the import path of -dir is derived from the nearest
// go.mod. -pkg defaults to the prefix itself, which scans the whole tree.
//
// Typical go:generate usage, from the package that owns the plugins:
//
//	//go:generate go run github.com/sghaida/plugdi/cmd/plugincache -dir .
//
// A malformed directive fails the run and nothing is written. Duplicate keys
// within a namespace keep the first entry in type-name order and are logged.
package main
