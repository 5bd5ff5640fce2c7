// Package builtin holds the plugins that are always available.
//
// The registry falls back to scanning this package when no precompiled
// plugin cache and no registered service contribute anything. The package
// ships its own sources through embed.FS so that the scan works in a binary
// built far away from the source tree:
//
//	loader := scan.NewLoader(scan.WithRoots(builtin.Root()))
//	reg := plugin.NewRegistry(loader)
package builtin
