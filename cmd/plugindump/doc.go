// Command plugindump prints plugin metadata as YAML or TOML.
//
// Given cache files, it decodes and merges them in argument order, the first
// file defining a key winning, the way a registry merges the caches of its
// roots:
//
//	plugindump plugdi/plugins.dat vendor/plugdi/plugins.dat
//
// Given a configuration file, it builds the registry that configuration
// describes, scans the configured packages, and prints every namespace the
// registry knows after priority merging:
//
//	plugindump -config plugdi.yaml -namespace appender
//
// Exit status is 2 for usage errors and 1 for everything else that fails.
package main
