// Package plugdi discovers plugins and wires them with dependency injection.
//
// The repository is layered:
//
//   - scan: roots (directories, zip archives, embedded sources) served as one
//     classpath-like view, and a scanner finding type declarations carrying
//     //plugdi: directives
//   - plugin: plugin metadata, the binary plugin cache, namespaces and the
//     registry merging cached, module and scanned plugins by priority
//   - di: classes, beans, scopes, producers and disposers, Provider[T], and
//     the Manager validating and initializing a bean graph
//   - builtin: the default plugin package (Property, Properties, Console)
//   - config: YAML/TOML/env configuration building loaders, registries and
//     loggers
//
// Commands:
//   - cmd/plugincache: writes plugdi/plugins.dat for a source tree
//   - cmd/plugindump: prints caches or a configured registry as YAML or TOML
//
// See examples/checkout for an end-to-end program.
package plugdi
