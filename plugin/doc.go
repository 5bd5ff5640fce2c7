// Package plugin holds plugin metadata and the registry that merges it.
//
// An Entry describes one plugin: its lookup key, display name, the
// fully-qualified name of its type, its namespace and a few flags. A Type
// pairs an Entry with a lazily resolved reflect.Type. A Namespace maps keys to
// types and resolves conflicts by priority: lower declared priority wins,
// absent priority sorts last, ties keep the entry already present.
//
// Entries reach the Registry from three sources that are kept apart:
//
//   - the main source: registered Services plus every binary cache resource
//     (CacheResource) visible to the loader, computed once; when it is empty
//     the default package is scanned instead
//   - modules added and removed at runtime under their own ModuleID
//   - extra packages named by the caller, each scanned once
//
// GetNamespace merges the three into a fresh Namespace on every call, so
// callers may keep the result without seeing later changes.
package plugin
