// Package scan discovers plugin candidates across loading roots.
//
// A Loader plays the part of a class loader: it owns an ordered list of
// roots (directories, zip archives, embedded file systems) holding Go package
// sources, plus a type table that maps fully-qualified type names
// ("import/path.TypeName") to reflect.Type values. Packages that ship plugins
// fill the process type table from init:
//
//	func init() {
//		scan.Register[ConsoleAppender]()
//	}
//
// Type declarations are annotated with directive comments:
//
//	//plugdi:plugin name=Console namespace=Appender printable
//	type ConsoleAppender struct{ ... }
//
// A Scanner walks the package directories of every root, parses the sources
// with go/parser and runs a Test against each declared type and each non-Go
// resource. Failures on a single file or type are logged and skipped.
package scan
