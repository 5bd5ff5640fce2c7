package scan

import (
	"errors"
	"strconv"
)

// ErrNoRoots is returned by Loader.AddArchive when the archive cannot serve as a root.
var ErrNoRoots = errors.New("scan: archive is not a usable root")

// TypeNotFoundError is returned when a fully-qualified type name is not in
// the loader's type table.
type TypeNotFoundError struct{ Name string }

// Error implements the error interface.
func (e TypeNotFoundError) Error() string {
	// Example: scan: type "github.com/acme/app.Console" not found
	return "scan: type " + strconv.Quote(e.Name) + " not found"
}

// DirectiveError reports a malformed directive line.
type DirectiveError struct {
	Line   string
	Reason string
}

// Error implements the error interface.
func (e DirectiveError) Error() string {
	return "scan: malformed directive " + strconv.Quote(e.Line) + ": " + e.Reason
}
