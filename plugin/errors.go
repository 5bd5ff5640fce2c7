package plugin

import (
	"errors"
	"strconv"
)

var (
	// ErrStringTooLong is returned by Cache.Encode for strings that do not fit
	// a uint16 length prefix.
	ErrStringTooLong = errors.New("plugin: string exceeds 65535 bytes")

	// ErrNegativeCount is returned by Cache.Decode for a negative count field.
	ErrNegativeCount = errors.New("plugin: negative count in cache")

	errNoLoader = errors.New("no type loader")
)

// ResolveError is returned when the type named by an entry cannot be loaded.
type ResolveError struct {
	Entry Entry
	Err   error
}

// Error implements the error interface.
func (e ResolveError) Error() string {
	// Example: plugin: cannot resolve "example.com/app.Console" for entry "appender:console": scan: ...
	return "plugin: cannot resolve " + strconv.Quote(e.Entry.ClassName) +
		" for entry " + strconv.Quote(e.Entry.Namespace+":"+e.Entry.Key) + ": " + e.Err.Error()
}

func (e ResolveError) Unwrap() error { return e.Err }

// DecodeError is returned when a cache resource cannot be decoded.
type DecodeError struct {
	Resource string
	Err      error
}

// Error implements the error interface.
func (e DecodeError) Error() string {
	return "plugin: decode " + strconv.Quote(e.Resource) + ": " + e.Err.Error()
}

func (e DecodeError) Unwrap() error { return e.Err }

// DirectiveError is returned for a plugin directive that cannot become an entry.
type DirectiveError struct {
	ClassName string
	Reason    string
}

// Error implements the error interface.
func (e DirectiveError) Error() string {
	return "plugin: invalid directive on " + strconv.Quote(e.ClassName) + ": " + e.Reason
}
