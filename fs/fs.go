// Package fs resolves the document arguments of the command line into
// file paths.
package fs

import "errors"

// ErrNoMatch indicates a pattern matched no files.
var ErrNoMatch = errors.New("no matching files")
