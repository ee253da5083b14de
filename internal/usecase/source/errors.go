// Package source implements the operator commands of the dashboard: create,
// start, stop, save options, search and bulk import.
package source

import "errors"

var (
	// ErrImportEmpty is returned when an import document holds no sources.
	ErrImportEmpty = errors.New("import contains no sources")

	// ErrImportFormat is returned when an import document is neither a list
	// of sources nor a mapping with a "sources" list.
	ErrImportFormat = errors.New("import must be a list of sources or a mapping with a sources key")
)
