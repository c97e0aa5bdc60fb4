// Package errs re-exports github.com/cockroachdb/errors and defines the error
// kinds callers are expected to tell apart.
//
//	if errs.Is(err, errs.ErrInputNotFound) {
//	    // print a one-line message instead of the raw fault
//	}
package errs

import (
	crdb "github.com/cockroachdb/errors"
)

var (
	New      = crdb.New
	Newf     = crdb.Newf
	Wrap     = crdb.Wrap
	Wrapf    = crdb.Wrapf
	Mark     = crdb.Mark
	WithHint = crdb.WithHint
)

var (
	Is           = crdb.Is
	As           = crdb.As
	GetAllHints  = crdb.GetAllHints
	FlattenHints = crdb.FlattenHints
)

var (
	// ErrInputNotFound marks a metadata input (assembly or snapshot) that does not exist.
	ErrInputNotFound = crdb.New("input not found")

	// ErrTypeNotFound is returned when the error sink asks to abort on an
	// unresolved type reference.
	ErrTypeNotFound = crdb.New("type not found")

	// ErrUnsupportedInput marks an input whose format no provider understands.
	ErrUnsupportedInput = crdb.New("unsupported input")

	// ErrDownload marks a failed metadata download.
	ErrDownload = crdb.New("metadata download failed")
)
