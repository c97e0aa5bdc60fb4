package generation

import (
	_ "embed"
	"io"

	"gotsd/internal/config"
	"gotsd/internal/errs"
	"gotsd/internal/logger"
	"gotsd/internal/metadata"
)

// Preamble declares the library shapes generated declarations rely on, such
// as the promise type returned by async operations.
//
//go:embed preamble.d.ts
var Preamble string

// Result is the outcome of rendering a set of inputs.
type Result struct {
	Document   string
	Namespaces []RenderedNamespace
}

// FromAssemblies loads every input, renders them as one document and writes
// it to w. Inputs naming the same file (ignoring case) are loaded once. When
// the error sink aborts, the blocks completed before the abort are still
// written and the returned error is marked errs.ErrTypeNotFound.
func FromAssemblies(paths []string, cfg config.Config, w io.Writer, options ...Option) (Result, error) {
	collection, err := NewTypeCollection(cfg, options...)
	if err != nil {
		return Result{}, err
	}

	loaded := make(map[string]bool)
	for _, path := range paths {
		key := assemblyKey(path)
		if loaded[key] {
			continue
		}
		loaded[key] = true

		assembly, err := metadata.Open(path)
		if err != nil {
			return Result{}, err
		}
		collection.log.Debugw("Loaded input", logger.FieldPath, path, logger.FieldCount, len(assembly.Types))
		collection.AddAssembly(assembly)
	}

	namespaces, renderErr := collection.RenderNamespaces()
	result := Result{Document: collection.document(namespaces), Namespaces: namespaces}
	if _, err := io.WriteString(w, result.Document); err != nil {
		return result, errs.Wrap(err, "failed to write declarations")
	}
	return result, renderErr
}
