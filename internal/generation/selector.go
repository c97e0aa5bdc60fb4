package generation

import (
	"strings"

	"gotsd/internal/errs"
	"gotsd/internal/metadata"
)

// Selector picks the TypeWriter for a declaration's kind.
type Selector struct {
	writers map[metadata.Kind]TypeWriter
}

func NewSelector() *Selector {
	return &Selector{writers: map[metadata.Kind]TypeWriter{
		metadata.KindClass:       classWriter{keyword: "class"},
		metadata.KindInterface:   classWriter{keyword: "interface"},
		metadata.KindEnum:        enumWriter{},
		metadata.KindDelegate:    delegateWriter{},
		metadata.KindSynthesized: synthesizedWriter{},
	}}
}

// PickTypeWriter returns the writer for t. Kinds are a closed set, so an
// unknown kind is a programming error upstream.
func (s *Selector) PickTypeWriter(t *metadata.TypeDecl) (TypeWriter, error) {
	writer, found := s.writers[t.Kind]
	if !found {
		return nil, errs.Newf("no type writer for kind %q of %s", t.Kind, t.FullName())
	}
	return writer, nil
}

// Write renders t with the writer picked for its kind.
func (s *Selector) Write(sb *strings.Builder, t *metadata.TypeDecl, ctx *renderContext) error {
	writer, err := s.PickTypeWriter(t)
	if err != nil {
		return err
	}
	return writer.Write(sb, t, ctx)
}
