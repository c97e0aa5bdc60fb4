package generation

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/dave/jennifer/jen"

	"gotsd/internal"
	"gotsd/internal/errs"
)

// Generator emits a Go source file that embeds rendered declarations, so a Go
// program can ship them without reading files at runtime.
type Generator struct {
	Namespaces  []RenderedNamespace
	Document    string
	PackageName string
	OutputPath  string
}

func NewGenerator(packageName string, outputPath string) Generator {
	return Generator{
		Namespaces:  make([]RenderedNamespace, 0),
		PackageName: packageName,
		OutputPath:  outputPath,
	}
}

// RegisterResult records the output of a render.
func (generator *Generator) RegisterResult(result Result) {
	generator.Document = result.Document
	generator.Namespaces = append(generator.Namespaces, result.Namespaces...)
}

// File builds the Go file: the whole document as a constant, every namespace
// block in a map, and the namespace names in render order.
func (generator *Generator) File() *jen.File {
	file := jen.NewFile(generator.PackageName)
	file.HeaderComment("Code generated by gotsd. DO NOT EDIT.")

	file.Comment("Declarations is the complete rendered declaration document.")
	file.Const().Id("Declarations").Op("=").Lit(generator.Document)
	file.Line()

	file.Comment("NamespaceOrder lists the rendered namespaces in document order.")
	file.Var().Id("NamespaceOrder").Op("=").Index().String().ValuesFunc(func(g *jen.Group) {
		for _, ns := range generator.Namespaces {
			g.Lit(ns.Name)
		}
	})
	file.Line()

	file.Comment("Namespaces maps a namespace name to its declaration block.")
	file.Var().Id("Namespaces").Op("=").Map(jen.String()).String().Values(jen.DictFunc(func(d jen.Dict) {
		for _, ns := range generator.Namespaces {
			d[jen.Lit(ns.Name)] = jen.Lit(ns.Text)
		}
	}))
	return file
}

// Source renders the Go file to a string.
func (generator *Generator) Source() string {
	var buffer bytes.Buffer
	// the file is built only from literals, so formatting cannot fail
	internal.PanicOnError(generator.File().Render(&buffer))
	return buffer.String()
}

// Generate writes the Go file to OutputPath, creating its directory.
func (generator *Generator) Generate() error {
	dir := filepath.Dir(generator.OutputPath)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return errs.Wrapf(err, "failed to create %s", dir)
	}
	if err := generator.File().Save(generator.OutputPath); err != nil {
		return errs.Wrapf(err, "failed to write %s", generator.OutputPath)
	}
	return nil
}
