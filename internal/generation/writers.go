package generation

import (
	"fmt"
	"strings"

	"gotsd/internal/config"
	"gotsd/internal/metadata"
)

// renderContext is threaded through every writer of one render pass. The
// mapper carries the sticky abort error; level is the indentation depth of
// the type being written.
type renderContext struct {
	cfg      config.Config
	mapper   *Mapper
	selector *Selector
	level    int
}

func (ctx *renderContext) indent() string {
	return strings.Repeat(ctx.cfg.Indentation, ctx.level)
}

func (ctx *renderContext) memberIndent() string {
	return strings.Repeat(ctx.cfg.Indentation, ctx.level+1)
}

func (ctx *renderContext) nested() *renderContext {
	child := *ctx
	child.level++
	return &child
}

// TypeWriter renders one type declaration into sb.
type TypeWriter interface {
	Write(sb *strings.Builder, t *metadata.TypeDecl, ctx *renderContext) error
}

// classWriter renders classes and interfaces. They differ only in the keyword
// and in how implemented interfaces are introduced.
type classWriter struct {
	keyword string
}

func (w classWriter) Write(sb *strings.Builder, t *metadata.TypeDecl, ctx *renderContext) error {
	indent := ctx.indent()
	mapper := ctx.mapper

	header := []string{"export", w.keyword, TypeName(t.Name) + mapper.GenericParams(t.GenericParams)}
	interfaceKeyword := "extends"
	if w.keyword == "class" {
		interfaceKeyword = "implements"
		if t.Base != nil && !ShouldIgnoreTypeByName(t.Base.Name) {
			header = append(header, "extends", mapper.MapTypeRef(*t.Base))
		}
	}
	var interfaces []string
	for _, iface := range t.Interfaces {
		if !ShouldIgnoreTypeByName(iface.Name) {
			interfaces = append(interfaces, mapper.MapTypeRef(iface))
		}
	}
	if len(interfaces) > 0 {
		header = append(header, interfaceKeyword, strings.Join(interfaces, ", "))
	}
	sb.WriteString(indent + strings.Join(header, " ") + " {\n")

	emitted := writeFields(sb, t, ctx)
	writeProperties(sb, t, ctx, emitted)

	var synthesized []*metadata.TypeDecl
	methods := newLineSet()
	methodLines(t, ctx, methods, &synthesized)
	injectMethods(t, ctx, methods)
	methods.WriteTo(sb)

	writeEvents(sb, t, ctx)
	writeExtensions(sb, t, ctx, emitted)
	sb.WriteString(indent + "}\n")

	for _, outType := range synthesized {
		sb.WriteString("\n")
		if err := ctx.selector.Write(sb, outType, ctx); err != nil {
			return err
		}
	}

	if err := writeNestedTypes(sb, t, ctx); err != nil {
		return err
	}
	return mapper.Err()
}

// writeNestedTypes renders public nested types in a namespace merged with
// their owner, one level deeper.
func writeNestedTypes(sb *strings.Builder, t *metadata.TypeDecl, ctx *renderContext) error {
	var nested []*metadata.TypeDecl
	for _, inner := range t.NestedTypes {
		if inner.IsPublic() && !ShouldIgnoreTypeByName(inner.Name) {
			nested = append(nested, inner)
		}
	}
	if len(nested) == 0 {
		return nil
	}

	indent := ctx.indent()
	sb.WriteString("\n")
	sb.WriteString(indent + "export namespace " + TypeName(t.Name) + " {\n")
	inner := ctx.nested()
	for i, decl := range nested {
		if i > 0 {
			sb.WriteString("\n")
		}
		if err := ctx.selector.Write(sb, decl, inner); err != nil {
			return err
		}
	}
	sb.WriteString(indent + "}\n")
	return nil
}

type enumWriter struct{}

func (enumWriter) Write(sb *strings.Builder, t *metadata.TypeDecl, ctx *renderContext) error {
	sb.WriteString(ctx.indent() + "export enum " + TypeName(t.Name) + " {\n")
	indent := ctx.memberIndent()
	for _, field := range t.Fields {
		// value__ is the storage field of the enum, not an entry
		if field.SpecialName || field.Name == "value__" {
			continue
		}
		name := ctx.mapper.MapIdentifier(field.Name, IdentEnumValue)
		if field.Value == "" {
			fmt.Fprintf(sb, "%s%s,\n", indent, name)
		} else {
			fmt.Fprintf(sb, "%s%s = %s,\n", indent, name, field.Value)
		}
	}
	sb.WriteString(ctx.indent() + "}\n")
	return ctx.mapper.Err()
}

// delegateWriter renders a delegate as a function type alias built from its
// Invoke method.
type delegateWriter struct{}

func (delegateWriter) Write(sb *strings.Builder, t *metadata.TypeDecl, ctx *renderContext) error {
	signature := "(...args: any[]) => any"
	for _, method := range t.Methods {
		if method.Name != "Invoke" {
			continue
		}
		signature = "(" + renderParams(method.Params, ctx) + ") => " + ctx.mapper.MapTypeRef(method.ReturnType)
		break
	}
	fmt.Fprintf(sb, "%sexport type %s%s = %s;\n", ctx.indent(), TypeName(t.Name),
		ctx.mapper.GenericParams(t.GenericParams), signature)
	return ctx.mapper.Err()
}

// synthesizedWriter renders the record types made for output parameters.
type synthesizedWriter struct{}

func (synthesizedWriter) Write(sb *strings.Builder, t *metadata.TypeDecl, ctx *renderContext) error {
	sb.WriteString(ctx.indent() + "export interface " + TypeName(t.Name) + GenericArgs(t.GenericParams) + " {\n")
	indent := ctx.memberIndent()
	for _, field := range t.Fields {
		fmt.Fprintf(sb, "%s%s: %s;\n", indent, field.Name, ctx.mapper.MapTypeRef(field.Type))
	}
	sb.WriteString(ctx.indent() + "}\n")
	return ctx.mapper.Err()
}
