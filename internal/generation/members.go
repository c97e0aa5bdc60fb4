package generation

import (
	"fmt"
	"strings"

	"gotsd/internal/metadata"
)

// lineSet keeps rendered lines in first-seen order and drops exact duplicates.
// Overloads that differ only in ways the declaration language cannot express
// collapse into one line; that loss is accepted.
type lineSet struct {
	lines []string
	seen  map[string]bool
}

func newLineSet() *lineSet {
	return &lineSet{seen: make(map[string]bool)}
}

func (s *lineSet) Add(line string) bool {
	if s.seen[line] {
		return false
	}
	s.seen[line] = true
	s.lines = append(s.lines, line)
	return true
}

func (s *lineSet) WriteTo(sb *strings.Builder) {
	for _, line := range s.lines {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
}

func staticPrefix(member metadata.Member) string {
	if member.IsStatic() {
		return "static "
	}
	return ""
}

func optionalMark(nullable bool) string {
	if nullable {
		return "?"
	}
	return ""
}

// writeFields renders public, non special-name fields. Returns the member
// names it emitted.
func writeFields(sb *strings.Builder, t *metadata.TypeDecl, ctx *renderContext) map[string]bool {
	emitted := make(map[string]bool)
	indent := ctx.memberIndent()
	for _, field := range t.Fields {
		if !field.Public || field.SpecialName {
			continue
		}
		name := ctx.mapper.MapIdentifier(field.Name, IdentField)
		fmt.Fprintf(sb, "%s%s%s%s: %s;\n", indent, staticPrefix(field), name,
			optionalMark(isOptional(field.Type)), ctx.mapper.MapTypeRef(field.Type))
		emitted[name] = true
	}
	return emitted
}

// writeProperties renders every property and records emitted names.
func writeProperties(sb *strings.Builder, t *metadata.TypeDecl, ctx *renderContext, emitted map[string]bool) {
	indent := ctx.memberIndent()
	for _, property := range t.Properties {
		name := ctx.mapper.MapIdentifier(property.Name, IdentProperty)
		fmt.Fprintf(sb, "%s%s%s%s: %s;\n", indent, staticPrefix(property), name,
			optionalMark(property.Nullable || isOptional(property.Type)), ctx.mapper.MapTypeRef(property.Type))
		emitted[name] = true
	}
}

// skipMethod reports whether a method is an accessor or event registration
// helper that is already represented by a property or event.
func skipMethod(method *metadata.Method) bool {
	if method.Constructor {
		return false
	}
	if method.SpecialName {
		return true
	}
	if strings.HasPrefix(method.Name, "add_") || strings.HasPrefix(method.Name, "remove_") {
		return len(method.Params) > 0 && strings.HasPrefix(method.Params[0].Name, "__param0")
	}
	return false
}

// methodLines renders the method set of t. Methods with output parameters
// return a synthesized record type, which is appended to synthesized.
func methodLines(t *metadata.TypeDecl, ctx *renderContext, lines *lineSet, synthesized *[]*metadata.TypeDecl) {
	indent := ctx.memberIndent()
	for _, method := range t.Methods {
		if skipMethod(method) {
			continue
		}

		if method.Constructor {
			lines.Add(fmt.Sprintf("%sconstructor(%s);", indent, renderParams(method.Params, ctx)))
			continue
		}

		name := ctx.mapper.MapIdentifier(method.Name, IdentMethod)
		var returnType string
		if outType := synthesizeOutType(t, name, method); outType != nil {
			*synthesized = append(*synthesized, outType)
			returnType = QualifiedName(outType) + GenericArgs(outType.GenericParams)
		} else {
			returnType = ctx.mapper.MapTypeRef(method.ReturnType)
		}

		lines.Add(fmt.Sprintf("%s%s%s%s(%s): %s;", indent, staticPrefix(method), name,
			ctx.mapper.GenericParams(method.GenericParams), renderParams(inParams(method.Params), ctx), returnType))
	}
}

func renderParams(params []metadata.Parameter, ctx *renderContext) string {
	parts := make([]string, len(params))
	for i, param := range params {
		parts[i] = ctx.mapper.MapIdentifier(param.Name, IdentParameter) + ": " + ctx.mapper.MapTypeRef(param.Type)
	}
	return strings.Join(parts, ", ")
}

// writeEvents renders the listener registration bank for t's events.
func writeEvents(sb *strings.Builder, t *metadata.TypeDecl, ctx *renderContext) {
	if len(t.Events) == 0 {
		return
	}
	indent := ctx.memberIndent()
	sb.WriteString(indent + "// Events\n")

	lines := newLineSet()
	lines.Add(indent + "addEventListener(type: string, listener: any): void;")
	lines.Add(indent + "removeEventListener(type: string, listener: any): void;")
	for _, event := range t.Events {
		name := ctx.mapper.MapIdentifier(event.Name, IdentEvent)
		handler := ctx.mapper.MapTypeRef(event.Handler)
		lines.Add(fmt.Sprintf("%saddEventListener(type: \"%s\", listener: %s): void;", indent, name, handler))
		lines.Add(fmt.Sprintf("%sremoveEventListener(type: \"%s\", listener: %s): void;", indent, name, handler))
		lines.Add(fmt.Sprintf("%son%s: (ev: %s) => void;", indent, name, handler))
	}
	lines.WriteTo(sb)
}
