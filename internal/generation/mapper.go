package generation

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"gotsd/internal/config"
	"gotsd/internal/errs"
	"gotsd/internal/metadata"
)

// opaqueType stands in for anything that cannot be expressed or resolved.
const opaqueType = "any"

// IdentifierKind selects the casing rule applied by MapIdentifier.
type IdentifierKind int

const (
	IdentMethod IdentifierKind = iota
	IdentProperty
	IdentField
	IdentEnumValue
	IdentEvent
	IdentParameter
	IdentType
)

var primitiveTypes = map[string]string{
	"System.Boolean":        "boolean",
	"System.SByte":          "number",
	"System.Byte":           "number",
	"System.Int16":          "number",
	"System.UInt16":         "number",
	"System.Int32":          "number",
	"System.UInt32":         "number",
	"System.Int64":          "number",
	"System.UInt64":         "number",
	"System.Single":         "number",
	"System.Double":         "number",
	"System.Decimal":        "number",
	"System.Char":           "string",
	"System.String":         "string",
	"System.Guid":           "string",
	"System.Void":           "void",
	"System.Object":         "any",
	"System.DateTime":       "Date",
	"System.DateTimeOffset": "Date",
	"System.TimeSpan":       "number",
}

// Wrappers whose only meaning in the declaration language is "may be null".
var nullableWrappers = map[string]bool{
	"System.Nullable`1":               true,
	"Windows.Foundation.IReference`1": true,
}

// Marker and interop interfaces with no useful declaration shape.
var ignoredTypeNames = map[string]bool{
	"IInspectable":         true,
	"IUnknown":             true,
	"IAgileObject":         true,
	"IMarshal":             true,
	"IWeakReferenceSource": true,
}

var reservedWords = map[string]bool{
	"break": true, "case": true, "catch": true, "class": true, "const": true, "continue": true,
	"debugger": true, "default": true, "delete": true, "do": true, "else": true, "enum": true,
	"export": true, "extends": true, "false": true, "finally": true, "for": true, "function": true,
	"if": true, "import": true, "in": true, "instanceof": true, "new": true, "null": true,
	"return": true, "super": true, "switch": true, "this": true, "throw": true, "true": true,
	"try": true, "typeof": true, "var": true, "void": true, "while": true, "with": true,
}

// Mapper turns type references and identifiers into declaration text. It
// lives for one render pass. The sink hears about each unresolved name once per
// pass. The first abort is kept as a sticky error: once set, every further
// reference maps to the opaque type without notifying the sink again.
type Mapper struct {
	cfg      config.Config
	lookup   func(fullName string) *metadata.TypeDecl
	sink     ErrorSink
	notified map[string]bool
	err      error
}

func NewMapper(cfg config.Config, lookup func(fullName string) *metadata.TypeDecl, sink ErrorSink) *Mapper {
	if sink == nil {
		sink = ErrorSinkFunc(func(string) Policy { return Substitute })
	}
	if lookup == nil {
		lookup = func(string) *metadata.TypeDecl { return nil }
	}
	return &Mapper{cfg: cfg, lookup: lookup, sink: sink, notified: make(map[string]bool)}
}

// Err returns the abort error, if the sink asked for one.
func (m *Mapper) Err() error { return m.err }

// Lookup returns the declaration known under a qualified name without
// consulting the sink.
func (m *Mapper) Lookup(fullName string) *metadata.TypeDecl { return m.lookup(fullName) }

// MapTypeRef renders a reference as a type expression.
func (m *Mapper) MapTypeRef(ref metadata.TypeRef) string {
	return m.mapTypeName(ref) + strings.Repeat("[]", ref.ArrayRank)
}

func (m *Mapper) mapTypeName(ref metadata.TypeRef) string {
	if m.err != nil {
		return opaqueType
	}
	if ref.IsGenericParam {
		return ref.Name
	}
	if mapped, found := primitiveTypes[ref.Name]; found {
		return mapped
	}
	if nullableWrappers[ref.Name] && len(ref.Args) == 1 {
		return m.MapTypeRef(ref.Args[0])
	}
	if ref.IsBuiltIn {
		return m.notFound(ref.Name)
	}
	decl := m.lookup(ref.Name)
	if decl == nil {
		return m.notFound(ref.Name)
	}

	name := QualifiedName(decl)
	if len(ref.Args) == 0 {
		return name
	}
	args := make([]string, len(ref.Args))
	for i, arg := range ref.Args {
		args[i] = m.MapTypeRef(arg)
	}
	return name + "<" + strings.Join(args, ", ") + ">"
}

func (m *Mapper) notFound(name string) string {
	if m.notified[name] {
		return opaqueType
	}
	m.notified[name] = true
	if m.sink.OnTypeNotFound(name) == Abort {
		m.err = errs.Mark(errs.Newf("type %q could not be resolved", name), errs.ErrTypeNotFound)
	}
	return opaqueType
}

// MapIdentifier applies the casing rule for kind to a raw member or type name.
func (m *Mapper) MapIdentifier(raw string, kind IdentifierKind) string {
	switch kind {
	case IdentEvent:
		return strings.ToLower(raw)
	case IdentType:
		return TypeName(raw)
	case IdentParameter:
		if reservedWords[raw] {
			return raw + "_"
		}
		return raw
	}
	if !m.cfg.CamelCaseMemberNames {
		return raw
	}
	return lowerFirst(raw)
}

// GenericParams renders a declaration's generic parameter list. Only the first
// constraint of a parameter can be expressed; the rest are kept as a comment.
func (m *Mapper) GenericParams(params []metadata.GenericParam) string {
	if len(params) == 0 {
		return ""
	}
	parts := make([]string, len(params))
	for i, param := range params {
		var sb strings.Builder
		sb.WriteString(param.Name)
		for j, constraint := range param.Constraints {
			switch {
			case j == 0:
				sb.WriteString(" extends ")
				sb.WriteString(m.MapTypeRef(constraint))
				if len(param.Constraints) > 1 {
					sb.WriteString(" /* ")
				}
			default:
				sb.WriteString(m.MapTypeRef(constraint))
				if j == len(param.Constraints)-1 {
					sb.WriteString(" */")
				} else {
					sb.WriteString(", ")
				}
			}
		}
		parts[i] = sb.String()
	}
	return "<" + strings.Join(parts, ", ") + ">"
}

// GenericArgs renders the parameter names of a declaration as type arguments.
func GenericArgs(params []metadata.GenericParam) string {
	if len(params) == 0 {
		return ""
	}
	names := make([]string, len(params))
	for i, param := range params {
		names[i] = param.Name
	}
	return "<" + strings.Join(names, ", ") + ">"
}

// globalNamespace holds declarations that have no namespace of their own.
const globalNamespace = "Global"

// NamespaceName returns the declaration namespace for a model namespace.
func NamespaceName(namespace string) string {
	if namespace == "" {
		return globalNamespace
	}
	return namespace
}

// QualifiedName is the name a declaration is referenced by from anywhere in
// the document: namespace, enclosing types and name, dot separated.
func QualifiedName(t *metadata.TypeDecl) string {
	path := TypeName(t.Name)
	for owner := t.DeclaringType; owner != nil; owner = owner.DeclaringType {
		path = TypeName(owner.Name) + "." + path
	}
	return NamespaceName(t.Namespace) + "." + path
}

// TypeName strips generic arity markers and turns nested type separators into
// dots: "Ns.Outer/Inner`1" becomes "Ns.Outer.Inner".
func TypeName(raw string) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c == '`':
			for i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '9' {
				i++
			}
		case c == '/' || c == '+':
			sb.WriteByte('.')
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// ShouldIgnoreTypeByName reports whether a type is a compiler-generated or
// interop marker interface that gets no declaration.
func ShouldIgnoreTypeByName(name string) bool {
	simple := name
	if i := strings.LastIndexAny(simple, "./+"); i >= 0 {
		simple = simple[i+1:]
	}
	simple = TypeName(simple)
	return strings.HasPrefix(simple, "__I") || ignoredTypeNames[simple]
}

// isOptional reports whether a member of type ref may be absent: a nullable
// reference or a single value behind a nullable wrapper.
func isOptional(ref metadata.TypeRef) bool {
	return ref.Nullable || ref.ArrayRank == 0 && nullableWrappers[ref.Name] && len(ref.Args) == 1
}

func isVoid(ref metadata.TypeRef) bool {
	return ref.ArrayRank == 0 && (ref.Name == "System.Void" || ref.Name == "void" || ref.Name == "")
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || unicode.IsLower(r) {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}
