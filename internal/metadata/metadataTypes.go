package metadata

import "strings"

// Kind of a declarable type.
type Kind string

const (
	KindClass       Kind = "class"
	KindInterface   Kind = "interface"
	KindEnum        Kind = "enum"
	KindDelegate    Kind = "delegate"
	KindSynthesized Kind = "synthesized"
)

type Visibility string

const (
	Public    Visibility = "public"
	NonPublic Visibility = "nonpublic"
)

// TypeRef is a reference to a type as it appears in a member signature.
type TypeRef struct {
	Name           string    `json:"name" yaml:"name"`
	Args           []TypeRef `json:"args,omitempty" yaml:"args,omitempty"`
	Nullable       bool      `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	ArrayRank      int       `json:"arrayRank,omitempty" yaml:"arrayRank,omitempty"`
	IsBuiltIn      bool      `json:"builtin,omitempty" yaml:"builtin,omitempty"`
	IsGenericParam bool      `json:"genericParam,omitempty" yaml:"genericParam,omitempty"`
}

// Equal reports whether two references are structurally identical.
func (t TypeRef) Equal(other TypeRef) bool {
	if t.Name != other.Name || t.Nullable != other.Nullable || t.ArrayRank != other.ArrayRank ||
		t.IsBuiltIn != other.IsBuiltIn || t.IsGenericParam != other.IsGenericParam ||
		len(t.Args) != len(other.Args) {
		return false
	}
	for i := range t.Args {
		if !t.Args[i].Equal(other.Args[i]) {
			return false
		}
	}
	return true
}

func (t TypeRef) String() string {
	if len(t.Args) == 0 {
		return t.Name + strings.Repeat("[]", t.ArrayRank)
	}
	args := make([]string, len(t.Args))
	for i, arg := range t.Args {
		args[i] = arg.String()
	}
	return t.Name + "<" + strings.Join(args, ",") + ">" + strings.Repeat("[]", t.ArrayRank)
}

type GenericParam struct {
	Name        string    `json:"name" yaml:"name"`
	Constraints []TypeRef `json:"constraints,omitempty" yaml:"constraints,omitempty"`
}

// TypeDecl is the declaration of a type with its members and relationships.
type TypeDecl struct {
	Namespace     string         `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Name          string         `json:"name" yaml:"name"`
	Kind          Kind           `json:"kind" yaml:"kind"`
	Visibility    Visibility     `json:"visibility,omitempty" yaml:"visibility,omitempty"`
	GenericParams []GenericParam `json:"genericParams,omitempty" yaml:"genericParams,omitempty"`
	Base          *TypeRef       `json:"base,omitempty" yaml:"base,omitempty"`
	Interfaces    []TypeRef      `json:"interfaces,omitempty" yaml:"interfaces,omitempty"`
	Fields        []*Field       `json:"fields,omitempty" yaml:"fields,omitempty"`
	Properties    []*Property    `json:"properties,omitempty" yaml:"properties,omitempty"`
	Methods       []*Method      `json:"methods,omitempty" yaml:"methods,omitempty"`
	Events        []*Event       `json:"events,omitempty" yaml:"events,omitempty"`
	NestedTypes   []*TypeDecl    `json:"nestedTypes,omitempty" yaml:"nestedTypes,omitempty"`

	DeclaringType *TypeDecl `json:"-" yaml:"-"`
}

// FullName returns the qualified name, using '/' between an enclosing type and
// its nested types.
func (t *TypeDecl) FullName() string {
	if t.DeclaringType != nil {
		return t.DeclaringType.FullName() + "/" + t.Name
	}
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

// IsPublic treats an empty visibility as public so hand-written snapshots stay short.
func (t *TypeDecl) IsPublic() bool {
	return t.Visibility != NonPublic
}

// Member is implemented by Field, Property, Method and Event.
type Member interface {
	IsStatic() bool
	Declaring() *TypeDecl
}

type Field struct {
	Name        string  `json:"name" yaml:"name"`
	Type        TypeRef `json:"type" yaml:"type"`
	Static      bool    `json:"static,omitempty" yaml:"static,omitempty"`
	Public      bool    `json:"public,omitempty" yaml:"public,omitempty"`
	SpecialName bool    `json:"specialName,omitempty" yaml:"specialName,omitempty"`
	Value       string  `json:"value,omitempty" yaml:"value,omitempty"`

	declaring *TypeDecl
}

type Property struct {
	Name     string  `json:"name" yaml:"name"`
	Type     TypeRef `json:"type" yaml:"type"`
	Static   bool    `json:"static,omitempty" yaml:"static,omitempty"`
	Nullable bool    `json:"nullable,omitempty" yaml:"nullable,omitempty"`

	declaring *TypeDecl
}

type Method struct {
	Name          string         `json:"name" yaml:"name"`
	Params        []Parameter    `json:"params,omitempty" yaml:"params,omitempty"`
	ReturnType    TypeRef        `json:"returnType" yaml:"returnType"`
	Static        bool           `json:"static,omitempty" yaml:"static,omitempty"`
	Constructor   bool           `json:"constructor,omitempty" yaml:"constructor,omitempty"`
	SpecialName   bool           `json:"specialName,omitempty" yaml:"specialName,omitempty"`
	GenericParams []GenericParam `json:"genericParams,omitempty" yaml:"genericParams,omitempty"`

	declaring *TypeDecl
}

type Parameter struct {
	Name string  `json:"name" yaml:"name"`
	Type TypeRef `json:"type" yaml:"type"`
	Out  bool    `json:"out,omitempty" yaml:"out,omitempty"`
}

type Event struct {
	Name    string  `json:"name" yaml:"name"`
	Handler TypeRef `json:"handler" yaml:"handler"`
	Static  bool    `json:"static,omitempty" yaml:"static,omitempty"`

	declaring *TypeDecl
}

func (f *Field) IsStatic() bool       { return f.Static }
func (f *Field) Declaring() *TypeDecl { return f.declaring }

func (p *Property) IsStatic() bool       { return p.Static }
func (p *Property) Declaring() *TypeDecl { return p.declaring }

func (m *Method) IsStatic() bool       { return m.Static }
func (m *Method) Declaring() *TypeDecl { return m.declaring }

func (e *Event) IsStatic() bool       { return e.Static }
func (e *Event) Declaring() *TypeDecl { return e.declaring }

// Assembly is one metadata snapshot produced by a Provider.
type Assembly struct {
	Path  string      `json:"-" yaml:"-"`
	Name  string      `json:"name,omitempty" yaml:"name,omitempty"`
	Types []*TypeDecl `json:"types" yaml:"types"`
}

// Link sets the non-owning back-references (declaring types of members and
// nested types). Providers call it once after building the snapshot.
func (a *Assembly) Link() {
	for _, t := range a.Types {
		t.DeclaringType = nil
		linkType(t)
	}
}

func linkType(t *TypeDecl) {
	for _, f := range t.Fields {
		f.declaring = t
	}
	for _, p := range t.Properties {
		p.declaring = t
	}
	for _, m := range t.Methods {
		m.declaring = t
	}
	for _, e := range t.Events {
		e.declaring = t
	}
	for _, nested := range t.NestedTypes {
		nested.DeclaringType = t
		if nested.Namespace == "" {
			nested.Namespace = t.Namespace
		}
		linkType(nested)
	}
}

// Walk visits every type of the assembly, nested types after their owner.
func (a *Assembly) Walk(visit func(*TypeDecl)) {
	var walk func(*TypeDecl)
	walk = func(t *TypeDecl) {
		visit(t)
		for _, nested := range t.NestedTypes {
			walk(nested)
		}
	}
	for _, t := range a.Types {
		walk(t)
	}
}
