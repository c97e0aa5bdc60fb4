// The package used for operating on and describing type metadata.
package metadata

import (
	"debug/pe"
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	"github.com/microsoft/go-winmd"
	"github.com/microsoft/go-winmd/coded"
	"github.com/microsoft/go-winmd/flags"

	"gotsd/internal/errs"
)

// Attribute bits from ECMA-335 §II.23.1.
const (
	typeVisibilityMask = 0x7
	typePublic         = 0x1
	typeNestedPublic   = 0x2
	typeInterface      = 0x20

	memberAccessMask = 0x7
	memberPublic     = 0x6
	memberStatic     = 0x10
	fieldSpecialName = 0x200
	fieldRTSpecial   = 0x400
	methodSpecial    = 0x800

	paramOut = 0x2

	// nesting deeper than this is treated as a malformed (cyclic) table
	maxNesting = 64
)

// WinMdProvider reads .winmd (and other ECMA-335) assemblies.
type WinMdProvider struct{}

func (WinMdProvider) Name() string { return "winmd" }

func (WinMdProvider) Load(path string) (*Assembly, error) {
	reader, err := NewReader(path)
	if err != nil {
		return nil, err
	}
	return reader.ReadAssembly()
}

type WinMdReader struct {
	metadata *winmd.Metadata
	path     string

	// generic parameter names per TypeDef / MethodDef row
	typeGenerics   map[winmd.Index][]string
	methodGenerics map[winmd.Index][]string
	// enclosing TypeDef row per nested TypeDef row
	enclosing map[winmd.Index]winmd.Index
	// implemented interfaces per TypeDef row, in table order
	interfaces map[winmd.Index][]winmd.CodedIndex
	// literal values of fields, by Field row
	constants map[winmd.Index]string
}

// Generates a new metadata reader for the assembly under given path.
func NewReader(path string) (*WinMdReader, error) {
	peFile, err := pe.Open(path)
	if err != nil {
		return nil, errs.Wrapf(err, "failed to open %s as a PE file", path)
	}
	defer peFile.Close()

	winmdMetadata, err := winmd.New(peFile)
	if err != nil {
		return nil, errs.Wrapf(err, "failed to read metadata from %s", path)
	}

	reader := &WinMdReader{
		metadata:       winmdMetadata,
		path:           path,
		typeGenerics:   make(map[winmd.Index][]string),
		methodGenerics: make(map[winmd.Index][]string),
		enclosing:      make(map[winmd.Index]winmd.Index),
		interfaces:     make(map[winmd.Index][]winmd.CodedIndex),
		constants:      make(map[winmd.Index]string),
	}
	if err := reader.index(); err != nil {
		return nil, err
	}
	return reader, nil
}

func (reader *WinMdReader) index() error {
	tables := reader.metadata.Tables

	err := iterateOverTable(tables.GenericParam, func(_ winmd.Index, param *winmd.GenericParam) {
		target := reader.methodGenerics
		if param.Owner.Tag == coded.TypeOrMethodDef_TypeDef {
			target = reader.typeGenerics
		}
		names := target[param.Owner.Index]
		for len(names) <= int(param.Number) {
			names = append(names, "")
		}
		names[param.Number] = param.Name.String()
		target[param.Owner.Index] = names
	})
	if err != nil {
		return err
	}

	err = iterateOverTable(tables.NestedClass, func(_ winmd.Index, nested *winmd.NestedClass) {
		reader.enclosing[nested.NestedClass] = nested.EnclosingClass
	})
	if err != nil {
		return err
	}

	err = iterateOverTable(tables.InterfaceImpl, func(_ winmd.Index, impl *winmd.InterfaceImpl) {
		reader.interfaces[impl.Class] = append(reader.interfaces[impl.Class], impl.Interface)
	})
	if err != nil {
		return err
	}

	return iterateOverTable(tables.Constant, func(_ winmd.Index, constant *winmd.Constant) {
		if constant.Parent.Tag != coded.HasConstant_Field {
			return
		}
		if value, ok := decodeConstant(constant.Type, constant.Value); ok {
			reader.constants[constant.Parent.Index] = value
		}
	})
}

// ReadAssembly converts every TypeDef into the type model.
func (reader *WinMdReader) ReadAssembly() (*Assembly, error) {
	assembly := &Assembly{Path: reader.path, Name: strings.TrimSuffix(baseName(reader.path), ".winmd")}
	decls := make(map[winmd.Index]*TypeDecl)
	order := make([]winmd.Index, 0)

	err := iterateOverTable(reader.metadata.Tables.TypeDef, func(idx winmd.Index, typeDef *winmd.TypeDef) {
		if typeDef.Name.String() == "<Module>" {
			return
		}
		decls[idx] = nil
		order = append(order, idx)
	})
	if err != nil {
		return nil, err
	}

	for _, idx := range order {
		decl, err := reader.getType(idx)
		if err != nil {
			return nil, err
		}
		decls[idx] = decl
	}

	for _, idx := range order {
		decl := decls[idx]
		enclosingIdx, nested := reader.enclosing[idx]
		if !nested {
			assembly.Types = append(assembly.Types, decl)
			continue
		}
		if owner := decls[enclosingIdx]; owner != nil {
			decl.Namespace = owner.Namespace
			owner.NestedTypes = append(owner.NestedTypes, decl)
		}
	}

	assembly.Link()
	return assembly, nil
}

func (reader *WinMdReader) getType(idx winmd.Index) (*TypeDecl, error) {
	typeDef, err := reader.metadata.Tables.TypeDef.Record(idx)
	if err != nil {
		return nil, err
	}

	attributes := uint32(typeDef.Flags)
	decl := &TypeDecl{
		Namespace:  typeDef.Namespace.String(),
		Name:       typeDef.Name.String(),
		Kind:       KindClass,
		Visibility: NonPublic,
	}
	if visibility := attributes & typeVisibilityMask; visibility == typePublic || visibility == typeNestedPublic {
		decl.Visibility = Public
	}

	ctx := sigContext{typeParams: reader.typeGenerics[idx]}
	for _, name := range ctx.typeParams {
		decl.GenericParams = append(decl.GenericParams, GenericParam{Name: name})
	}

	if attributes&typeInterface != 0 {
		decl.Kind = KindInterface
	} else if base, ok, err := reader.getCodedType(typeDef.Extends, ctx); err != nil {
		return nil, errs.Wrapf(err, "base type of %s", decl.Name)
	} else if ok {
		switch base.Name {
		case "System.Enum":
			decl.Kind = KindEnum
		case "System.MulticastDelegate":
			decl.Kind = KindDelegate
		case "System.ValueType":
			// structs are plain data shapes
			decl.Kind = KindInterface
		case "System.Object":
		default:
			decl.Base = &base
		}
	}

	if err := reader.addInterfaces(idx, decl, ctx); err != nil {
		return nil, err
	}

	for i := typeDef.FieldList.Start; i < typeDef.FieldList.End; i++ {
		field, err := reader.getField(i, ctx)
		if err != nil {
			return nil, errs.Wrapf(err, "field of %s", decl.Name)
		}
		decl.Fields = append(decl.Fields, field)
	}

	for i := typeDef.MethodList.Start; i < typeDef.MethodList.End; i++ {
		method, err := reader.getMethod(i, ctx)
		if err != nil {
			return nil, errs.Wrapf(err, "method of %s", decl.Name)
		}
		if method != nil {
			decl.Methods = append(decl.Methods, method)
		}
	}

	decl.Properties, decl.Events = accessorMembers(decl.Methods)
	return decl, nil
}

func (reader *WinMdReader) addInterfaces(idx winmd.Index, decl *TypeDecl, ctx sigContext) error {
	for _, index := range reader.interfaces[idx] {
		ref, ok, err := reader.getCodedType(index, ctx)
		if err != nil {
			return errs.Wrapf(err, "interface of %s", decl.Name)
		}
		if ok {
			decl.Interfaces = append(decl.Interfaces, ref)
		}
	}
	return nil
}

func (reader *WinMdReader) getField(idx winmd.Index, ctx sigContext) (*Field, error) {
	field, err := reader.metadata.Tables.Field.Record(idx)
	if err != nil {
		return nil, errs.Wrap(err, "no matching field was found")
	}
	fieldType, err := newSigReader([]byte(field.Signature), reader, ctx).readField()
	if err != nil {
		return nil, errs.Wrapf(err, "no matching field signature for field '%s' was found", field.Name.String())
	}
	attributes := uint32(field.Flags)
	return &Field{
		Name:        field.Name.String(),
		Type:        fieldType,
		Static:      attributes&memberStatic != 0,
		Public:      attributes&memberAccessMask == memberPublic,
		SpecialName: attributes&(fieldSpecialName|fieldRTSpecial) != 0,
		Value:       reader.constants[idx],
	}, nil
}

// getMethod returns nil for non-public methods and type initializers.
func (reader *WinMdReader) getMethod(idx winmd.Index, typeCtx sigContext) (*Method, error) {
	methodDef, err := reader.metadata.Tables.MethodDef.Record(idx)
	if err != nil {
		return nil, err
	}
	name := methodDef.Name.String()
	attributes := uint32(methodDef.Flags)
	if attributes&memberAccessMask != memberPublic || name == ".cctor" {
		return nil, nil
	}

	ctx := sigContext{typeParams: typeCtx.typeParams, methodParams: reader.methodGenerics[idx]}
	signature, err := newSigReader([]byte(methodDef.Signature), reader, ctx).readMethod()
	if err != nil {
		return nil, errs.Wrapf(err, "signature of %s", name)
	}

	method := &Method{
		Name:        name,
		ReturnType:  signature.returnType,
		Static:      attributes&memberStatic != 0,
		Constructor: name == ".ctor",
		SpecialName: attributes&methodSpecial != 0,
	}
	for _, genericName := range ctx.methodParams {
		method.GenericParams = append(method.GenericParams, GenericParam{Name: genericName})
	}

	names := make(map[uint16]string)
	outs := make(map[uint16]bool)
	for i := methodDef.ParamList.Start; i < methodDef.ParamList.End; i++ {
		param, err := reader.metadata.Tables.Param.Record(i)
		if err != nil {
			return nil, err
		}
		sequence := uint16(param.Sequence)
		names[sequence] = param.Name.String()
		outs[sequence] = uint32(param.Flags)&paramOut != 0
	}

	for i, sigParam := range signature.params {
		sequence := uint16(i + 1)
		paramName, found := names[sequence]
		if !found {
			paramName = "arg" + strconv.Itoa(i)
		}
		method.Params = append(method.Params, Parameter{
			Name: paramName,
			Type: sigParam.typ,
			// WinRT has no in/out references, so a by-reference parameter is an output
			Out: outs[sequence] || sigParam.byRef,
		})
	}
	return method, nil
}

// accessorMembers derives properties and events from the accessor methods
// (get_/put_/set_ and add_) the metadata carries.
func accessorMembers(methods []*Method) ([]*Property, []*Event) {
	var properties []*Property
	var events []*Event
	seenProperties := make(map[string]*Property)

	for _, method := range methods {
		if !method.SpecialName || method.Constructor {
			continue
		}
		switch {
		case strings.HasPrefix(method.Name, "get_"):
			name := strings.TrimPrefix(method.Name, "get_")
			if property, found := seenProperties[name]; found {
				property.Type = method.ReturnType
				property.Static = property.Static || method.Static
				continue
			}
			property := &Property{Name: name, Type: method.ReturnType, Static: method.Static}
			seenProperties[name] = property
			properties = append(properties, property)
		case strings.HasPrefix(method.Name, "put_"), strings.HasPrefix(method.Name, "set_"):
			if len(method.Params) != 1 {
				continue
			}
			name := method.Name[4:]
			if property, found := seenProperties[name]; found {
				property.Static = property.Static || method.Static
				continue
			}
			property := &Property{Name: name, Type: method.Params[0].Type, Static: method.Static}
			seenProperties[name] = property
			properties = append(properties, property)
		case strings.HasPrefix(method.Name, "add_"):
			if len(method.Params) != 1 {
				continue
			}
			events = append(events, &Event{
				Name:    strings.TrimPrefix(method.Name, "add_"),
				Handler: method.Params[0].Type,
				Static:  method.Static,
			})
		}
	}
	return properties, events
}

// getCodedType resolves a TypeDefOrRef coded index from a table column. ok is
// false for a null index or one pointing past the TypeDef table.
func (reader *WinMdReader) getCodedType(index winmd.CodedIndex, ctx sigContext) (TypeRef, bool, error) {
	if index.Tag < 0 {
		return TypeRef{}, false, nil
	}
	if index.Tag == coded.TypeDefOrRef_TypeDef && uint32(index.Index) >= reader.metadata.Tables.TypeDef.Len {
		return TypeRef{}, false, nil
	}
	// table columns are 0-based, blob-encoded rows are 1-based
	ref, err := reader.resolveTypeDefOrRef(uint32(index.Tag), uint32(index.Index)+1, ctx)
	if err != nil {
		return TypeRef{}, false, err
	}
	return ref, ref.Name != "", nil
}

func (reader *WinMdReader) resolveTypeDefOrRef(tag uint32, row uint32, ctx sigContext) (TypeRef, error) {
	if row == 0 {
		return TypeRef{}, nil
	}
	idx := winmd.Index(row - 1)

	switch tag {
	case tagTypeDef:
		name, err := reader.typeDefName(idx, 0)
		if err != nil {
			return TypeRef{}, err
		}
		return TypeRef{Name: name}, nil
	case tagTypeRef:
		name, namespace, err := reader.typeRefName(idx, 0)
		if err != nil {
			return TypeRef{}, err
		}
		return TypeRef{Name: name, IsBuiltIn: namespace == "System"}, nil
	case tagTypeSpec:
		typeSpec, err := reader.metadata.Tables.TypeSpec.Record(idx)
		if err != nil {
			return TypeRef{}, errs.Wrap(err, "did not find matching type specification")
		}
		return newSigReader([]byte(typeSpec.Signature), reader, ctx).readType()
	}
	return TypeRef{}, errs.Newf("unknown TypeDefOrRef tag %d", tag)
}

// typeDefName returns the full name of a TypeDef row, joining enclosing types
// with '/'.
func (reader *WinMdReader) typeDefName(idx winmd.Index, depth int) (string, error) {
	if depth > maxNesting {
		return "", errs.Newf("type definition %d nests deeper than %d levels", idx, maxNesting)
	}
	typeDef, err := reader.metadata.Tables.TypeDef.Record(idx)
	if err != nil {
		return "", errs.Wrap(err, "did not find matching type definition")
	}
	enclosing, nested := reader.enclosing[idx]
	if !nested {
		return qualify(typeDef.Namespace.String(), typeDef.Name.String()), nil
	}
	owner, err := reader.typeDefName(enclosing, depth+1)
	if err != nil {
		return "", err
	}
	return owner + "/" + typeDef.Name.String(), nil
}

// typeRefName returns the full name of a TypeRef row and the namespace of its
// outermost type. A reference scoped to another TypeRef names a nested type.
func (reader *WinMdReader) typeRefName(idx winmd.Index, depth int) (string, string, error) {
	if depth > maxNesting {
		return "", "", errs.Newf("type reference %d nests deeper than %d levels", idx, maxNesting)
	}
	typeRef, err := reader.metadata.Tables.TypeRef.Record(idx)
	if err != nil {
		return "", "", errs.Wrap(err, "did not find matching type reference")
	}
	if scope := typeRef.ResolutionScope; scope.Tag == coded.ResolutionScope_TypeRef {
		owner, namespace, err := reader.typeRefName(scope.Index, depth+1)
		if err != nil {
			return "", "", err
		}
		return owner + "/" + typeRef.Name.String(), namespace, nil
	}
	namespace := typeRef.Namespace.String()
	return qualify(namespace, typeRef.Name.String()), namespace, nil
}

func qualify(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "." + name
}

func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}

// decodeConstant renders a Constant blob as a literal.
func decodeConstant(elementType flags.ElementType, blob []byte) (string, bool) {
	need := map[flags.ElementType]int{
		flags.ElementType_BOOLEAN: 1, flags.ElementType_I1: 1, flags.ElementType_U1: 1,
		flags.ElementType_I2: 2, flags.ElementType_U2: 2, flags.ElementType_CHAR: 2,
		flags.ElementType_I4: 4, flags.ElementType_U4: 4, flags.ElementType_R4: 4,
		flags.ElementType_I8: 8, flags.ElementType_U8: 8, flags.ElementType_R8: 8,
	}[elementType]
	if need == 0 || len(blob) < need {
		return "", false
	}

	switch elementType {
	case flags.ElementType_BOOLEAN:
		return strconv.FormatBool(blob[0] != 0), true
	case flags.ElementType_I1:
		return strconv.Itoa(int(int8(blob[0]))), true
	case flags.ElementType_U1:
		return strconv.Itoa(int(blob[0])), true
	case flags.ElementType_I2:
		return strconv.Itoa(int(int16(binary.LittleEndian.Uint16(blob)))), true
	case flags.ElementType_U2, flags.ElementType_CHAR:
		return strconv.Itoa(int(binary.LittleEndian.Uint16(blob))), true
	case flags.ElementType_I4:
		return strconv.Itoa(int(int32(binary.LittleEndian.Uint32(blob)))), true
	case flags.ElementType_U4:
		return strconv.FormatUint(uint64(binary.LittleEndian.Uint32(blob)), 10), true
	case flags.ElementType_I8:
		return strconv.FormatInt(int64(binary.LittleEndian.Uint64(blob)), 10), true
	case flags.ElementType_U8:
		return strconv.FormatUint(binary.LittleEndian.Uint64(blob), 10), true
	case flags.ElementType_R4:
		return strconv.FormatFloat(float64(math.Float32frombits(binary.LittleEndian.Uint32(blob))), 'g', -1, 32), true
	case flags.ElementType_R8:
		return strconv.FormatFloat(math.Float64frombits(binary.LittleEndian.Uint64(blob)), 'g', -1, 64), true
	}
	return "", false
}

// Calls action for every row of the table.
func iterateOverTable[T any, TP winmd.Record[T]](table winmd.Table[T, TP], action func(winmd.Index, TP)) error {
	for idx := uint32(0); idx < table.Len; idx++ {
		element, err := table.Record(winmd.Index(idx))
		if err != nil {
			return errs.Wrapf(err, "failed to read table row %d", idx)
		}
		action(winmd.Index(idx), element)
	}
	return nil
}
