package metadata

import (
	"github.com/microsoft/go-winmd/flags"

	"gotsd/internal/errs"
)

// Signature blob markers from ECMA-335 §II.23.2.
const (
	sigGeneric = 0x10
	sigField   = 0x06

	elemVoid       = 0x01
	elemPtr        = 0x0f
	elemByRef      = 0x10
	elemValueType  = 0x11
	elemClass      = 0x12
	elemVar        = 0x13
	elemArray      = 0x14
	elemGenericIns = 0x15
	elemTypedByRef = 0x16
	elemNativeInt  = 0x18
	elemNativeUint = 0x19
	elemFnPtr      = 0x1b
	elemObject     = 0x1c
	elemSzArray    = 0x1d
	elemMVar       = 0x1e
	elemCModReqd   = 0x1f
	elemCModOpt    = 0x20
	elemSentinel   = 0x41
	elemPinned     = 0x45

	tagTypeDef  = 0
	tagTypeRef  = 1
	tagTypeSpec = 2
)

// The map of element types to the qualified names of the runtime types they stand for.
var builtInElementTypes = map[flags.ElementType]string{
	flags.ElementType_BOOLEAN: "System.Boolean",
	flags.ElementType_CHAR:    "System.Char",
	flags.ElementType_STRING:  "System.String",
	flags.ElementType_I1:      "System.SByte",
	flags.ElementType_I2:      "System.Int16",
	flags.ElementType_I4:      "System.Int32",
	flags.ElementType_I8:      "System.Int64",
	flags.ElementType_U1:      "System.Byte",
	flags.ElementType_U2:      "System.UInt16",
	flags.ElementType_U4:      "System.UInt32",
	flags.ElementType_U8:      "System.UInt64",
	flags.ElementType_R4:      "System.Single",
	flags.ElementType_R8:      "System.Double",
}

// typeResolver resolves TypeDefOrRef coded rows (1-based, tag in the low bits)
// to references.
type typeResolver interface {
	resolveTypeDefOrRef(tag uint32, row uint32, ctx sigContext) (TypeRef, error)
}

// sigContext carries the generic parameter names in scope.
type sigContext struct {
	typeParams   []string
	methodParams []string
}

type methodSig struct {
	returnType TypeRef
	params     []sigParam
}

type sigParam struct {
	typ   TypeRef
	byRef bool
}

type sigReader struct {
	data     []byte
	pos      int
	resolver typeResolver
	ctx      sigContext
}

func newSigReader(data []byte, resolver typeResolver, ctx sigContext) *sigReader {
	return &sigReader{data: data, resolver: resolver, ctx: ctx}
}

func (r *sigReader) readByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, errs.New("signature blob ended unexpectedly")
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *sigReader) peek() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, errs.New("signature blob ended unexpectedly")
	}
	return r.data[r.pos], nil
}

// compressed reads an unsigned integer compressed per §II.23.2.
func (r *sigReader) compressed() (uint32, error) {
	b0, err := r.readByte()
	if err != nil {
		return 0, err
	}
	switch {
	case b0&0x80 == 0:
		return uint32(b0), nil
	case b0&0xC0 == 0x80:
		b1, err := r.readByte()
		if err != nil {
			return 0, err
		}
		return uint32(b0&0x3F)<<8 | uint32(b1), nil
	default:
		rest := make([]byte, 3)
		for i := range rest {
			if rest[i], err = r.readByte(); err != nil {
				return 0, err
			}
		}
		return uint32(b0&0x1F)<<24 | uint32(rest[0])<<16 | uint32(rest[1])<<8 | uint32(rest[2]), nil
	}
}

func (r *sigReader) skipCustomMods() error {
	for {
		b, err := r.peek()
		if err != nil {
			return err
		}
		if b != elemCModOpt && b != elemCModReqd && b != elemPinned {
			return nil
		}
		r.pos++
		if b == elemPinned {
			continue
		}
		if _, err := r.compressed(); err != nil {
			return err
		}
	}
}

func (r *sigReader) typeDefOrRef() (TypeRef, error) {
	coded, err := r.compressed()
	if err != nil {
		return TypeRef{}, err
	}
	return r.resolver.resolveTypeDefOrRef(coded&0x3, coded>>2, r.ctx)
}

func (r *sigReader) genericParamName(names []string, kind string) (TypeRef, error) {
	number, err := r.compressed()
	if err != nil {
		return TypeRef{}, err
	}
	if int(number) >= len(names) {
		return TypeRef{}, errs.Newf("%s generic parameter %d out of range", kind, number)
	}
	return TypeRef{Name: names[number], IsGenericParam: true}, nil
}

// readType decodes one Type production.
func (r *sigReader) readType() (TypeRef, error) {
	if err := r.skipCustomMods(); err != nil {
		return TypeRef{}, err
	}
	b, err := r.readByte()
	if err != nil {
		return TypeRef{}, err
	}

	if name, found := builtInElementTypes[flags.ElementType(b)]; found {
		return TypeRef{Name: name, IsBuiltIn: true}, nil
	}

	switch b {
	case elemVoid:
		return TypeRef{Name: "System.Void", IsBuiltIn: true}, nil
	case elemObject:
		return TypeRef{Name: "System.Object", IsBuiltIn: true}, nil
	case elemNativeInt:
		return TypeRef{Name: "System.IntPtr", IsBuiltIn: true}, nil
	case elemNativeUint:
		return TypeRef{Name: "System.UIntPtr", IsBuiltIn: true}, nil
	case elemPtr, elemByRef:
		return r.readType()
	case elemValueType, elemClass:
		return r.typeDefOrRef()
	case elemVar:
		return r.genericParamName(r.ctx.typeParams, "type")
	case elemMVar:
		return r.genericParamName(r.ctx.methodParams, "method")
	case elemSzArray:
		inner, err := r.readType()
		inner.ArrayRank++
		return inner, err
	case elemArray:
		return r.readArray()
	case elemGenericIns:
		return r.readGenericInstance()
	case elemFnPtr:
		if _, err := r.readMethod(); err != nil {
			return TypeRef{}, errs.Wrap(err, "function pointer")
		}
		return TypeRef{Name: "System.IntPtr", IsBuiltIn: true}, nil
	case elemTypedByRef:
		return TypeRef{Name: "System.IntPtr", IsBuiltIn: true}, nil
	}
	return TypeRef{}, errs.Newf("unsupported element type 0x%02x in signature", b)
}

func (r *sigReader) readArray() (TypeRef, error) {
	inner, err := r.readType()
	if err != nil {
		return TypeRef{}, err
	}
	rank, err := r.compressed()
	if err != nil {
		return TypeRef{}, err
	}
	// sizes and lower bounds carry no declaration-level meaning
	for pass := 0; pass < 2; pass++ {
		count, err := r.compressed()
		if err != nil {
			return TypeRef{}, err
		}
		for i := uint32(0); i < count; i++ {
			if _, err := r.compressed(); err != nil {
				return TypeRef{}, err
			}
		}
	}
	inner.ArrayRank += int(rank)
	return inner, nil
}

func (r *sigReader) readGenericInstance() (TypeRef, error) {
	if _, err := r.readByte(); err != nil { // CLASS or VALUETYPE
		return TypeRef{}, err
	}
	generic, err := r.typeDefOrRef()
	if err != nil {
		return TypeRef{}, err
	}
	count, err := r.compressed()
	if err != nil {
		return TypeRef{}, err
	}
	generic.Args = make([]TypeRef, 0, count)
	for i := uint32(0); i < count; i++ {
		arg, err := r.readType()
		if err != nil {
			return TypeRef{}, err
		}
		generic.Args = append(generic.Args, arg)
	}
	return generic, nil
}

func (r *sigReader) readParam() (sigParam, error) {
	if err := r.skipCustomMods(); err != nil {
		return sigParam{}, err
	}
	b, err := r.peek()
	if err != nil {
		return sigParam{}, err
	}
	param := sigParam{}
	if b == elemByRef {
		r.pos++
		param.byRef = true
	}
	param.typ, err = r.readType()
	return param, err
}

// readMethod decodes a MethodDefSig.
func (r *sigReader) readMethod() (methodSig, error) {
	callingConvention, err := r.readByte()
	if err != nil {
		return methodSig{}, err
	}
	if callingConvention&sigGeneric != 0 {
		if _, err := r.compressed(); err != nil {
			return methodSig{}, err
		}
	}
	count, err := r.compressed()
	if err != nil {
		return methodSig{}, err
	}
	ret, err := r.readParam()
	if err != nil {
		return methodSig{}, errs.Wrap(err, "return type")
	}
	sig := methodSig{returnType: ret.typ, params: make([]sigParam, 0, count)}
	for i := uint32(0); i < count; i++ {
		if b, _ := r.peek(); b == elemSentinel {
			r.pos++
		}
		param, err := r.readParam()
		if err != nil {
			return methodSig{}, errs.Wrapf(err, "parameter %d", i)
		}
		sig.params = append(sig.params, param)
	}
	return sig, nil
}

// readField decodes a FieldSig.
func (r *sigReader) readField() (TypeRef, error) {
	b, err := r.readByte()
	if err != nil {
		return TypeRef{}, err
	}
	if b != sigField {
		return TypeRef{}, errs.Newf("not a field signature (0x%02x)", b)
	}
	return r.readType()
}
