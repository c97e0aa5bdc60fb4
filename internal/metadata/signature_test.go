package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tableResolver resolves coded rows from a fixed table keyed by tag and row.
type tableResolver map[[2]uint32]TypeRef

func (r tableResolver) resolveTypeDefOrRef(tag uint32, row uint32, _ sigContext) (TypeRef, error) {
	return r[[2]uint32{tag, row}], nil
}

var testResolver = tableResolver{
	{tagTypeRef, 1}: {Name: "Windows.Foundation.IAsyncOperation`1"},
	{tagTypeDef, 2}: {Name: "Ns.Widget"},
	{tagTypeRef, 3}: {Name: "System.Guid", IsBuiltIn: true},
}

// codedToken builds the compressed TypeDefOrRef token for a row.
func codedToken(tag, row uint32) byte {
	return byte(row<<2 | tag)
}

func TestReadPrimitiveTypes(t *testing.T) {
	cases := map[byte]string{
		0x02: "System.Boolean",
		0x03: "System.Char",
		0x08: "System.Int32",
		0x0b: "System.UInt64",
		0x0d: "System.Double",
		0x0e: "System.String",
		0x1c: "System.Object",
		0x01: "System.Void",
	}
	for element, name := range cases {
		typ, err := newSigReader([]byte{element}, testResolver, sigContext{}).readType()
		require.NoError(t, err)
		assert.Equal(t, TypeRef{Name: name, IsBuiltIn: true}, typ)
	}
}

func TestReadClassGenericAndArrays(t *testing.T) {
	ctx := sigContext{typeParams: []string{"T"}, methodParams: []string{"U"}}

	typ, err := newSigReader([]byte{elemClass, codedToken(tagTypeDef, 2)}, testResolver, ctx).readType()
	require.NoError(t, err)
	assert.Equal(t, "Ns.Widget", typ.Name)

	typ, err = newSigReader([]byte{elemVar, 0}, testResolver, ctx).readType()
	require.NoError(t, err)
	assert.Equal(t, TypeRef{Name: "T", IsGenericParam: true}, typ)

	typ, err = newSigReader([]byte{elemSzArray, elemMVar, 0}, testResolver, ctx).readType()
	require.NoError(t, err)
	assert.Equal(t, TypeRef{Name: "U", IsGenericParam: true, ArrayRank: 1}, typ)

	// IAsyncOperation<Guid[]>
	blob := []byte{elemGenericIns, elemClass, codedToken(tagTypeRef, 1), 1, elemSzArray, elemValueType, codedToken(tagTypeRef, 3)}
	typ, err = newSigReader(blob, testResolver, ctx).readType()
	require.NoError(t, err)
	assert.Equal(t, "Windows.Foundation.IAsyncOperation`1", typ.Name)
	require.Len(t, typ.Args, 1)
	assert.Equal(t, TypeRef{Name: "System.Guid", IsBuiltIn: true, ArrayRank: 1}, typ.Args[0])

	// int32[,] with no sizes or bounds
	typ, err = newSigReader([]byte{elemArray, 0x08, 2, 0, 0}, testResolver, ctx).readType()
	require.NoError(t, err)
	assert.Equal(t, 2, typ.ArrayRank)
}

func TestReadGenericParamOutOfRange(t *testing.T) {
	_, err := newSigReader([]byte{elemVar, 3}, testResolver, sigContext{typeParams: []string{"T"}}).readType()
	require.Error(t, err)
}

func TestReadTruncatedBlob(t *testing.T) {
	_, err := newSigReader([]byte{elemClass}, testResolver, sigContext{}).readType()
	require.Error(t, err)
}

func TestReadMethodSignature(t *testing.T) {
	// instance bool M(string, out int32) with a modopt on the first parameter
	blob := []byte{
		0x20, 2,
		0x02,
		elemCModOpt, codedToken(tagTypeRef, 3), 0x0e,
		elemByRef, 0x08,
	}
	sig, err := newSigReader(blob, testResolver, sigContext{}).readMethod()
	require.NoError(t, err)

	assert.Equal(t, "System.Boolean", sig.returnType.Name)
	require.Len(t, sig.params, 2)
	assert.Equal(t, "System.String", sig.params[0].typ.Name)
	assert.False(t, sig.params[0].byRef)
	assert.Equal(t, "System.Int32", sig.params[1].typ.Name)
	assert.True(t, sig.params[1].byRef)
}

func TestReadGenericMethodSignature(t *testing.T) {
	// !!0 M<T>(!!0)
	blob := []byte{sigGeneric, 1, 1, elemMVar, 0, elemMVar, 0}
	sig, err := newSigReader(blob, testResolver, sigContext{methodParams: []string{"T"}}).readMethod()
	require.NoError(t, err)
	assert.Equal(t, "T", sig.returnType.Name)
	require.Len(t, sig.params, 1)
	assert.True(t, sig.params[0].typ.IsGenericParam)
}

func TestReadFunctionPointerConsumesSignature(t *testing.T) {
	// void M(method int32 *(string), bool)
	blob := []byte{0x00, 2, 0x01, elemFnPtr, 0x00, 1, 0x08, 0x0e, 0x02}
	sig, err := newSigReader(blob, testResolver, sigContext{}).readMethod()
	require.NoError(t, err)
	require.Len(t, sig.params, 2)
	assert.Equal(t, "System.IntPtr", sig.params[0].typ.Name)
	assert.Equal(t, "System.Boolean", sig.params[1].typ.Name)
}

func TestReadFieldSignature(t *testing.T) {
	typ, err := newSigReader([]byte{sigField, 0x0e}, testResolver, sigContext{}).readField()
	require.NoError(t, err)
	assert.Equal(t, "System.String", typ.Name)

	_, err = newSigReader([]byte{0x20, 0x0e}, testResolver, sigContext{}).readField()
	require.Error(t, err)
}

func TestCompressedIntegers(t *testing.T) {
	cases := []struct {
		blob     []byte
		expected uint32
	}{
		{[]byte{0x03}, 0x03},
		{[]byte{0x7f}, 0x7f},
		{[]byte{0x80, 0x80}, 0x80},
		{[]byte{0xbf, 0xff}, 0x3fff},
		{[]byte{0xc0, 0x00, 0x40, 0x00}, 0x4000},
		{[]byte{0xdf, 0xff, 0xff, 0xff}, 0x1fffffff},
	}
	for _, c := range cases {
		value, err := newSigReader(c.blob, testResolver, sigContext{}).compressed()
		require.NoError(t, err)
		assert.Equal(t, c.expected, value)
	}
}
