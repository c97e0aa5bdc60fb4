package metadata

import (
	"encoding/binary"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/microsoft/go-winmd/flags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessorMembers(t *testing.T) {
	str := TypeRef{Name: "System.String", IsBuiltIn: true}
	handler := TypeRef{Name: "Windows.Foundation.TypedEventHandler`2"}
	methods := []*Method{
		{Name: ".ctor", Constructor: true, SpecialName: true},
		{Name: "get_Title", SpecialName: true, ReturnType: str},
		{Name: "put_Title", SpecialName: true, Params: []Parameter{{Name: "value", Type: str}}},
		{Name: "put_Secret", SpecialName: true, Params: []Parameter{{Name: "value", Type: str}}},
		{Name: "get_Default", SpecialName: true, Static: true, ReturnType: str},
		{Name: "add_Closed", SpecialName: true, Params: []Parameter{{Name: "handler", Type: handler}}},
		{Name: "remove_Closed", SpecialName: true, Params: []Parameter{{Name: "token", Type: TypeRef{Name: "Windows.Foundation.EventRegistrationToken"}}}},
		{Name: "get_NotAccessor", ReturnType: str},
	}

	properties, events := accessorMembers(methods)

	require.Len(t, properties, 3)
	assert.Equal(t, "Title", properties[0].Name)
	assert.Equal(t, str, properties[0].Type)
	assert.Equal(t, "Secret", properties[1].Name)
	assert.Equal(t, "Default", properties[2].Name)
	assert.True(t, properties[2].Static)

	require.Len(t, events, 1)
	assert.Equal(t, "Closed", events[0].Name)
	assert.Equal(t, handler, events[0].Handler)
}

func TestDecodeConstant(t *testing.T) {
	le32 := func(v uint32) []byte { return binary.LittleEndian.AppendUint32(nil, v) }
	le64 := func(v uint64) []byte { return binary.LittleEndian.AppendUint64(nil, v) }

	cases := []struct {
		elementType flags.ElementType
		blob        []byte
		expected    string
	}{
		{flags.ElementType_BOOLEAN, []byte{1}, "true"},
		{flags.ElementType_I1, []byte{0xff}, "-1"},
		{flags.ElementType_U1, []byte{0xff}, "255"},
		{flags.ElementType_I2, []byte{0xfe, 0xff}, "-2"},
		{flags.ElementType_I4, le32(uint32(0xffffffff)), "-1"},
		{flags.ElementType_U4, le32(0x80000000), "2147483648"},
		{flags.ElementType_I8, le64(1 << 40), "1099511627776"},
		{flags.ElementType_R8, le64(math.Float64bits(1.5)), "1.5"},
	}
	for _, c := range cases {
		value, ok := decodeConstant(c.elementType, c.blob)
		require.True(t, ok, c.expected)
		assert.Equal(t, c.expected, value)
	}

	_, ok := decodeConstant(flags.ElementType_I4, []byte{1})
	assert.False(t, ok)
	_, ok = decodeConstant(flags.ElementType_STRING, []byte("abc"))
	assert.False(t, ok)
}

func TestQualifyAndBaseName(t *testing.T) {
	assert.Equal(t, "Ns.Type", qualify("Ns", "Type"))
	assert.Equal(t, "Type", qualify("", "Type"))
	assert.Equal(t, "Windows.winmd", baseName(`C:\sdk\Windows.winmd`))
	assert.Equal(t, "Windows.winmd", baseName("/opt/sdk/Windows.winmd"))
}

func TestNewReaderRejectsNonPEFile(t *testing.T) {
	_, err := NewReader("testdata/storage.yaml")
	require.Error(t, err)
}

var win32Assembly = sync.OnceValues(func() (*Assembly, error) {
	// the go-winmd module ships the Win32 metadata as test data
	dir, err := exec.Command("go", "list", "-m", "-f", "{{.Dir}}", "github.com/microsoft/go-winmd").Output()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(strings.TrimSpace(string(dir)), "testdata", "Windows.Win32.winmd")
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return WinMdProvider{}.Load(path)
})

func loadWin32(t *testing.T) (*Assembly, map[string]*TypeDecl) {
	t.Helper()
	if testing.Short() {
		t.Skip("reads the full Win32 metadata")
	}
	assembly, err := win32Assembly()
	if err != nil {
		t.Skipf("Windows.Win32.winmd not available: %v", err)
	}
	byName := make(map[string]*TypeDecl)
	assembly.Walk(func(t *TypeDecl) {
		if _, found := byName[t.FullName()]; !found {
			byName[t.FullName()] = t
		}
	})
	return assembly, byName
}

func fieldNamed(t *testing.T, decl *TypeDecl, name string) *Field {
	t.Helper()
	for _, field := range decl.Fields {
		if field.Name == name {
			return field
		}
	}
	require.Failf(t, "missing field", "%s has no field %s", decl.FullName(), name)
	return nil
}

func TestReadAssemblyNestedTypeReferences(t *testing.T) {
	_, byName := loadWin32(t)

	overlapped := byName["Windows.Win32.System.IO.OVERLAPPED"]
	require.NotNil(t, overlapped)
	assert.Equal(t, KindInterface, overlapped.Kind)
	assert.Equal(t, TypeRef{Name: "System.UIntPtr", IsBuiltIn: true}, fieldNamed(t, overlapped, "Internal").Type)
	assert.Equal(t, "Windows.Win32.Foundation.HANDLE", fieldNamed(t, overlapped, "hEvent").Type.Name)

	unionName := "Windows.Win32.System.IO.OVERLAPPED/_Anonymous_e__Union"
	assert.Equal(t, unionName, fieldNamed(t, overlapped, "Anonymous").Type.Name)
	union := byName[unionName]
	require.NotNil(t, union)
	assert.Same(t, overlapped, union.DeclaringType)
	assert.True(t, union.IsPublic())

	structName := unionName + "/_Anonymous_e__Struct"
	assert.Equal(t, structName, fieldNamed(t, union, "Anonymous").Type.Name)
	require.NotNil(t, byName[structName])
	assert.Same(t, union, byName[structName].DeclaringType)
}

func TestReadAssemblyNestedReferencesResolve(t *testing.T) {
	assembly, byName := loadWin32(t)

	nestedRefs, unresolved := 0, []string(nil)
	assembly.Walk(func(decl *TypeDecl) {
		for _, field := range decl.Fields {
			if !strings.Contains(field.Type.Name, "/") {
				continue
			}
			nestedRefs++
			if byName[field.Type.Name] == nil {
				unresolved = append(unresolved, decl.FullName()+"."+field.Name+" -> "+field.Type.Name)
			}
		}
	})
	assert.Greater(t, nestedRefs, 1000)
	assert.Empty(t, unresolved)
}

func TestReadAssemblyEnumConstants(t *testing.T) {
	_, byName := loadWin32(t)

	win32Error := byName["Windows.Win32.Foundation.WIN32_ERROR"]
	require.NotNil(t, win32Error)
	assert.Equal(t, KindEnum, win32Error.Kind)

	valueField := fieldNamed(t, win32Error, "value__")
	assert.True(t, valueField.SpecialName)
	assert.Equal(t, "258", fieldNamed(t, win32Error, "WAIT_TIMEOUT").Value)
	assert.Equal(t, "4294967295", fieldNamed(t, win32Error, "WAIT_FAILED").Value)
	assert.True(t, fieldNamed(t, win32Error, "NO_ERROR").Static)
}

func TestReadAssemblyMethodParameters(t *testing.T) {
	_, byName := loadWin32(t)

	apis := byName["Windows.Win32.System.Threading.Apis"]
	require.NotNil(t, apis)
	assert.Empty(t, apis.GenericParams)

	var getExitCode *Method
	for _, method := range apis.Methods {
		if method.Name == "GetExitCodeProcess" {
			getExitCode = method
		}
	}
	require.NotNil(t, getExitCode)
	assert.True(t, getExitCode.Static)
	assert.Equal(t, "Windows.Win32.Foundation.BOOL", getExitCode.ReturnType.Name)

	require.Len(t, getExitCode.Params, 2)
	assert.Equal(t, "hProcess", getExitCode.Params[0].Name)
	assert.Equal(t, "Windows.Win32.Foundation.HANDLE", getExitCode.Params[0].Type.Name)
	assert.False(t, getExitCode.Params[0].Out)
	assert.Equal(t, "lpExitCode", getExitCode.Params[1].Name)
	assert.Equal(t, TypeRef{Name: "System.UInt32", IsBuiltIn: true}, getExitCode.Params[1].Type)
	assert.True(t, getExitCode.Params[1].Out)
}
