package generation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"gotsd/internal/config"
	"gotsd/internal/metadata"
)

func builtin(name string) metadata.TypeRef {
	return metadata.TypeRef{Name: "System." + name, IsBuiltIn: true}
}

func ref(name string, args ...metadata.TypeRef) metadata.TypeRef {
	return metadata.TypeRef{Name: name, Args: args}
}

func genericParam(name string) metadata.TypeRef {
	return metadata.TypeRef{Name: name, IsGenericParam: true}
}

func class(namespace, name string) *metadata.TypeDecl {
	return &metadata.TypeDecl{Namespace: namespace, Name: name, Kind: metadata.KindClass, Visibility: metadata.Public}
}

func iface(namespace, name string, generics ...string) *metadata.TypeDecl {
	decl := &metadata.TypeDecl{Namespace: namespace, Name: name, Kind: metadata.KindInterface, Visibility: metadata.Public}
	for _, generic := range generics {
		decl.GenericParams = append(decl.GenericParams, metadata.GenericParam{Name: generic})
	}
	return decl
}

func assemblyOf(path string, types ...*metadata.TypeDecl) *metadata.Assembly {
	assembly := &metadata.Assembly{Path: path, Types: types}
	assembly.Link()
	return assembly
}

// writeDecl renders decl at the top indentation level with others known for
// resolution.
func writeDecl(t *testing.T, cfg config.Config, decl *metadata.TypeDecl, others ...*metadata.TypeDecl) string {
	t.Helper()
	collection, err := NewTypeCollection(cfg)
	require.NoError(t, err)
	collection.AddAssembly(assemblyOf("", append([]*metadata.TypeDecl{decl}, others...)...))

	ctx := &renderContext{
		cfg:      cfg,
		mapper:   NewMapper(cfg, collection.Lookup, nil),
		selector: collection.selector,
	}
	var sb strings.Builder
	require.NoError(t, collection.selector.Write(&sb, decl, ctx))
	return sb.String()
}
