package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-json-experiment/json"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gotsd/internal/errs"
)

const widgetSnapshot = `{
  "name": "Contoso",
  "types": [
    {
      "namespace": "Contoso",
      "name": "Widget",
      "kind": "class",
      "properties": [
        {"name": "Name", "type": {"name": "System.String", "builtin": true}},
        {"name": "Owner", "type": {"name": "Contoso.Missing"}}
      ]
    }
  ]
}`

func newTestRoot(out *bytes.Buffer) *cobra.Command {
	root := &cobra.Command{
		Use:           "gotsd",
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE:          Render,
	}
	root.PersistentFlags().CountP("verbose", "v", "")
	root.PersistentFlags().String("config", "", "")
	root.PersistentFlags().Bool("log-json", false, "")
	AddRenderFlags(root.Flags())
	root.AddCommand(VersionCmd)
	root.SetOut(out)
	root.SetErr(&bytes.Buffer{})
	return root
}

func writeSnapshot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contoso.json")
	require.NoError(t, os.WriteFile(path, []byte(widgetSnapshot), 0644))
	return path
}

func TestRenderToStdout(t *testing.T) {
	var out bytes.Buffer
	root := newTestRoot(&out)
	root.SetArgs([]string{writeSnapshot(t)})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "declare namespace Contoso {")
	assert.Contains(t, out.String(), "export class Widget {")
	assert.Contains(t, out.String(), "name: string;")
	assert.Contains(t, out.String(), "owner: any;")
}

func TestRenderWritesFilesFromFlags(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "contoso.d.ts")
	goOutput := filepath.Join(dir, "decls", "decls.go")

	var out bytes.Buffer
	root := newTestRoot(&out)
	root.SetArgs([]string{"--special-types", "--camel-case=false", "-o", output,
		"--go-output", goOutput, "--go-package", "decls", writeSnapshot(t)})

	require.NoError(t, root.Execute())
	assert.Empty(t, out.String())

	document, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(document), "declare namespace Tsd.WinRT {")
	assert.Contains(t, string(document), "Name: string;")

	source, err := os.ReadFile(goOutput)
	require.NoError(t, err)
	assert.Contains(t, string(source), "package decls")
}

func TestRenderStrictFails(t *testing.T) {
	var out bytes.Buffer
	root := newTestRoot(&out)
	root.SetArgs([]string{"--strict", writeSnapshot(t)})

	err := root.Execute()
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrTypeNotFound))
}

func TestRenderMissingInput(t *testing.T) {
	var out bytes.Buffer
	root := newTestRoot(&out)
	root.SetArgs([]string{filepath.Join(t.TempDir(), "Windows.winmd")})

	err := root.Execute()
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrInputNotFound))
}

func TestRenderAcceptsPositionalInputBesideSubcommands(t *testing.T) {
	var out bytes.Buffer
	root := newTestRoot(&out)
	input := writeSnapshot(t)
	root.SetArgs([]string{input, input})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "export class Widget {")
}

func TestVersionJSON(t *testing.T) {
	var out bytes.Buffer
	root := newTestRoot(&out)
	root.SetArgs([]string{"version", "--json"})

	require.NoError(t, root.Execute())
	var info versionInfo
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.Platform, "/")
}
