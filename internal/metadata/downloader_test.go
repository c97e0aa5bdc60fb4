package metadata

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gotsd/internal/errs"
)

func nupkg(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buffer bytes.Buffer
	archive := zip.NewWriter(&buffer)
	for name, content := range entries {
		writer, err := archive.Create(name)
		require.NoError(t, err)
		_, err = writer.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, archive.Close())
	return buffer.Bytes()
}

func nugetServer(t *testing.T, versions string, pkg []byte) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/index.json", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"version": "3.0.0", "resources": [
			{"@id": "%s/search", "@type": "SearchQueryService"},
			{"@id": "%s/flat/", "@type": "PackageBaseAddress/3.0.0"}
		]}`, server.URL, server.URL)
	})
	mux.HandleFunc("/flat/contoso.sdk/index.json", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, versions)
	})
	mux.HandleFunc("/flat/contoso.sdk/10.0.1/contoso.sdk.10.0.1.nupkg", func(w http.ResponseWriter, _ *http.Request) {
		w.Write(pkg)
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestDownloadMetadata(t *testing.T) {
	pkg := nupkg(t, map[string]string{
		"lib/uap10.0/Contoso.Extra.winmd": "extra",
		"lib/uap10.0/Windows.winmd":       "windows",
		"README.md":                       "readme",
	})
	server := nugetServer(t, `{"versions": ["9.0.0", "10.0.1", "11.0.0-preview1"]}`, pkg)

	destination := filepath.Join(t.TempDir(), "Windows.winmd")
	downloader := Downloader{IndexURL: server.URL + "/index.json", Client: server.Client()}

	version, err := downloader.DownloadMetadata(context.Background(), "Contoso.SDK", destination)
	require.NoError(t, err)
	assert.Equal(t, "10.0.1", version)

	written, err := os.ReadFile(destination)
	require.NoError(t, err)
	assert.Equal(t, "windows", string(written))
}

func TestDownloadMetadataMissingPackage(t *testing.T) {
	server := nugetServer(t, `{"versions": ["10.0.1"]}`, nil)
	downloader := Downloader{IndexURL: server.URL + "/index.json", Client: server.Client()}

	_, err := downloader.DownloadMetadata(context.Background(), "Other.Package", filepath.Join(t.TempDir(), "x.winmd"))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ErrDownload))
	assert.Contains(t, err.Error(), "404")
}

func TestLatestVersion(t *testing.T) {
	latest, err := latestVersion([]string{"1.2.0", "1.10.0", "1.9.3", "2.0.0-rc.1"})
	require.NoError(t, err)
	assert.Equal(t, "1.10.0", latest)

	latest, err = latestVersion([]string{"2.0.0-alpha", "2.0.0-beta"})
	require.NoError(t, err)
	assert.Equal(t, "2.0.0-beta", latest)

	_, err = latestVersion(nil)
	assert.True(t, errs.Is(err, errs.ErrDownload))

	_, err = latestVersion([]string{"not a version"})
	assert.True(t, errs.Is(err, errs.ErrDownload))
}

func TestExtractWinMd(t *testing.T) {
	data, name, err := extractWinMd(nupkg(t, map[string]string{"lib/Contoso.winmd": "contoso"}))
	require.NoError(t, err)
	assert.Equal(t, "lib/Contoso.winmd", name)
	assert.Equal(t, "contoso", string(data))

	_, _, err = extractWinMd(nupkg(t, map[string]string{"lib/Contoso.dll": "dll"}))
	assert.True(t, errs.Is(err, errs.ErrDownload))

	_, _, err = extractWinMd([]byte("not a zip"))
	assert.True(t, errs.Is(err, errs.ErrDownload))
}
