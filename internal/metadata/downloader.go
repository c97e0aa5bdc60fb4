package metadata

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-json-experiment/json"
	"github.com/hashicorp/go-version"
	"go.uber.org/zap"

	"gotsd/internal/errs"
	"gotsd/internal/logger"
)

const definitionAddress string = "https://api.nuget.org/v3/index.json"

// Downloader fetches the newest stable release of a nuget package and extracts
// its metadata file.
type Downloader struct {
	// IndexURL is the nuget service index. Defaults to nuget.org.
	IndexURL string
	Client   *http.Client
	Log      *zap.SugaredLogger
}

// DownloadMetadata saves the .winmd carried by nugetName to metadataFileName
// and returns the package version it came from.
func (d Downloader) DownloadMetadata(ctx context.Context, nugetName string, metadataFileName string) (string, error) {
	nugetName = strings.ToLower(nugetName)
	log := d.Log
	if log == nil {
		log = logger.Nop()
	}

	baseAddress, err := d.getBaseAddress(ctx)
	if err != nil {
		return "", err
	}

	versionsResponse, err := d.queryGet(ctx, fmt.Sprintf("%s%s/index.json", baseAddress, nugetName))
	if err != nil {
		return "", err
	}
	versions, err := parse[map[string][]string](versionsResponse)
	if err != nil {
		return "", errs.Mark(errs.Wrap(err, "invalid version list"), errs.ErrDownload)
	}

	latest, err := latestVersion(versions["versions"])
	if err != nil {
		return "", err
	}
	log.Infow("Downloading metadata package", "package", nugetName, logger.FieldVersion, latest)

	nugetBytes, err := d.queryGet(ctx, fmt.Sprintf("%s%s/%s/%s.%s.nupkg", baseAddress, nugetName, latest, nugetName, latest))
	if err != nil {
		return "", err
	}

	metadataBytes, entryName, err := extractWinMd(nugetBytes)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(metadataFileName, metadataBytes, 0644); err != nil {
		return "", errs.Wrapf(err, "failed to write %s", metadataFileName)
	}
	log.Infow("Saved metadata", logger.FieldPath, metadataFileName, "entry", entryName)
	return latest, nil
}

// latestVersion orders versions semantically, preferring stable releases.
func latestVersion(versionStrings []string) (string, error) {
	orderedVersions := make([]*version.Version, 0, len(versionStrings))
	for _, versionString := range versionStrings {
		parsed, err := version.NewVersion(versionString)
		if err != nil {
			return "", errs.Mark(errs.Newf("error parsing version: %s", versionString), errs.ErrDownload)
		}
		orderedVersions = append(orderedVersions, parsed)
	}
	if len(orderedVersions) == 0 {
		return "", errs.Mark(errs.New("package has no published versions"), errs.ErrDownload)
	}

	sort.Sort(version.Collection(orderedVersions))
	for i := len(orderedVersions) - 1; i >= 0; i-- {
		if orderedVersions[i].Prerelease() == "" {
			return orderedVersions[i].Original(), nil
		}
	}
	return orderedVersions[len(orderedVersions)-1].Original(), nil
}

// extractWinMd returns Windows.winmd when the package carries it, otherwise the
// first .winmd entry.
func extractWinMd(nugetBytes []byte) ([]byte, string, error) {
	bytesReader := bytes.NewReader(nugetBytes)
	nuget, err := zip.NewReader(bytesReader, int64(bytesReader.Len()))
	if err != nil {
		return nil, "", errs.Mark(errs.Wrap(err, "package is not a zip archive"), errs.ErrDownload)
	}

	var chosen *zip.File
	for _, file := range nuget.File {
		if !strings.EqualFold(filepath.Ext(file.Name), ".winmd") {
			continue
		}
		if chosen == nil || strings.EqualFold(filepath.Base(file.Name), "Windows.winmd") {
			chosen = file
		}
	}
	if chosen == nil {
		return nil, "", errs.Mark(errs.New("package contains no .winmd file"), errs.ErrDownload)
	}

	reader, err := chosen.Open()
	if err != nil {
		return nil, "", err
	}
	defer reader.Close()
	metadataBytes, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", err
	}
	return metadataBytes, chosen.Name, nil
}

func (d Downloader) getBaseAddress(ctx context.Context) (string, error) {
	indexURL := d.IndexURL
	if indexURL == "" {
		indexURL = definitionAddress
	}
	response, err := d.queryGet(ctx, indexURL)
	if err != nil {
		return "", err
	}
	index, err := parse[nugetIndex](response)
	if err != nil {
		return "", errs.Mark(errs.Wrap(err, "invalid nuget service index"), errs.ErrDownload)
	}

	for _, resource := range index.Resources {
		if strings.Contains(resource.Type, "PackageBaseAddress") {
			return resource.Id, nil
		}
	}
	return "", errs.Mark(errs.New("nuget service index has no PackageBaseAddress resource"), errs.ErrDownload)
}

func parse[T interface{}](source []byte) (T, error) {
	var parsedBody T
	err := json.Unmarshal(source, &parsedBody)
	return parsedBody, err
}

func (d Downloader) queryGet(ctx context.Context, url string) ([]byte, error) {
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	response, err := client.Do(request)
	if err != nil {
		return nil, errs.Mark(errs.Wrapf(err, "GET %s", url), errs.ErrDownload)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, errs.Mark(errs.Newf("GET %s: unexpected status %s", url, response.Status), errs.ErrDownload)
	}
	return io.ReadAll(response.Body)
}

type nugetIndex struct {
	Resources []nugetResource `json:"resources"`
}

type nugetResource struct {
	Id   string `json:"'@id'"`
	Type string `json:"'@type'"`
}
