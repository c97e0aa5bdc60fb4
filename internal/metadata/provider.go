package metadata

import (
	"os"
	"path/filepath"
	"strings"

	"gotsd/internal/errs"
)

// Provider turns one input file into a type model snapshot.
type Provider interface {
	Name() string
	Load(path string) (*Assembly, error)
}

var providersByExtension = map[string]Provider{
	".winmd": WinMdProvider{},
	".dll":   WinMdProvider{},
	".json":  JSONProvider{},
	".yaml":  YAMLProvider{},
	".yml":   YAMLProvider{},
}

// ProviderFor returns the provider registered for the file extension of path.
func ProviderFor(path string) (Provider, error) {
	provider, found := providersByExtension[strings.ToLower(filepath.Ext(path))]
	if !found {
		return nil, errs.WithHint(
			errs.Mark(errs.Newf("no metadata provider for %q", path), errs.ErrUnsupportedInput),
			"supported inputs: .winmd, .dll, .json, .yaml, .yml")
	}
	return provider, nil
}

// Open checks that path exists and loads it with the matching provider.
func Open(path string) (*Assembly, error) {
	if err := checkInput(path); err != nil {
		return nil, err
	}
	provider, err := ProviderFor(path)
	if err != nil {
		return nil, err
	}
	assembly, err := provider.Load(path)
	if err != nil {
		return nil, errs.Wrapf(err, "%s provider failed to load %s", provider.Name(), path)
	}
	assembly.Path = path
	assembly.Link()
	return assembly, nil
}

func checkInput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errs.Mark(errs.Newf("could not find %q", path), errs.ErrInputNotFound)
		}
		return errs.Wrapf(err, "failed to stat %s", path)
	}
	if info.IsDir() {
		return errs.Mark(errs.Newf("%q is a directory", path), errs.ErrInputNotFound)
	}
	return nil
}
