package metadata

import (
	"os"

	"gotsd/internal/errs"

	"github.com/go-json-experiment/json"
	"gopkg.in/yaml.v3"
)

// JSONProvider reads a type model serialized as JSON.
type JSONProvider struct{}

func (JSONProvider) Name() string { return "json" }

func (JSONProvider) Load(path string) (*Assembly, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseJSON(data)
}

// ParseJSON decodes a JSON snapshot.
func ParseJSON(data []byte) (*Assembly, error) {
	var assembly Assembly
	if err := json.Unmarshal(data, &assembly); err != nil {
		return nil, errs.Wrap(err, "invalid JSON snapshot")
	}
	assembly.Link()
	if err := validate(&assembly); err != nil {
		return nil, err
	}
	return &assembly, nil
}

// YAMLProvider reads a type model serialized as YAML.
type YAMLProvider struct{}

func (YAMLProvider) Name() string { return "yaml" }

func (YAMLProvider) Load(path string) (*Assembly, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseYAML(data)
}

// ParseYAML decodes a YAML snapshot.
func ParseYAML(data []byte) (*Assembly, error) {
	var assembly Assembly
	if err := yaml.Unmarshal(data, &assembly); err != nil {
		return nil, errs.Wrap(err, "invalid YAML snapshot")
	}
	assembly.Link()
	if err := validate(&assembly); err != nil {
		return nil, err
	}
	return &assembly, nil
}

func validate(assembly *Assembly) error {
	var err error
	assembly.Walk(func(t *TypeDecl) {
		if err != nil {
			return
		}
		if t.Name == "" {
			err = errs.Newf("type without a name in namespace %q", t.Namespace)
			return
		}
		switch t.Kind {
		case KindClass, KindInterface, KindEnum, KindDelegate:
		case "":
			t.Kind = KindClass
		default:
			err = errs.Newf("type %s has unknown kind %q", t.FullName(), t.Kind)
		}
	})
	return err
}
