package entities

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Overrides lets the user rename or hide individual entities without touching
// the vendor-side configuration. Keyed by entity unique id.
type Overrides map[string]Override

// Override customizes one entity.
type Override struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Disabled bool   `yaml:"disabled"`
}

type overridesFile struct {
	Entities []Override `yaml:"entities"`
}

// LoadOverrides parses an overrides file.
func LoadOverrides(r io.Reader) (Overrides, error) {
	var f overridesFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("invalid overrides: %w", err)
	}
	overrides := make(Overrides, len(f.Entities))
	for _, o := range f.Entities {
		if o.ID == "" {
			return nil, fmt.Errorf("invalid overrides: entry without id")
		}
		overrides[o.ID] = o
	}
	return overrides, nil
}

// LoadOverridesFile reads an overrides file from disk. A missing file is not
// an error: it means no overrides.
func LoadOverridesFile(path string) (Overrides, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Overrides{}, nil
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return LoadOverrides(f)
}

func (o Overrides) name(id, fallback string) string {
	if entry, ok := o[id]; ok && entry.Name != "" {
		return entry.Name
	}
	return fallback
}

func (o Overrides) disabled(id string) bool {
	entry, ok := o[id]
	return ok && entry.Disabled
}
