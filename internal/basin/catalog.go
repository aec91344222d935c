package basin

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

// ErrInvalidCatalog reports a catalog file that cannot be used for resolution.
var ErrInvalidCatalog = errors.New("invalid basin catalog")

//go:embed catalogs/amazonas-9-calhas.yaml
var defaultCatalog []byte

// LookupTable maps normalized municipality names to basin names.
type LookupTable map[string]string

// Catalog is one version of the basin list together with its municipality table.
// It is read-only once loaded.
type Catalog struct {
	Version string
	Basins  []string
	Table   LookupTable
}

type catalogFile struct {
	Version string `yaml:"version"`
	Basins  []struct {
		Name           string   `yaml:"name"`
		Municipalities []string `yaml:"municipalities"`
	} `yaml:"basins"`
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded basin catalog: %v", err))
	}
	return c
}

// Load reads a catalog from path, or returns Default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read basin catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if strings.TrimSpace(f.Version) == "" {
		return nil, fmt.Errorf("%w: version is required", ErrInvalidCatalog)
	}
	if len(f.Basins) == 0 {
		return nil, fmt.Errorf("%w: no basins", ErrInvalidCatalog)
	}

	c := &Catalog{Version: f.Version, Table: LookupTable{}}
	seen := map[string]bool{}
	for _, b := range f.Basins {
		name := strings.TrimSpace(b.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: basin without name", ErrInvalidCatalog)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate basin %q", ErrInvalidCatalog, name)
		}
		seen[name] = true
		c.Basins = append(c.Basins, name)

		for _, m := range b.Municipalities {
			if Normalize(m) != m {
				return nil, fmt.Errorf("%w: municipality %q is not normalized", ErrInvalidCatalog, m)
			}
			if prev, ok := c.Table[m]; ok {
				return nil, fmt.Errorf("%w: municipality %q mapped to %q and %q", ErrInvalidCatalog, m, prev, name)
			}
			c.Table[m] = name
		}
	}
	return c, nil
}

// BasinFor returns the basin name for a municipality, normalizing it first.
func (t LookupTable) BasinFor(municipality string) (string, bool) {
	name, ok := t[Normalize(municipality)]
	return name, ok
}
