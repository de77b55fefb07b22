package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/raphaelgruber/reqjourney-go/internal/models"
)

// systemsFile is the YAML layout of a catalog override:
//
//	systems:
//	  - Oracle ERP
//	  - SAP S/4HANA
type systemsFile struct {
	Systems []string `yaml:"systems"`
}

// LoadSystems reads the system catalog from path. An empty path returns the
// built-in catalog.
func LoadSystems(path string) (*models.Catalog, error) {
	if path == "" {
		return models.NewCatalog(nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read systems file: %w", err)
	}
	var f systemsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse systems file: %w", err)
	}
	if len(f.Systems) == 0 {
		return nil, fmt.Errorf("systems file %s lists no systems", path)
	}
	return models.NewCatalog(f.Systems), nil
}
