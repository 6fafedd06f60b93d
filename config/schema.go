package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/thisisjab/eventsearch/search"
)

// LoadSchema reads a schema file and layers it over the built-in schema:
// map entries are added or replaced, lists replace the built-in list.
func LoadSchema(path string) (*search.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read schema file: %w", err)
	}

	return ParseSchema(data)
}

func ParseSchema(data []byte) (*search.Schema, error) {
	cfg := search.DefaultSchemaConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("cannot parse schema: %w", err)
	}

	schema, err := search.NewSchema(cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}

	return schema, nil
}
