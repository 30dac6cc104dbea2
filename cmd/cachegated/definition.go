package main

import (
	"fmt"
	"os"

	"github.com/cachegate/cachegate/internal/cachedef"
	"gopkg.in/yaml.v3"
)

// loadDefinitionFile reads a single CacheDefinition from a YAML (or JSON,
// since JSON is accepted as YAML flow syntax) file.
func loadDefinitionFile(path string) (cachedef.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cachedef.Definition{}, fmt.Errorf("read definition file: %w", err)
	}
	var def cachedef.Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return cachedef.Definition{}, fmt.Errorf("parse definition file: %w", err)
	}
	return def, nil
}
