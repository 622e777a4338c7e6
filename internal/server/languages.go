package server

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed languages.yaml
var languagesYAML []byte

// Language is one entry of the supported language catalog.
type Language struct {
	Code   string `yaml:"code" json:"code"`
	Name   string `yaml:"name" json:"name"`
	Native string `yaml:"native" json:"native"`
	Flag   string `yaml:"flag" json:"flag"`
}

// LoadLanguages parses the embedded language catalog.
func LoadLanguages() ([]Language, error) {
	var catalog struct {
		Languages []Language `yaml:"languages"`
	}
	if err := yaml.Unmarshal(languagesYAML, &catalog); err != nil {
		return nil, fmt.Errorf("parse language catalog: %w", err)
	}
	if len(catalog.Languages) == 0 {
		return nil, fmt.Errorf("language catalog is empty")
	}
	return catalog.Languages, nil
}
