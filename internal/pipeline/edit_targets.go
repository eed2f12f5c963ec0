package pipeline

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const editTargetsEnv = "DARX_EDIT_TARGETS_YAML"

//go:embed edit_targets.yaml
var defaultEditTargets []byte

// EditTargets maps an edit category to the files it may change.
type EditTargets struct {
	Default    []string            `yaml:"default"`
	Categories map[string][]string `yaml:"categories"`
}

// For returns the target paths for category, the default set when unknown.
func (t *EditTargets) For(category string) []string {
	if paths, ok := t.Categories[strings.TrimSpace(category)]; ok && len(paths) > 0 {
		return paths
	}
	return t.Default
}

// Known reports whether category has its own entry.
func (t *EditTargets) Known(category string) bool {
	_, ok := t.Categories[strings.TrimSpace(category)]
	return ok
}

// LoadEditTargets reads the table from DARX_EDIT_TARGETS_YAML when set,
// otherwise the embedded default.
func LoadEditTargets() (*EditTargets, error) {
	data := defaultEditTargets
	if p := strings.TrimSpace(os.Getenv(editTargetsEnv)); p != "" {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", editTargetsEnv, err)
		}
		data = b
	}
	return ParseEditTargets(data)
}

func ParseEditTargets(data []byte) (*EditTargets, error) {
	var t EditTargets
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse edit targets: %w", err)
	}
	if len(t.Default) == 0 {
		return nil, fmt.Errorf("edit targets: default is empty")
	}
	for cat, paths := range t.Categories {
		if len(paths) == 0 {
			return nil, fmt.Errorf("edit targets: category %q has no paths", cat)
		}
	}
	return &t, nil
}
