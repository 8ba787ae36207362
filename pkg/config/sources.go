package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/enrollment-kpi/internal/models"
)

// LoadSourceLayout reads the base layout from a YAML file. A missing file yields the
// built-in layout and found=false.
func LoadSourceLayout(path string) (layout models.SourceLayout, found bool, err error) {
	if path == "" {
		return models.DefaultSourceLayout(), false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.DefaultSourceLayout(), false, nil
		}
		return models.SourceLayout{}, false, fmt.Errorf("read source layout: %w", err)
	}

	if err := yaml.Unmarshal(data, &layout); err != nil {
		return models.SourceLayout{}, false, fmt.Errorf("parse source layout: %w", err)
	}
	if len(layout.Bases) == 0 {
		return models.SourceLayout{}, true, fmt.Errorf("source layout %s declares no bases", path)
	}
	return layout, true, nil
}

// WriteSourceLayout renders the layout as YAML.
func WriteSourceLayout(path string, layout models.SourceLayout) error {
	data, err := yaml.Marshal(layout)
	if err != nil {
		return fmt.Errorf("marshal source layout: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write source layout: %w", err)
	}
	return nil
}
