package config

import (
	"fmt"
	"strings"
)

// validate performs basic sanity checks after defaults are applied.
func validate(c *Config) error {
	if err := c.Render.validate(); err != nil {
		return err
	}
	if err := validateSources(c.Sources); err != nil {
		return err
	}
	return nil
}

func (r *RenderConfig) validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("render.width and render.height must be > 0")
	}
	if r.Opacity <= 0 || r.Opacity > 1 {
		return fmt.Errorf("render.opacity must be in (0,1], got %v", r.Opacity)
	}
	return nil
}

func validateSources(sources []SourceConfig) error {
	seen := make(map[string]struct{}, len(sources))
	for i, src := range sources {
		name := strings.ToLower(strings.TrimSpace(src.Name))
		if name == "" {
			return fmt.Errorf("sources[%d] missing name", i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("sources contains duplicate name: %s", src.Name)
		}
		seen[name] = struct{}{}
		if strings.TrimSpace(src.URL) == "" {
			return fmt.Errorf("sources.%s missing url", src.Name)
		}
		switch src.Kind {
		case "geojson":
			if strings.TrimSpace(src.IDKey) == "" {
				return fmt.Errorf("sources.%s (geojson) missing id_key", src.Name)
			}
		case "table":
			if strings.TrimSpace(src.IDColumn) == "" {
				return fmt.Errorf("sources.%s (table) missing id_column", src.Name)
			}
		default:
			return fmt.Errorf("sources.%s has unknown kind %q (want geojson or table)", src.Name, src.Kind)
		}
	}
	return nil
}
