package config

import "strings"

// Config is the top-level configuration for choromap.
type Config struct {
	App     AppConfig      `mapstructure:"app"`
	Store   StoreConfig    `mapstructure:"store"`
	Basemap BasemapConfig  `mapstructure:"basemap"`
	Render  RenderConfig   `mapstructure:"render"`
	Refresh RefreshConfig  `mapstructure:"refresh"`
	Sources []SourceConfig `mapstructure:"sources"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
	HTTPAddr string `mapstructure:"http_addr"`
	LogPath  string `mapstructure:"log_path"`
}

type StoreConfig struct {
	FiguresPath string `mapstructure:"figures_path"`
	CachePath   string `mapstructure:"cache_path"`
}

// BasemapConfig selects the background style and where the access token
// lives. Token-gated styles fail fast when the file is absent.
type BasemapConfig struct {
	Style     string `mapstructure:"style"`
	TokenPath string `mapstructure:"token_path"`
}

type RenderConfig struct {
	Width             int     `mapstructure:"width"`
	Height            int     `mapstructure:"height"`
	Colorscale        string  `mapstructure:"colorscale"`
	Opacity           float64 `mapstructure:"opacity"`
	PNGTimeoutSeconds int     `mapstructure:"png_timeout_seconds"`
}

type RefreshConfig struct {
	IntervalMinutes int  `mapstructure:"interval_minutes"`
	OnStart         bool `mapstructure:"on_start"`
}

// SourceConfig describes one remote dataset. Kind is "geojson" or "table".
// IDKey is a dotted path into each feature (geojson sources); IDColumn names
// the identifier column (table sources).
type SourceConfig struct {
	Name     string `mapstructure:"name"`
	URL      string `mapstructure:"url"`
	Kind     string `mapstructure:"kind"`
	IDKey    string `mapstructure:"id_key"`
	IDColumn string `mapstructure:"id_column"`
}

// Source lookup by name, nil when absent.
func (c *Config) Source(name string) *SourceConfig {
	name = strings.TrimSpace(name)
	for i := range c.Sources {
		if strings.EqualFold(c.Sources[i].Name, name) {
			return &c.Sources[i]
		}
	}
	return nil
}

// keySet tracks which config paths were set explicitly in the file, so
// defaults never clobber deliberate zero values.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault describes the default rule for a single field.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
