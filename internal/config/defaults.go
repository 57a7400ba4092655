package config

import "strings"

const (
	defaultAppEnv           = "dev"
	defaultAppLogLevel      = "info"
	defaultAppHTTPAddr      = ":9980"
	defaultAppLogPath       = "data/logs/choromap.log"
	defaultFiguresPath      = "data/db/figures.db"
	defaultCachePath        = "data/db/source_cache.db"
	defaultBasemapStyle     = "carto-positron"
	defaultBasemapTokenPath = "configs/.mapbox_token"
	defaultRenderWidth      = 1000
	defaultRenderHeight     = 700
	defaultRenderColorscale = "Viridis"
	defaultRenderOpacity    = 0.8
	defaultPNGTimeout       = 20
	defaultRefreshMinutes   = 360
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.Basemap.applyDefaults(keys)
	c.Render.applyDefaults(keys)
	c.Refresh.applyDefaults(keys)
	if len(c.Sources) == 0 {
		c.Sources = defaultSources()
	}
	for i := range c.Sources {
		c.Sources[i].normalize()
	}
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.figures_path", &s.FiguresPath, defaultFiguresPath),
		stringFieldDefault("store.cache_path", &s.CachePath, defaultCachePath),
	)
}

func (b *BasemapConfig) applyDefaults(keys keySet) {
	if b == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("basemap.style", &b.Style, defaultBasemapStyle),
		stringFieldDefault("basemap.token_path", &b.TokenPath, defaultBasemapTokenPath),
	)
}

func (r *RenderConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "render.width",
			need:  func() bool { return r.Width <= 0 },
			apply: func() { r.Width = defaultRenderWidth },
		},
		fieldDefault{
			key:   "render.height",
			need:  func() bool { return r.Height <= 0 },
			apply: func() { r.Height = defaultRenderHeight },
		},
		stringFieldDefault("render.colorscale", &r.Colorscale, defaultRenderColorscale),
		fieldDefault{
			key:   "render.opacity",
			need:  func() bool { return r.Opacity <= 0 || r.Opacity > 1 },
			apply: func() { r.Opacity = defaultRenderOpacity },
		},
		fieldDefault{
			key:   "render.png_timeout_seconds",
			need:  func() bool { return r.PNGTimeoutSeconds <= 0 },
			apply: func() { r.PNGTimeoutSeconds = defaultPNGTimeout },
		},
	)
}

func (r *RefreshConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "refresh.interval_minutes",
			need:  func() bool { return r.IntervalMinutes <= 0 },
			apply: func() { r.IntervalMinutes = defaultRefreshMinutes },
		},
		boolFieldDefault("refresh.on_start", &r.OnStart, true),
	)
}

func (s *SourceConfig) normalize() {
	s.Name = strings.TrimSpace(s.Name)
	s.URL = strings.TrimSpace(s.URL)
	s.Kind = strings.ToLower(strings.TrimSpace(s.Kind))
	s.IDKey = strings.TrimSpace(s.IDKey)
	s.IDColumn = strings.TrimSpace(s.IDColumn)
	if s.Kind == "geojson" && s.IDKey == "" {
		s.IDKey = "id"
	}
}

// defaultSources mirrors the canonical county-unemployment and Montreal
// election examples.
func defaultSources() []SourceConfig {
	return []SourceConfig{
		{
			Name:  "us-counties",
			URL:   "https://raw.githubusercontent.com/plotly/datasets/master/geojson-counties-fips.json",
			Kind:  "geojson",
			IDKey: "id",
		},
		{
			Name:     "us-county-unemployment",
			URL:      "https://raw.githubusercontent.com/plotly/datasets/master/fips-unemp-16.csv",
			Kind:     "table",
			IDColumn: "fips",
		},
		{
			Name:  "montreal-districts",
			URL:   "https://raw.githubusercontent.com/plotly/datasets/master/election.geojson",
			Kind:  "geojson",
			IDKey: "properties.district",
		},
		{
			Name:     "montreal-election",
			URL:      "https://raw.githubusercontent.com/plotly/datasets/master/election.csv",
			Kind:     "table",
			IDColumn: "district",
		},
	}
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
