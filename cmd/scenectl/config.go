package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/atlasctl/internal/config"
	"github.com/danmuck/atlasctl/internal/scene"
)

type fileConfig struct {
	ID               string   `toml:"id"`
	Addr             string   `toml:"addr"`
	MetadataURL      string   `toml:"metadata_url"`
	BaseURL          string   `toml:"base_url"`
	AtlasCount       int      `toml:"atlas_count"`
	AtlasExt         string   `toml:"atlas_ext"`
	AtlasURLs        []string `toml:"atlas_urls"`
	Panels           int      `toml:"panels"`
	PanelNames       []string `toml:"panel_names"`
	LinkBase         string   `toml:"link_base"`
	FetchTimeout     string   `toml:"fetch_timeout"`
	FetchTimeoutMS   int64    `toml:"fetch_timeout_ms"`
	ReloadInterval   string   `toml:"reload_interval"`
	ReloadIntervalMS int64    `toml:"reload_interval_ms"`
	BundleDir        string   `toml:"bundle_dir"`
	CorsOrigins      []string `toml:"cors_origins"`
	ControlToken     string   `toml:"control_token"`
}

type serviceConfig struct {
	Scene        scene.Config
	Addr         string
	BundleDir    string
	CorsOrigins  []string
	ControlToken string
}

func defaultServiceConfig() serviceConfig {
	return serviceConfig{
		Scene:       scene.DefaultConfig(),
		Addr:        ":9300",
		CorsOrigins: []string{},
	}
}

func loadServiceConfig(path string) (serviceConfig, error) {
	cfg := defaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return serviceConfig{}, fmt.Errorf("load scene config: %w", err)
	}

	if meta.IsDefined("id") {
		if id := strings.TrimSpace(raw.ID); id != "" {
			cfg.Scene.ID = id
		}
	}

	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}

	if meta.IsDefined("metadata_url") {
		cfg.Scene.MetadataURL = strings.TrimSpace(raw.MetadataURL)
	}

	if meta.IsDefined("base_url") {
		cfg.Scene.BaseURL = strings.TrimSpace(raw.BaseURL)
	}

	if meta.IsDefined("atlas_count") {
		cfg.Scene.AtlasCount = raw.AtlasCount
	}

	if meta.IsDefined("atlas_ext") {
		cfg.Scene.AtlasExt = strings.TrimSpace(raw.AtlasExt)
	}

	if meta.IsDefined("atlas_urls") {
		cfg.Scene.AtlasURLs = raw.AtlasURLs
	}

	if meta.IsDefined("panels") {
		cfg.Scene.Panels = scene.PanelsNamed(raw.Panels)
	}

	if meta.IsDefined("panel_names") {
		cfg.Scene.Panels = config.ScenePanels(0, raw.PanelNames)
	}

	if meta.IsDefined("link_base") {
		cfg.Scene.LinkBase = strings.TrimSpace(raw.LinkBase)
	}

	if meta.IsDefined("fetch_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.FetchTimeout))
		if err != nil {
			return serviceConfig{}, fmt.Errorf("parse fetch_timeout: %w", err)
		}
		cfg.Scene.FetchTimeout = d
	}

	if meta.IsDefined("fetch_timeout_ms") {
		cfg.Scene.FetchTimeout = time.Duration(raw.FetchTimeoutMS) * time.Millisecond
	}

	if meta.IsDefined("reload_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ReloadInterval))
		if err != nil {
			return serviceConfig{}, fmt.Errorf("parse reload_interval: %w", err)
		}
		cfg.Scene.ReloadInterval = d
	}

	if meta.IsDefined("reload_interval_ms") {
		cfg.Scene.ReloadInterval = time.Duration(raw.ReloadIntervalMS) * time.Millisecond
	}

	if meta.IsDefined("bundle_dir") {
		cfg.BundleDir = strings.TrimSpace(raw.BundleDir)
	}

	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeOrigins(raw.CorsOrigins)
	}

	if meta.IsDefined("control_token") {
		cfg.ControlToken = strings.TrimSpace(raw.ControlToken)
	}

	if err := cfg.Scene.Validate(); err != nil {
		return serviceConfig{}, err
	}
	return cfg, nil
}

func normalizeOrigins(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(in))
	for _, origin := range in {
		v := strings.TrimSpace(origin)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
