package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/atlasctl/internal/scene"
)

// SceneConfig converts a file config onto scene.DefaultConfig and validates the result.
func (f SceneFileConfig) SceneConfig() (scene.Config, error) {
	cfg := scene.DefaultConfig()
	if id := strings.TrimSpace(f.ID); id != "" {
		cfg.ID = id
	}
	cfg.MetadataURL = strings.TrimSpace(f.MetadataURL)
	cfg.BaseURL = strings.TrimSpace(f.BaseURL)
	cfg.AtlasCount = f.AtlasCount
	if ext := strings.TrimSpace(f.AtlasExt); ext != "" {
		cfg.AtlasExt = ext
	}
	cfg.AtlasURLs = append([]string(nil), f.AtlasURLs...)
	cfg.LinkBase = strings.TrimSpace(f.LinkBase)
	cfg.Panels = ScenePanels(f.Panels, f.PanelNames)

	if raw := strings.TrimSpace(f.FetchTimeout); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return scene.Config{}, fmt.Errorf("parse fetch_timeout: %w", err)
		}
		cfg.FetchTimeout = d
	}
	if raw := strings.TrimSpace(f.ReloadInterval); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return scene.Config{}, fmt.Errorf("parse reload_interval: %w", err)
		}
		cfg.ReloadInterval = d
	}
	if err := cfg.Validate(); err != nil {
		return scene.Config{}, err
	}
	return cfg, nil
}

// ScenePanels prefers explicit names; otherwise count panels are named panel-<i>.
func ScenePanels(count int, names []string) []scene.PanelConfig {
	if len(names) == 0 {
		return scene.PanelsNamed(count)
	}
	out := make([]scene.PanelConfig, 0, len(names))
	for _, name := range names {
		out = append(out, scene.PanelConfig{Name: strings.TrimSpace(name)})
	}
	return out
}
