package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

type ViewerConfig struct {
	Name        string   `toml:"name"`
	Addr        string   `toml:"addr"`
	BundleDir   string   `toml:"bundle_dir"`
	BasePath    string   `toml:"base_path"`
	CorsOrigins []string `toml:"cors_origins"`
}

// SceneFileConfig is the on-disk scene description shared by scenectl and configgen.
type SceneFileConfig struct {
	ID             string   `toml:"id"`
	Addr           string   `toml:"addr"`
	MetadataURL    string   `toml:"metadata_url"`
	BaseURL        string   `toml:"base_url"`
	AtlasCount     int      `toml:"atlas_count"`
	AtlasExt       string   `toml:"atlas_ext"`
	AtlasURLs      []string `toml:"atlas_urls"`
	Panels         int      `toml:"panels"`
	PanelNames     []string `toml:"panel_names"`
	LinkBase       string   `toml:"link_base"`
	FetchTimeout   string   `toml:"fetch_timeout"`
	ReloadInterval string   `toml:"reload_interval"`
	BundleDir      string   `toml:"bundle_dir"`
	CorsOrigins    []string `toml:"cors_origins"`
	ControlToken   string   `toml:"control_token"`
}

func LoadViewerConfig(path string) (ViewerConfig, error) {
	var cfg ViewerConfig
	if err := loadToml(path, &cfg); err != nil {
		return ViewerConfig{}, err
	}
	if cfg.Name == "" {
		cfg.Name = "atlas-viewer"
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9200"
	}
	if err := ValidateViewerConfig(cfg); err != nil {
		return ViewerConfig{}, err
	}
	return cfg, nil
}

func LoadSceneConfig(path string) (SceneFileConfig, error) {
	var cfg SceneFileConfig
	if err := loadToml(path, &cfg); err != nil {
		return SceneFileConfig{}, err
	}
	if cfg.ID == "" {
		cfg.ID = "scene.local"
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9300"
	}
	if err := ValidateSceneConfig(cfg); err != nil {
		return SceneFileConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateViewerConfig(cfg ViewerConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("viewer config missing name")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("viewer config missing addr")
	}
	if strings.TrimSpace(cfg.BundleDir) == "" {
		return fmt.Errorf("viewer config missing bundle_dir")
	}
	if bp := strings.TrimSpace(cfg.BasePath); bp != "" && !strings.HasPrefix(bp, "/") {
		return fmt.Errorf("viewer config base_path must start with '/'")
	}
	return nil
}

func ValidateSceneConfig(cfg SceneFileConfig) error {
	if strings.TrimSpace(cfg.ID) == "" {
		return fmt.Errorf("scene config missing id")
	}
	if strings.TrimSpace(cfg.MetadataURL) == "" && strings.TrimSpace(cfg.BaseURL) == "" {
		return fmt.Errorf("scene config requires metadata_url or base_url")
	}
	if cfg.Panels < 0 {
		return fmt.Errorf("scene config panels must be >= 0")
	}
	if cfg.Panels == 0 && len(cfg.PanelNames) == 0 {
		return fmt.Errorf("scene config requires panels or panel_names")
	}
	if cfg.AtlasCount < 0 {
		return fmt.Errorf("scene config atlas_count must be >= 0")
	}
	for i, u := range cfg.AtlasURLs {
		if strings.TrimSpace(u) == "" {
			return fmt.Errorf("atlas_urls[%d] is empty", i)
		}
	}
	return nil
}
