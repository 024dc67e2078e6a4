package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/atlasctl/internal/scene"
	"github.com/danmuck/atlasctl/internal/testutil/testlog"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadServiceConfigDefaultsAndOverrides(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `
id = "scene.expo"
addr = "127.0.0.1:9310"
base_url = "https://cdn.example/expo"
atlas_count = 3
atlas_ext = ".webp"
panel_names = ["left", "center", "right"]
fetch_timeout = "5s"
reload_interval_ms = 60000
cors_origins = [" http://localhost:5173 ", ""]
control_token = " s3cret "
`)
	cfg, err := loadServiceConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Scene.ID != "scene.expo" || cfg.Addr != "127.0.0.1:9310" {
		t.Fatalf("unexpected identity: id=%q addr=%q", cfg.Scene.ID, cfg.Addr)
	}
	urls := cfg.Scene.ResolveAtlasURLs()
	if len(urls) != 3 || urls[2] != "https://cdn.example/expo/atlas/2.webp" {
		t.Fatalf("unexpected atlas urls: %v", urls)
	}
	if len(cfg.Scene.Panels) != 3 || cfg.Scene.Panels[1].Name != "center" {
		t.Fatalf("unexpected panels: %+v", cfg.Scene.Panels)
	}
	if cfg.Scene.FetchTimeout != 5*time.Second || cfg.Scene.ReloadInterval != time.Minute {
		t.Fatalf("unexpected durations: fetch=%s reload=%s", cfg.Scene.FetchTimeout, cfg.Scene.ReloadInterval)
	}
	if len(cfg.CorsOrigins) != 1 || cfg.CorsOrigins[0] != "http://localhost:5173" {
		t.Fatalf("unexpected cors origins: %v", cfg.CorsOrigins)
	}
	if cfg.ControlToken != "s3cret" {
		t.Fatalf("unexpected control token: %q", cfg.ControlToken)
	}
	if cfg.Scene.LinkBase != "" {
		t.Fatalf("undefined link_base should keep default, got %q", cfg.Scene.LinkBase)
	}
}

func TestLoadServiceConfigKeepsDefaultsWhenUndefined(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `metadata_url = "file:///srv/bundle/atlas.json"`)
	cfg, err := loadServiceConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	def := scene.DefaultConfig()
	if cfg.Scene.ID != def.ID || cfg.Addr != ":9300" || len(cfg.Scene.Panels) != len(def.Panels) {
		t.Fatalf("defaults not kept: %+v", cfg)
	}
	if cfg.Scene.FetchTimeout != def.FetchTimeout {
		t.Fatalf("fetch timeout default not kept: %s", cfg.Scene.FetchTimeout)
	}
}

func TestLoadServiceConfigRejectsInvalid(t *testing.T) {
	testlog.Start(t)
	if _, err := loadServiceConfig(writeConfig(t, `panels = 2`)); !errors.Is(err, scene.ErrMissingMetadataURL) {
		t.Fatalf("expected ErrMissingMetadataURL, got %v", err)
	}
	if _, err := loadServiceConfig(writeConfig(t, `
base_url = "x"
fetch_timeout = "soon"
`)); err == nil {
		t.Fatalf("expected duration parse error")
	}
	if _, err := loadServiceConfig(writeConfig(t, `
base_url = "x"
panels = 0
`)); !errors.Is(err, scene.ErrNoPanels) {
		t.Fatalf("expected ErrNoPanels, got %v", err)
	}
}
