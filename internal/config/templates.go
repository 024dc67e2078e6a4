package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "scene":
		return sceneTemplate, nil
	case "viewer":
		return viewerTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const sceneTemplate = `id = "scene.local"
addr = ":9300"
base_url = "http://localhost:9200"
atlas_count = 5
atlas_ext = ".png"
panels = 4
link_base = "https://vrchat.com/home"
fetch_timeout = "30s"
reload_interval = "0s"
bundle_dir = ""
cors_origins = ["http://localhost:3000"]
control_token = ""
`

const viewerTemplate = `name = "atlas-viewer"
addr = ":9200"
bundle_dir = "output_static"
base_path = ""
cors_origins = ["http://localhost:3000"]
`
