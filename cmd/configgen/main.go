package main

import (
	"flag"
	"log"

	"github.com/danmuck/atlasctl/internal/config"
)

func main() {
	kind := flag.String("kind", "scene", "config kind: scene|viewer")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to per-kind cmd path)")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		path := *input
		if path == "" {
			path = defaultPath(*kind)
		}

		switch *kind {
		case "scene":
			cfg, err := config.LoadSceneConfig(path)
			if err != nil {
				log.Fatal(err)
			}
			if _, err := cfg.SceneConfig(); err != nil {
				log.Fatal(err)
			}
		case "viewer":
			if _, err := config.LoadViewerConfig(path); err != nil {
				log.Fatal(err)
			}
		default:
			log.Fatalf("unknown kind: %s", *kind)
		}
		log.Printf("Validated %s config at %s", *kind, path)
		return
	}

	target := *output
	if target == "" {
		target = defaultPath(*kind)
	}

	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, target)
}

func defaultPath(kind string) string {
	switch kind {
	case "scene":
		return "cmd/scenectl/config.toml"
	case "viewer":
		return "cmd/viewerctl/config.toml"
	default:
		log.Fatalf("unknown kind: %s", kind)
		return ""
	}
}
