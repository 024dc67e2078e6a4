package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/atlasctl/internal/observability"
	"github.com/danmuck/atlasctl/internal/scene"
	"github.com/danmuck/atlasctl/internal/viewer"
	"github.com/rs/zerolog/log"
)

func main() {
	path := flag.String("config", "cmd/scenectl/config.toml", "scene config path")
	flag.Parse()

	observability.InitLogger("scenectl")
	cfg, err := loadServiceConfig(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scenectl: %v\n", err)
		os.Exit(1)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "scenectl: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg serviceConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := scene.New(cfg.Scene, nil)
	if err != nil {
		return err
	}
	v := viewer.Appear(cfg.Scene.ID, cfg.Addr, cfg.BundleDir, cfg.CorsOrigins)
	v.AttachScene(s)
	v.SetControlToken(cfg.ControlToken)

	log.Info().
		Str("scene", cfg.Scene.ID).
		Str("addr", cfg.Addr).
		Str("metadata_url", cfg.Scene.ResolveMetadataURL()).
		Int("panels", len(cfg.Scene.Panels)).
		Bool("control_token", cfg.ControlToken != "").
		Msg("scenectl starting")

	sceneErr := make(chan error, 1)
	go func() {
		sceneErr <- s.Run(ctx)
	}()

	if err := v.Run(ctx); err != nil {
		stop()
		<-sceneErr
		return err
	}
	return <-sceneErr
}
