package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/danmuck/atlasctl/internal/config"
	"github.com/danmuck/atlasctl/internal/observability"
	"github.com/danmuck/atlasctl/internal/viewer"
	"github.com/rs/zerolog/log"
)

func main() {
	path := flag.String("config", "cmd/viewerctl/config.toml", "viewer config path")
	flag.Parse()

	observability.InitLogger("viewerctl")
	cfg, err := config.LoadViewerConfig(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "viewerctl: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	host := viewer.Appear(cfg.Name, cfg.Addr, cfg.BundleDir, cfg.CorsOrigins)
	if bp := strings.TrimSpace(cfg.BasePath); bp != "" && bp != "/" {
		// Mounted bundle lives under base_path; the root keeps health and metrics only.
		host = viewer.Appear(cfg.Name, cfg.Addr, "", cfg.CorsOrigins)
		viewer.Attach(cfg.Name, host.HTTPRouter(), bp, cfg.BundleDir).RegisterRoutes()
	}

	log.Info().
		Str("viewer", cfg.Name).
		Str("addr", cfg.Addr).
		Str("bundle_dir", cfg.BundleDir).
		Str("base_path", cfg.BasePath).
		Msg("viewerctl starting")
	if err := host.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "viewerctl: %v\n", err)
		os.Exit(1)
	}
}
