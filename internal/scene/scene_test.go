package scene

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danmuck/atlasctl/internal/atlas"
	"github.com/danmuck/atlasctl/internal/coordinator"
	"github.com/danmuck/atlasctl/internal/panel"
	"github.com/danmuck/atlasctl/internal/testutil/testlog"
	"github.com/rs/zerolog/log"
)

func strPtr(v string) *string { return &v }

func bundleServer(t *testing.T) *httptest.Server {
	t.Helper()
	doc := atlas.Document{
		Version: 1,
		Mapping: []atlas.ImageEntry{
			{Title: strPtr("first"), URL: strPtr("grp_first#store")},
			{Title: strPtr("second"), URL: strPtr("prod_second")},
		},
		Atlases: []atlas.Descriptor{
			{ResolutionLevel: 2, Width: 8, Height: 8, UV: map[int]atlas.UVEntry{
				0: {IntrinsicWidth: 8, IntrinsicHeight: 8, RectWidth: 0.5, RectHeight: 0.5},
				1: {IntrinsicWidth: 8, IntrinsicHeight: 4, RectX: 0.5, RectWidth: 0.5, RectHeight: 0.25},
			}},
			{ResolutionLevel: 1, Width: 16, Height: 16, UV: map[int]atlas.UVEntry{
				0: {IntrinsicWidth: 8, IntrinsicHeight: 8, RectWidth: 0.5, RectHeight: 0.5},
			}},
		},
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal doc: %v", err)
	}
	encode := func(side int) []byte {
		var buf bytes.Buffer
		if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, side, side))); err != nil {
			t.Fatalf("encode: %v", err)
		}
		return buf.Bytes()
	}
	files := map[string][]byte{
		"/bundle/atlas.json":  payload,
		"/bundle/atlas/0.png": encode(8),
		"/bundle/atlas/1.png": encode(16),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func waitScene(t *testing.T, s *Scene) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("scene pipeline did not terminate")
	}
	return err
}

func TestConfigResolvesStaticLayout(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.BaseURL = "https://cdn.example/bundle/"
	cfg.AtlasCount = 2

	if got := cfg.ResolveMetadataURL(); got != "https://cdn.example/bundle/atlas.json" {
		t.Fatalf("unexpected metadata url: %s", got)
	}
	urls := cfg.ResolveAtlasURLs()
	if len(urls) != 2 || urls[1] != "https://cdn.example/bundle/atlas/1.png" {
		t.Fatalf("unexpected atlas urls: %v", urls)
	}

	cfg.AtlasURLs = []string{" a ", "b"}
	if urls := cfg.ResolveAtlasURLs(); urls[0] != "a" || len(urls) != 2 {
		t.Fatalf("explicit urls must win: %v", urls)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{name: "no metadata", mutate: func(c *Config) {}, want: ErrMissingMetadataURL},
		{name: "no panels", mutate: func(c *Config) { c.BaseURL = "x"; c.Panels = nil }, want: ErrNoPanels},
		{name: "timeout", mutate: func(c *Config) { c.BaseURL = "x"; c.FetchTimeout = 0 }, want: ErrInvalidFetchTimeout},
		{name: "reload", mutate: func(c *Config) { c.BaseURL = "x"; c.ReloadInterval = -time.Second }, want: ErrInvalidReload},
		{name: "ext", mutate: func(c *Config) { c.BaseURL = "x"; c.AtlasCount = 1; c.AtlasExt = "png" }, want: ErrInvalidAtlasExt},
	}
	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
	if got := len(PanelsNamed(3)); got != 3 {
		t.Fatalf("expected 3 panels, got %d", got)
	}
}

func TestSceneRefinesPanelsOverHTTP(t *testing.T) {
	testlog.Start(t)
	srv := bundleServer(t)
	cfg := DefaultConfig()
	cfg.ID = "scene-test"
	cfg.BaseURL = srv.URL + "/bundle"
	cfg.AtlasCount = 2
	cfg.Panels = PanelsNamed(3)

	s, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("new scene: %v", err)
	}
	gen := s.Activate(context.Background())
	if err := waitScene(t, s); err != nil {
		t.Fatalf("pipeline: %v", err)
	}

	panels := s.Panels()
	if len(panels) != 3 {
		t.Fatalf("expected 3 panels, got %d", len(panels))
	}
	if !panels[0].Loaded || panels[0].LoadedLevel != 1 || !panels[0].Canvas.HasTexture {
		t.Fatalf("panel 0 should refine to level 1: %+v", panels[0])
	}
	if !panels[1].Loaded || panels[1].LoadedLevel != 2 || panels[1].Canvas.Aspect != 2 {
		t.Fatalf("panel 1 should load level 2 with aspect 2: %+v", panels[1])
	}
	if panels[2].Loaded || panels[2].State != panel.StateNeutral {
		t.Fatalf("panel 2 has no mapping entry and must stay idle: %+v", panels[2])
	}
	if panels[0].Href == "" || panels[0].Title != "first" {
		t.Fatalf("panel 0 should expose title and href: %+v", panels[0])
	}

	img, err := s.Render(1, 32)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 16 {
		t.Fatalf("unexpected render bounds: %v", b)
	}

	action, err := s.ActivatePanel(1)
	if err != nil || action.Kind != panel.LinkListing || action.ID != "prod_second" {
		t.Fatalf("unexpected activation: %+v err=%v", action, err)
	}
	if _, err := s.ActivatePanel(2); !errors.Is(err, panel.ErrUnknownLink) {
		t.Fatalf("expected ErrUnknownLink, got %v", err)
	}
	if _, err := s.Panel(9); !errors.Is(err, ErrPanelIndex) {
		t.Fatalf("expected ErrPanelIndex, got %v", err)
	}

	st := s.Status()
	if st.Activations != 1 || st.Pipeline.Generation != gen || st.Pipeline.Phase != coordinator.PhaseComplete {
		t.Fatalf("unexpected status: %+v", st)
	}
	log.Info().Msgf("scene/http: delivered=%d failed=%d", st.Pipeline.Delivered, st.Pipeline.Failed)
}

func TestSceneRunStopsOnCancel(t *testing.T) {
	testlog.Start(t)
	srv := bundleServer(t)
	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL + "/bundle"
	cfg.AtlasCount = 2
	cfg.ReloadInterval = 20 * time.Millisecond

	s, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("new scene: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for s.Status().Activations < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("reload interval never re-activated the scene")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not return after cancel")
	}
}
