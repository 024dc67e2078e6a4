package viewer

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/atlasctl/internal/atlas"
	"github.com/danmuck/atlasctl/internal/scene"
	"github.com/danmuck/atlasctl/internal/testutil/testlog"
	"github.com/rs/zerolog/log"
)

func strPtr(v string) *string { return &v }

// writeBundle lays out atlas.json and atlas/<i>.png under a temp dir.
func writeBundle(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	doc := atlas.Document{
		Version: 1,
		Mapping: []atlas.ImageEntry{
			{Title: strPtr("poster"), URL: strPtr("grp_poster")},
			{Title: strPtr("banner")},
		},
		Atlases: []atlas.Descriptor{
			{ResolutionLevel: 2, Width: 8, Height: 8, SHA: "abc123", UV: map[int]atlas.UVEntry{
				0: {IntrinsicWidth: 8, IntrinsicHeight: 8, RectWidth: 0.5, RectHeight: 0.5},
				1: {IntrinsicWidth: 16, IntrinsicHeight: 8, RectY: 0.5, RectWidth: 1, RectHeight: 0.5},
			}},
			{ResolutionLevel: 1, Width: 16, Height: 16, UV: map[int]atlas.UVEntry{
				0: {IntrinsicWidth: 8, IntrinsicHeight: 8, RectWidth: 0.5, RectHeight: 0.5},
			}},
		},
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "atlas"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metadataFile), payload, 0o644); err != nil {
		t.Fatalf("write metadata: %v", err)
	}
	for i, side := range []int{8, 16} {
		var buf bytes.Buffer
		if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, side, side))); err != nil {
			t.Fatalf("encode: %v", err)
		}
		name := filepath.Join(dir, "atlas", []string{"0.png", "1.png"}[i])
		if err := os.WriteFile(name, buf.Bytes(), 0o644); err != nil {
			t.Fatalf("write atlas: %v", err)
		}
	}
	return dir
}

func serve(v *Viewer, method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, vals := range header {
		for _, val := range vals {
			req.Header.Add(k, val)
		}
	}
	rr := httptest.NewRecorder()
	v.HTTPRouter().ServeHTTP(rr, req)
	return rr
}

func TestHealthAndReady(t *testing.T) {
	testlog.Start(t)
	v := Appear("viewer-a", ":0", writeBundle(t), nil)
	v.RegisterRoutes()

	rr := serve(v, http.MethodGet, "/health", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"viewer":"viewer-a"`) {
		t.Fatalf("unexpected health response: %d %s", rr.Code, rr.Body.String())
	}
	if rr := serve(v, http.MethodGet, "/ready", nil); rr.Code != http.StatusOK {
		t.Fatalf("expected ready, got %d %s", rr.Code, rr.Body.String())
	}

	empty := Appear("viewer-b", ":0", "", nil)
	empty.RegisterRoutes()
	if rr := serve(empty, http.MethodGet, "/ready", nil); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("viewer without bundle or scene should not be ready, got %d", rr.Code)
	}
	if rr := serve(empty, http.MethodGet, "/atlas.json", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without bundle, got %d", rr.Code)
	}
}

func TestBundleRoutes(t *testing.T) {
	testlog.Start(t)
	v := Appear("viewer-a", ":0", writeBundle(t), nil)
	v.RegisterRoutes()

	rr := serve(v, http.MethodGet, "/atlas.json", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("atlas.json: %d", rr.Code)
	}
	if _, err := atlas.Parse(rr.Body.Bytes()); err != nil {
		t.Fatalf("served metadata should parse: %v", err)
	}

	rr = serve(v, http.MethodGet, "/atlas/0.png", nil)
	if rr.Code != http.StatusOK || rr.Header().Get("ETag") != `"abc123"` {
		t.Fatalf("unexpected atlas response: %d etag=%q", rr.Code, rr.Header().Get("ETag"))
	}
	rr = serve(v, http.MethodGet, "/atlas/0.png", http.Header{"If-None-Match": {`"abc123"`}})
	if rr.Code != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", rr.Code)
	}
	if rr := serve(v, http.MethodGet, "/atlas/1.png", nil); rr.Code != http.StatusOK || rr.Header().Get("ETag") != "" {
		t.Fatalf("atlas without sha should serve without etag: %d", rr.Code)
	}
	if rr := serve(v, http.MethodGet, "/atlas/7.png", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown atlas, got %d", rr.Code)
	}
	if rr := serve(v, http.MethodGet, "/atlas/evil.txt", nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad atlas name, got %d", rr.Code)
	}

	rr = serve(v, http.MethodGet, "/images", nil)
	var body struct {
		Images []ImageView `json:"images"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode images: %v", err)
	}
	if len(body.Images) != 2 {
		t.Fatalf("expected 2 images, got %d", len(body.Images))
	}
	first := body.Images[0]
	if first.Level != 1 || first.Atlas != 1 || first.AtlasURL != "/atlas/1.png" || len(first.Levels) != 2 {
		t.Fatalf("unexpected first image view: %+v", first)
	}
	if body.Images[1].Aspect != 2 || body.Images[1].Level != 2 {
		t.Fatalf("unexpected second image view: %+v", body.Images[1])
	}

	rr = serve(v, http.MethodGet, "/", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "poster") {
		t.Fatalf("unexpected gallery: %d", rr.Code)
	}
	log.Info().Msgf("viewer/http: gallery bytes=%d", rr.Body.Len())
}

func TestSceneRoutes(t *testing.T) {
	testlog.Start(t)
	dir := writeBundle(t)
	cfg := scene.DefaultConfig()
	cfg.ID = "scene-a"
	cfg.BaseURL = dir
	cfg.AtlasCount = 2
	cfg.Panels = scene.PanelsNamed(2)
	s, err := scene.New(cfg, nil)
	if err != nil {
		t.Fatalf("scene: %v", err)
	}

	v := Appear("viewer-a", ":0", dir, nil)
	v.AttachScene(s)
	v.RegisterRoutes()

	if rr := serve(v, http.MethodGet, "/panels/0/image.png", nil); rr.Header().Get("X-Panel-Render") != "placeholder" {
		t.Fatalf("expected placeholder before activation, got %q", rr.Header().Get("X-Panel-Render"))
	}

	rr := serve(v, http.MethodPost, "/scene/activate", nil)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("activate: %d %s", rr.Code, rr.Body.String())
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("pipeline: %v", err)
	}

	rr = serve(v, http.MethodGet, "/panels/0/image.png?width=64", nil)
	if rr.Code != http.StatusOK || rr.Header().Get("X-Panel-Render") != "texture" {
		t.Fatalf("expected rendered texture, got %d %q", rr.Code, rr.Header().Get("X-Panel-Render"))
	}
	img, err := png.Decode(rr.Body)
	if err != nil || img.Bounds().Dx() != 64 {
		t.Fatalf("unexpected png: err=%v", err)
	}
	if rr := serve(v, http.MethodGet, "/panels/0/image.png?width=abc", nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad width, got %d", rr.Code)
	}

	rr = serve(v, http.MethodGet, "/panels/1", nil)
	var snap scene.PanelSnapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode panel: %v", err)
	}
	if !snap.Loaded || snap.LoadedLevel != 2 || snap.Title != "banner" {
		t.Fatalf("unexpected panel snapshot: %+v", snap)
	}
	if rr := serve(v, http.MethodGet, "/panels/5", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing panel, got %d", rr.Code)
	}

	rr = serve(v, http.MethodPost, "/panels/0/activate", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "grp_poster") {
		t.Fatalf("unexpected panel activation: %d %s", rr.Code, rr.Body.String())
	}
	if rr := serve(v, http.MethodPost, "/panels/1/activate", nil); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("panel without link should be 422, got %d", rr.Code)
	}

	rr = serve(v, http.MethodGet, "/scene", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"phase":"complete"`) {
		t.Fatalf("unexpected scene status: %s", rr.Body.String())
	}
	if rr := serve(v, http.MethodGet, "/panels", nil); rr.Code != http.StatusOK {
		t.Fatalf("panels: %d", rr.Code)
	}
}

func TestAttachUnderBasePath(t *testing.T) {
	testlog.Start(t)
	r := Appear("host", ":0", "", nil).HTTPRouter()
	v := Attach("viewer-a", r, "/bundle/", writeBundle(t))
	v.RegisterRoutes()

	if rr := serve(v, http.MethodGet, "/bundle/atlas.json", nil); rr.Code != http.StatusOK {
		t.Fatalf("expected mounted atlas.json, got %d", rr.Code)
	}
	rr := serve(v, http.MethodGet, "/bundle/images", nil)
	if !strings.Contains(rr.Body.String(), `"atlas_url":"/bundle/atlas/1.png"`) {
		t.Fatalf("atlas urls should carry the base path: %s", rr.Body.String())
	}
}

func TestControlTokenGuardsActivation(t *testing.T) {
	testlog.Start(t)
	dir := writeBundle(t)
	cfg := scene.DefaultConfig()
	cfg.BaseURL = dir
	cfg.AtlasCount = 2
	s, err := scene.New(cfg, nil)
	if err != nil {
		t.Fatalf("scene: %v", err)
	}

	v := Appear("viewer-a", ":0", dir, nil)
	v.AttachScene(s)
	v.SetControlToken("s3cret")
	v.RegisterRoutes()

	if rr := serve(v, http.MethodPost, "/scene/activate", nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}
	if s.Status().Activations != 0 {
		t.Fatalf("rejected request must not activate the scene")
	}
	if rr := serve(v, http.MethodGet, "/scene", nil); rr.Code != http.StatusOK {
		t.Fatalf("read endpoints stay open, got %d", rr.Code)
	}

	rr := serve(v, http.MethodPost, "/scene/activate", http.Header{"Authorization": {"Bearer s3cret"}})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202 with token, got %d", rr.Code)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("pipeline: %v", err)
	}
}

func TestPreflightAllowsBearerHeader(t *testing.T) {
	testlog.Start(t)
	v := Appear("viewer-a", ":0", writeBundle(t), []string{"http://localhost:5173"})
	v.RegisterRoutes()

	rr := serve(v, http.MethodOptions, "/scene/activate", http.Header{
		"Origin":                         {"http://localhost:5173"},
		"Access-Control-Request-Method":  {"POST"},
		"Access-Control-Request-Headers": {"authorization"},
	})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, "Authorization") {
		t.Fatalf("preflight must allow Authorization, got %q", got)
	}
}
