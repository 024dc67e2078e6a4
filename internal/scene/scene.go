// Package scene assembles panels, surfaces and one coordinator into a runnable unit.
//
// Ownership boundary:
// - builds one panel.Unit, surface.Canvas pair per configured panel
//
// - owns the coordinator and its transport
//
// - drives activation, optional periodic reload and shutdown
//
// The scene does not schedule fetches itself; the coordinator does.
package scene

import (
	"context"
	"fmt"
	"image"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/atlasctl/internal/coordinator"
	"github.com/danmuck/atlasctl/internal/panel"
	"github.com/danmuck/atlasctl/internal/surface"
	"github.com/danmuck/atlasctl/internal/transport"
	"github.com/rs/zerolog/log"
)

// PanelSnapshot is the combined unit and canvas view of one panel.
type PanelSnapshot struct {
	Index int `json:"index"`
	panel.Snapshot
	Canvas surface.View `json:"canvas"`
	Href   string       `json:"href,omitempty"`
}

// Status is the scene-level view served over HTTP.
type Status struct {
	ID          string             `json:"id"`
	MetadataURL string             `json:"metadata_url"`
	Panels      int                `json:"panels"`
	Activations int                `json:"activations"`
	Activated   time.Time          `json:"activated,omitempty"`
	Pipeline    coordinator.Status `json:"pipeline"`
}

type Scene struct {
	cfg Config

	coord    *coordinator.Coordinator
	units    []*panel.Unit
	canvases []*surface.Canvas
	nav      *surface.LinkNavigator

	mu          sync.Mutex
	activations int
	activated   time.Time
}

// New builds a scene. A nil transport gets the default http/file client.
func New(cfg Config, tr coordinator.Transport) (*Scene, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if tr == nil {
		tr = transport.New(transport.Options{Timeout: cfg.FetchTimeout})
	}

	nav := surface.NewLinkNavigator(cfg.LinkBase)
	units := make([]*panel.Unit, len(cfg.Panels))
	canvases := make([]*surface.Canvas, len(cfg.Panels))
	subs := make([]coordinator.Subscriber, len(cfg.Panels))
	for i, pc := range cfg.Panels {
		name := strings.TrimSpace(pc.Name)
		if name == "" {
			name = fmt.Sprintf("panel-%d", i)
		}
		canvases[i] = surface.NewCanvas()
		units[i] = panel.New(name, canvases[i], nav)
		subs[i] = units[i]
	}

	coord := coordinator.New(coordinator.Config{
		ID:          cfg.ID,
		MetadataURL: cfg.ResolveMetadataURL(),
		AtlasURLs:   cfg.ResolveAtlasURLs(),
	}, tr, subs...)

	return &Scene{
		cfg:      cfg,
		coord:    coord,
		units:    units,
		canvases: canvases,
		nav:      nav,
	}, nil
}

func (s *Scene) ID() string {
	return s.cfg.ID
}

// Activate starts a fresh pipeline. ctx bounds the pipeline's fetches.
func (s *Scene) Activate(ctx context.Context) coordinator.Generation {
	gen := s.coord.Activate(ctx)
	s.mu.Lock()
	s.activations++
	s.activated = time.Now()
	s.mu.Unlock()
	go s.report(ctx, gen)
	return gen
}

// Wait blocks until the current pipeline terminates.
func (s *Scene) Wait(ctx context.Context) error {
	return s.coord.Wait(ctx)
}

// Run activates the scene, re-activates on the reload interval, and stops the pipeline when ctx ends.
func (s *Scene) Run(ctx context.Context) error {
	s.Activate(ctx)

	var tick <-chan time.Time
	if s.cfg.ReloadInterval > 0 {
		ticker := time.NewTicker(s.cfg.ReloadInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			s.coord.Stop()
			log.Info().Str("scene", s.cfg.ID).Msg("scene stopped")
			return nil
		case <-tick:
			log.Debug().Msgf("scene.Scene.Run scene=%q reload", s.cfg.ID)
			s.Activate(ctx)
		}
	}
}

func (s *Scene) Stop() {
	s.coord.Stop()
}

func (s *Scene) Panels() []PanelSnapshot {
	out := make([]PanelSnapshot, len(s.units))
	for i := range s.units {
		out[i] = s.snapshot(i)
	}
	return out
}

func (s *Scene) Panel(index int) (PanelSnapshot, error) {
	if err := s.checkIndex(index); err != nil {
		return PanelSnapshot{}, err
	}
	return s.snapshot(index), nil
}

// Render returns the visible sub-rectangle of a panel's texture scaled to width.
func (s *Scene) Render(index, width int) (image.Image, error) {
	if err := s.checkIndex(index); err != nil {
		return nil, err
	}
	return s.canvases[index].Render(width)
}

func (s *Scene) Placeholder(index, width int) (image.Image, error) {
	if err := s.checkIndex(index); err != nil {
		return nil, err
	}
	return s.canvases[index].Placeholder(width)
}

// ActivatePanel dispatches the panel's link and returns the resolved navigation.
func (s *Scene) ActivatePanel(index int) (surface.Action, error) {
	if err := s.checkIndex(index); err != nil {
		return surface.Action{}, err
	}
	if _, err := s.units[index].OnActivatePanel(); err != nil {
		return surface.Action{}, err
	}
	action, _ := s.nav.Last()
	return action, nil
}

func (s *Scene) Status() Status {
	s.mu.Lock()
	activations, activated := s.activations, s.activated
	s.mu.Unlock()
	return Status{
		ID:          s.cfg.ID,
		MetadataURL: s.cfg.ResolveMetadataURL(),
		Panels:      len(s.units),
		Activations: activations,
		Activated:   activated,
		Pipeline:    s.coord.Status(),
	}
}

func (s *Scene) snapshot(index int) PanelSnapshot {
	snap := s.units[index].Snapshot()
	ps := PanelSnapshot{
		Index:    index,
		Snapshot: snap,
		Canvas:   s.canvases[index].View(),
	}
	if link, ok := panel.ParseLink(snap.URL); ok {
		ps.Href = s.nav.Href(link)
	}
	return ps
}

func (s *Scene) checkIndex(index int) error {
	if index < 0 || index >= len(s.units) {
		return fmt.Errorf("%w: %d", ErrPanelIndex, index)
	}
	return nil
}

func (s *Scene) report(ctx context.Context, gen coordinator.Generation) {
	err := s.coord.Wait(ctx)
	st := s.coord.Status()
	if st.Generation != gen {
		return
	}
	if err != nil {
		log.Warn().
			Str("scene", s.cfg.ID).
			Uint64("generation", uint64(gen)).
			Str("phase", string(st.Phase)).
			Err(err).
			Msg("scene pipeline ended with error")
		return
	}
	log.Info().
		Str("scene", s.cfg.ID).
		Uint64("generation", uint64(gen)).
		Int("delivered", st.Delivered).
		Int("failed", st.Failed).
		Msg("scene pipeline complete")
}
