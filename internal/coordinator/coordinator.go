package coordinator

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/danmuck/atlasctl/internal/atlas"
	"github.com/danmuck/atlasctl/internal/observability"
	"github.com/rs/zerolog/log"
)

var (
	ErrStaleGeneration = errors.New("coordinator: stale generation")
	ErrNotActivated    = errors.New("coordinator: not activated")
	ErrSuperseded      = errors.New("coordinator: channel superseded")
	ErrStopped         = errors.New("coordinator: stopped")
)

// Subscriber is the unit-facing half of the refinement protocol.
type Subscriber interface {
	OnMetadataLoaded(doc *atlas.Document, myIndex int)
	OnMetadataError(code int, message string)
	WantedLevels() []int
	AtlasIndexForLevel(level int) (int, bool)
	OnAtlasDelivered(atlasIndex int, texture image.Image)
	OnAtlasDeliveryFailed(atlasIndex int, code int, message string)
}

// Transport fetches metadata text and decoded atlas textures.
type Transport interface {
	FetchText(ctx context.Context, url string) ([]byte, error)
	FetchImage(ctx context.Context, url string) (image.Image, error)
}

type Config struct {
	ID          string
	MetadataURL string
	AtlasURLs   []string
}

// Status is a point-in-time view of the current channel.
type Status struct {
	ID          string     `json:"id"`
	Generation  Generation `json:"generation"`
	Phase       Phase      `json:"phase"`
	InFlight    string     `json:"in_flight,omitempty"`
	Subscribers int        `json:"subscribers"`
	AtlasURLs   int        `json:"atlas_urls"`
	Attempted   int        `json:"attempted"`
	Delivered   int        `json:"delivered"`
	Failed      int        `json:"failed"`
	Error       string     `json:"error,omitempty"`
}

// Coordinator drives one sequential download pipeline for a fixed subscriber list.
type Coordinator struct {
	mu sync.Mutex

	id          string
	metadataURL string
	atlasURLs   []string
	subs        []Subscriber
	transport   Transport

	gen Generation
	ch  *channel
}

func New(cfg Config, transport Transport, subs ...Subscriber) *Coordinator {
	id := strings.TrimSpace(cfg.ID)
	if id == "" {
		id = "scene"
	}
	urls := make([]string, len(cfg.AtlasURLs))
	copy(urls, cfg.AtlasURLs)
	list := make([]Subscriber, len(subs))
	copy(list, subs)
	return &Coordinator{
		id:          id,
		metadataURL: strings.TrimSpace(cfg.MetadataURL),
		atlasURLs:   urls,
		subs:        list,
		transport:   transport,
	}
}

// Activate supersedes the current channel and starts a fresh pipeline with a metadata fetch.
func (c *Coordinator) Activate(ctx context.Context) Generation {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ch != nil {
		c.ch.finish(PhaseSuperseded, ErrSuperseded)
	}
	c.gen++
	c.ch = newChannel(ctx, c.gen)
	log.Info().
		Str("scene", c.id).
		Uint64("generation", uint64(c.gen)).
		Str("metadata_url", c.metadataURL).
		Msg("pipeline activated")
	c.issueMetadataLocked(c.ch)
	return c.gen
}

// Stop cancels the current channel without starting a new one.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch != nil {
		c.ch.finish(PhaseHalted, ErrStopped)
	}
}

// OnMetadataFetched parses the metadata payload and fans it out to every subscriber.
func (c *Coordinator) OnMetadataFetched(gen Generation, payload []byte, fetchErr error) (*atlas.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, err := c.currentLocked(gen)
	if err != nil {
		return nil, err
	}
	ch.inflight = ""

	if fetchErr != nil {
		fe := atlas.AsFetchError(fetchErr)
		log.Error().
			Str("scene", c.id).
			Int("code", fe.Code).
			Err(fetchErr).
			Msg("metadata fetch failed")
		c.broadcastMetadataErrorLocked(fe.Code, fe.Message)
		err := fmt.Errorf("%w: %v", atlas.ErrMetadataTransport, fetchErr)
		ch.finish(PhaseHalted, err)
		return nil, err
	}

	doc, err := atlas.Parse(payload)
	if err != nil {
		log.Error().Str("scene", c.id).Err(err).Msg("metadata parse failed")
		c.broadcastMetadataErrorLocked(atlas.CodeMetadataParse, err.Error())
		ch.finish(PhaseHalted, err)
		return nil, err
	}

	for i, sub := range c.subs {
		sub.OnMetadataLoaded(doc, i)
	}
	log.Info().
		Str("scene", c.id).
		Int("images", len(doc.Mapping)).
		Int("atlases", len(doc.Atlases)).
		Int("atlas_urls", len(c.atlasURLs)).
		Msg("metadata delivered")
	if len(doc.Atlases) > len(c.atlasURLs) {
		log.Warn().
			Str("scene", c.id).
			Int("atlases", len(doc.Atlases)).
			Int("atlas_urls", len(c.atlasURLs)).
			Msg("metadata lists more atlases than the url table")
	}

	c.advanceLocked(ch)
	return doc, nil
}

// OnAtlasFetched fans one atlas outcome out to every subscriber, then advances the pipeline.
func (c *Coordinator) OnAtlasFetched(gen Generation, atlasIndex int, texture image.Image, fetchErr error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, err := c.currentLocked(gen)
	if err != nil {
		return err
	}
	ch.inflight = ""

	var outcome error
	switch {
	case !atlas.ValidAtlasIndex(atlasIndex, len(c.atlasURLs)):
		log.Warn().Str("scene", c.id).Int("atlas", atlasIndex).Msg("atlas result outside url table dropped")
	case fetchErr != nil:
		fe := atlas.AsFetchError(fetchErr)
		ch.failed++
		log.Warn().
			Str("scene", c.id).
			Int("atlas", atlasIndex).
			Int("code", fe.Code).
			Err(fetchErr).
			Msg("atlas fetch failed")
		for _, sub := range c.subs {
			sub.OnAtlasDeliveryFailed(atlasIndex, fe.Code, fe.Message)
		}
		outcome = fmt.Errorf("%w: atlas %d: %v", atlas.ErrAtlasTransport, atlasIndex, fetchErr)
	default:
		ch.delivered++
		for _, sub := range c.subs {
			sub.OnAtlasDelivered(atlasIndex, texture)
		}
	}

	c.advanceLocked(ch)
	return outcome
}

// ComputeNextAtlasFetch returns the next atlas the subscribers need, ignoring fetch history.
func (c *Coordinator) ComputeNextAtlasFetch() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return NextAtlas(c.subs, nil)
}

// Wait blocks until the current pipeline terminates and returns its terminal error.
func (c *Coordinator) Wait(ctx context.Context) error {
	c.mu.Lock()
	ch := c.ch
	c.mu.Unlock()
	if ch == nil {
		return ErrNotActivated
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch.done:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return ch.err
}

func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		ID:          c.id,
		Phase:       PhaseIdle,
		Subscribers: len(c.subs),
		AtlasURLs:   len(c.atlasURLs),
	}
	if c.ch == nil {
		return st
	}
	st.Generation = c.ch.gen
	st.Phase = c.ch.phase
	st.InFlight = c.ch.inflight
	st.Attempted = len(c.ch.attempted)
	st.Delivered = c.ch.delivered
	st.Failed = c.ch.failed
	if c.ch.err != nil {
		st.Error = c.ch.err.Error()
	}
	return st
}

func (c *Coordinator) currentLocked(gen Generation) (*channel, error) {
	if c.ch == nil || c.ch.gen != gen || c.ch.finished() {
		log.Debug().Msgf("coordinator.currentLocked scene=%q dropped generation=%d current=%d", c.id, gen, c.gen)
		return nil, ErrStaleGeneration
	}
	return c.ch, nil
}

func (c *Coordinator) issueMetadataLocked(ch *channel) {
	url := c.metadataURL
	if url == "" {
		err := fmt.Errorf("%w: metadata url not configured", atlas.ErrMetadataTransport)
		c.broadcastMetadataErrorLocked(atlas.CodeUnknown, err.Error())
		ch.finish(PhaseHalted, err)
		return
	}
	ch.phase = PhaseMetadata
	ch.inflight = url
	go func() {
		payload, err := c.transport.FetchText(ch.ctx, url)
		_, _ = c.OnMetadataFetched(ch.gen, payload, err)
	}()
}

// advanceLocked issues the next atlas fetch or terminates the channel.
func (c *Coordinator) advanceLocked(ch *channel) {
	idx, ok := NextAtlas(c.subs, ch.attempted)
	if !ok {
		observability.RecordRound(c.id, "complete")
		log.Info().
			Str("scene", c.id).
			Uint64("generation", uint64(ch.gen)).
			Int("delivered", ch.delivered).
			Int("failed", ch.failed).
			Msg("pipeline complete")
		ch.finish(PhaseComplete, nil)
		return
	}
	if !atlas.ValidAtlasIndex(idx, len(c.atlasURLs)) || strings.TrimSpace(c.atlasURLs[idx]) == "" {
		observability.RecordRound(c.id, "invalid")
		err := fmt.Errorf("%w: atlas %d has no url (table=%d)", atlas.ErrInvalidSchedule, idx, len(c.atlasURLs))
		log.Error().Str("scene", c.id).Int("atlas", idx).Err(err).Msg("round aborted")
		ch.finish(PhaseHalted, err)
		return
	}

	url := c.atlasURLs[idx]
	ch.attempted[idx] = struct{}{}
	ch.phase = PhaseAtlas
	ch.inflight = url
	observability.RecordRound(c.id, "fetch")
	log.Debug().Msgf("coordinator.advanceLocked scene=%q generation=%d atlas=%d url=%q", c.id, ch.gen, idx, url)
	go func() {
		texture, err := c.transport.FetchImage(ch.ctx, url)
		_ = c.OnAtlasFetched(ch.gen, idx, texture, err)
	}()
}

func (c *Coordinator) broadcastMetadataErrorLocked(code int, message string) {
	for _, sub := range c.subs {
		sub.OnMetadataError(code, message)
	}
}
