// Package panel owns per-panel resolution selection.
//
// A Unit binds one display surface to one image index of the shared metadata
// document. It caches the records serving its image, reports the resolution
// levels it still wants, and accepts a delivered atlas only when it is strictly
// sharper than what is already displayed.
//
// Refinement state:
// - ceiling is the exclusive upper bound of levels still wanted.
//
// - loaded level only ever decreases once set.
//
// - a metadata reload rebuilds records but never resets ceiling or loaded level.
package panel

import (
	"errors"
	"fmt"
	"image"
	"sort"
	"sync"

	"github.com/danmuck/atlasctl/internal/atlas"
	"github.com/danmuck/atlasctl/internal/observability"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownLink = errors.New("panel: unrecognized link")
	ErrNoNavigator = errors.New("panel: navigator unavailable")
)

// Unit is one displayed panel bound to one logical image index.
type Unit struct {
	mu sync.RWMutex

	name    string
	surface Surface
	nav     Navigator

	imageIndex int
	records    []atlas.Record
	ceiling    int
	loaded     int
	hasLoaded  bool

	url   string
	title string

	state  State
	status string
}

// Snapshot is a read-only view of a Unit for diagnostics and HTTP.
type Snapshot struct {
	Name         string `json:"name"`
	ImageIndex   int    `json:"image_index"`
	Title        string `json:"title,omitempty"`
	URL          string `json:"url,omitempty"`
	State        State  `json:"state"`
	Status       string `json:"status,omitempty"`
	Ceiling      int    `json:"ceiling"`
	LoadedLevel  int    `json:"loaded_level"`
	Loaded       bool   `json:"loaded"`
	WantedLevels []int  `json:"wanted_levels"`
	RecordCount  int    `json:"record_count"`
}

func New(name string, surface Surface, nav Navigator) *Unit {
	return &Unit{
		name:       name,
		surface:    surface,
		nav:        nav,
		imageIndex: -1,
		state:      StateNeutral,
	}
}

func (u *Unit) Name() string {
	return u.name
}

// OnMetadataLoaded ingests the shared document for image myIndex.
func (u *Unit) OnMetadataLoaded(doc *atlas.Document, myIndex int) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if doc == nil {
		u.reportLocked(atlas.CodeMetadataParse, "metadata document unavailable")
		return
	}
	entry, ok := doc.Entry(myIndex)
	if !ok {
		log.Debug().Msgf("panel.Unit.OnMetadataLoaded name=%q index=%d absent from mapping", u.name, myIndex)
		return
	}

	if entry.URL != nil {
		u.url = *entry.URL
	}
	if entry.Title != nil {
		u.title = *entry.Title
		u.pushTitle(u.title)
	}

	records, err := atlas.ExtractRecords(doc, myIndex)
	if err != nil {
		log.Warn().Str("panel", u.name).Int("index", myIndex).Err(err).Msg("panel metadata rejected")
		u.reportLocked(atlas.CodeMetadataParse, err.Error())
		return
	}

	u.imageIndex = myIndex
	u.records = records
	for _, rec := range records {
		if limit := 2 * rec.ResolutionLevel; limit > u.ceiling {
			u.ceiling = limit
		}
	}
	log.Debug().Msgf(
		"panel.Unit.OnMetadataLoaded name=%q index=%d records=%d ceiling=%d",
		u.name,
		myIndex,
		len(records),
		u.ceiling,
	)
}

// OnMetadataError surfaces an upstream metadata failure when it carries both a code and a message.
func (u *Unit) OnMetadataError(code int, message string) {
	if code == atlas.CodeNone || message == "" {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.reportLocked(code, message)
}

// WantedLevels returns the distinct record levels below the ceiling, sharpest first.
func (u *Unit) WantedLevels() []int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.wantedLevelsLocked()
}

func (u *Unit) wantedLevelsLocked() []int {
	seen := make(map[int]struct{}, len(u.records))
	levels := make([]int, 0, len(u.records))
	for _, rec := range u.records {
		if !u.wantsLocked(rec.ResolutionLevel) {
			continue
		}
		if _, ok := seen[rec.ResolutionLevel]; ok {
			continue
		}
		seen[rec.ResolutionLevel] = struct{}{}
		levels = append(levels, rec.ResolutionLevel)
	}
	sort.Ints(levels)
	return levels
}

// AtlasIndexForLevel returns the atlas serving level for this image among the still-wanted records.
func (u *Unit) AtlasIndexForLevel(level int) (int, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	wanted := make([]atlas.Record, 0, len(u.records))
	for _, rec := range u.records {
		if u.wantsLocked(rec.ResolutionLevel) {
			wanted = append(wanted, rec)
		}
	}
	atlas.SortByLevel(wanted)
	for _, rec := range wanted {
		if rec.ResolutionLevel == level {
			return rec.AtlasIndex, true
		}
	}
	return 0, false
}

// OnAtlasDelivered accepts texture when it serves this image at a level the Unit still wants.
func (u *Unit) OnAtlasDelivered(atlasIndex int, texture image.Image) {
	u.mu.Lock()
	defer u.mu.Unlock()

	rec, ok := u.recordForAtlasLocked(atlasIndex)
	if !ok {
		return
	}
	if !u.wantsLocked(rec.ResolutionLevel) {
		log.Debug().Msgf(
			"panel.Unit.OnAtlasDelivered name=%q atlas=%d level=%d ignored ceiling=%d",
			u.name,
			atlasIndex,
			rec.ResolutionLevel,
			u.ceiling,
		)
		return
	}

	u.ceiling = rec.ResolutionLevel
	u.loaded = rec.ResolutionLevel
	u.hasLoaded = true
	u.state = StateLoaded
	u.status = ""
	if u.surface != nil {
		u.surface.SetTexture(texture, rec.Rect, rec.AspectRatio())
		u.surface.SetStatusText("")
		u.surface.SetAnimationState(StateLoaded)
	}
	observability.RecordRefinement(rec.ResolutionLevel)
	log.Info().
		Str("panel", u.name).
		Int("atlas", atlasIndex).
		Int("level", rec.ResolutionLevel).
		Msg("panel refined")
}

// OnAtlasDeliveryFailed surfaces a fetch failure for an atlas this image depends on.
func (u *Unit) OnAtlasDeliveryFailed(atlasIndex int, code int, message string) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if _, ok := u.recordForAtlasLocked(atlasIndex); !ok {
		return
	}
	if code == atlas.CodeNone || message == "" {
		return
	}
	u.reportLocked(code, message)
}

// OnActivatePanel dispatches the stored url to the navigator.
func (u *Unit) OnActivatePanel() (Link, error) {
	u.mu.RLock()
	raw, name, nav := u.url, u.name, u.nav
	u.mu.RUnlock()

	link, ok := ParseLink(raw)
	if !ok {
		log.Warn().Str("panel", name).Str("url", raw).Msg("panel link not recognized")
		return Link{}, fmt.Errorf("%w: %q", ErrUnknownLink, raw)
	}
	if nav == nil {
		return link, ErrNoNavigator
	}
	if err := dispatch(nav, link); err != nil {
		return link, err
	}
	return link, nil
}

// LoadedLevel returns the level currently displayed.
func (u *Unit) LoadedLevel() (int, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if !u.hasLoaded {
		return 0, false
	}
	return u.loaded, true
}

func (u *Unit) Ceiling() int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.ceiling
}

func (u *Unit) State() State {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.state
}

// Records returns a copy of the cached records.
func (u *Unit) Records() []atlas.Record {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]atlas.Record, len(u.records))
	copy(out, u.records)
	return out
}

func (u *Unit) Snapshot() Snapshot {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return Snapshot{
		Name:         u.name,
		ImageIndex:   u.imageIndex,
		Title:        u.title,
		URL:          u.url,
		State:        u.state,
		Status:       u.status,
		Ceiling:      u.ceiling,
		LoadedLevel:  u.loadedLevelLocked(),
		Loaded:       u.hasLoaded,
		WantedLevels: u.wantedLevelsLocked(),
		RecordCount:  len(u.records),
	}
}

// wantsLocked is the single refinement predicate shared by scheduling and
// acceptance. A reload can raise the ceiling above the loaded level, so the
// loaded level bounds it too.
func (u *Unit) wantsLocked(level int) bool {
	if level >= u.ceiling {
		return false
	}
	return !u.hasLoaded || level < u.loaded
}

func (u *Unit) loadedLevelLocked() int {
	if !u.hasLoaded {
		return -1
	}
	return u.loaded
}

func (u *Unit) recordForAtlasLocked(atlasIndex int) (atlas.Record, bool) {
	for _, rec := range u.records {
		if rec.AtlasIndex == atlasIndex {
			return rec, true
		}
	}
	return atlas.Record{}, false
}

func (u *Unit) reportLocked(code int, message string) {
	u.state = StateError
	u.status = fmt.Sprintf("error %d: %s", code, message)
	if u.surface != nil {
		u.surface.SetStatusText(u.status)
		u.surface.SetAnimationState(StateError)
	}
}

func (u *Unit) pushTitle(title string) {
	if u.surface != nil {
		u.surface.SetTitleText(title)
	}
}
