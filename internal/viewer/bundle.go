package viewer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/atlasctl/internal/atlas"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoBundle       = errors.New("viewer: no bundle configured")
	ErrAtlasNotFound  = errors.New("viewer: atlas not found")
	ErrInvalidAtlasID = errors.New("viewer: invalid atlas file name")
)

const metadataFile = "atlas.json"

var atlasFilePattern = regexp.MustCompile(`^([0-9]+)(\.[A-Za-z0-9]+)$`)

// Bundle serves a static atlas bundle directory: atlas.json plus atlas/<i><ext>.
// The document is re-read when atlas.json changes on disk.
type Bundle struct {
	dir string

	mu      sync.Mutex
	doc     *atlas.Document
	raw     []byte
	modTime time.Time
}

// ImageView is one mapping entry with its sharpest available placement.
type ImageView struct {
	Index    int        `json:"index"`
	Title    string     `json:"title,omitempty"`
	URL      string     `json:"url,omitempty"`
	Levels   []int      `json:"levels"`
	Atlas    int        `json:"atlas"`
	Level    int        `json:"level"`
	AtlasURL string     `json:"atlas_url,omitempty"`
	Rect     atlas.Rect `json:"rect"`
	Width    int        `json:"width"`
	Height   int        `json:"height"`
	Aspect   float64    `json:"aspect"`
}

func NewBundle(dir string) *Bundle {
	return &Bundle{dir: strings.TrimSpace(dir)}
}

func (b *Bundle) Dir() string {
	if b == nil {
		return ""
	}
	return b.dir
}

// Document returns the parsed document and its raw payload.
func (b *Bundle) Document() (*atlas.Document, []byte, error) {
	if b == nil || b.dir == "" {
		return nil, nil, ErrNoBundle
	}
	path := filepath.Join(b.dir, metadataFile)
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.doc != nil && info.ModTime().Equal(b.modTime) {
		return b.doc, b.raw, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	doc, err := atlas.Parse(raw)
	if err != nil {
		return nil, nil, err
	}
	b.doc, b.raw, b.modTime = doc, raw, info.ModTime()
	log.Debug().Msgf("viewer.Bundle.Document dir=%q images=%d atlases=%d", b.dir, len(doc.Mapping), len(doc.Atlases))
	return doc, raw, nil
}

// AtlasFile resolves an atlas/<file> request to a path and the descriptor's sha.
func (b *Bundle) AtlasFile(name string) (string, string, error) {
	doc, _, err := b.Document()
	if err != nil {
		return "", "", err
	}
	m := atlasFilePattern.FindStringSubmatch(name)
	if m == nil {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidAtlasID, name)
	}
	idx, err := strconv.Atoi(m[1])
	if err != nil || idx >= len(doc.Atlases) {
		return "", "", fmt.Errorf("%w: %q", ErrAtlasNotFound, name)
	}
	path := filepath.Join(b.dir, "atlas", name)
	if _, err := os.Stat(path); err != nil {
		return "", "", fmt.Errorf("%w: %q", ErrAtlasNotFound, name)
	}
	return path, doc.Atlases[idx].SHA, nil
}

// AtlasExt returns the extension of the first atlas file on disk, ".png" when none is found.
func (b *Bundle) AtlasExt() string {
	entries, err := os.ReadDir(filepath.Join(b.Dir(), "atlas"))
	if err == nil {
		for _, e := range entries {
			if m := atlasFilePattern.FindStringSubmatch(e.Name()); m != nil {
				return m[2]
			}
		}
	}
	return ".png"
}

// Images lists every mapping entry with its sharpest placement.
func (b *Bundle) Images(atlasBase string) ([]ImageView, error) {
	doc, _, err := b.Document()
	if err != nil {
		return nil, err
	}
	ext := b.AtlasExt()
	out := make([]ImageView, 0, len(doc.Mapping))
	for i, entry := range doc.Mapping {
		view := ImageView{Index: i, Atlas: -1, Level: -1, Levels: []int{}}
		if entry.Title != nil {
			view.Title = *entry.Title
		}
		if entry.URL != nil {
			view.URL = *entry.URL
		}
		records, err := atlas.ExtractRecords(doc, i)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			view.Levels = append(view.Levels, rec.ResolutionLevel)
		}
		sort.Ints(view.Levels)
		atlas.SortByLevel(records)
		if len(records) > 0 {
			sharpest := records[0]
			view.Atlas = sharpest.AtlasIndex
			view.Level = sharpest.ResolutionLevel
			view.Rect = sharpest.Rect
			view.Width = sharpest.IntrinsicWidth
			view.Height = sharpest.IntrinsicHeight
			view.Aspect = sharpest.AspectRatio()
			view.AtlasURL = atlasBase + "/atlas/" + strconv.Itoa(sharpest.AtlasIndex) + ext
		}
		out = append(out, view)
	}
	return out, nil
}
