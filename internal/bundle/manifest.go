package bundle

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

var ErrNoImages = errors.New("bundle: no supported images found")

// SupportedExtensions are the image formats the generator accepts.
var SupportedExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".bmp":  {},
	".tiff": {},
	".tif":  {},
	".webp": {},
	".gif":  {},
}

// Manifest is the generator input manifest: per-image title and url plus free-form metadata.
type Manifest struct {
	Images   map[string]map[string]any `json:"images"`
	Metadata json.RawMessage           `json:"metadata"`
}

type ManifestResult struct {
	Path    string   `json:"path"`
	Total   int      `json:"total"`
	Created []string `json:"created"`
	Updated []string `json:"updated"`
}

// UpdateManifest creates or completes <dir>/manifest.json with an entry for every
// supported image in dir. Existing titles and urls are kept; entries are written sorted by name.
func UpdateManifest(dir string) (ManifestResult, error) {
	files, err := ImageFiles(dir)
	if err != nil {
		return ManifestResult{}, err
	}
	if len(files) == 0 {
		return ManifestResult{}, fmt.Errorf("%w: %s", ErrNoImages, dir)
	}

	path := filepath.Join(dir, GeneratorManifest)
	manifest := loadManifest(path)
	res := ManifestResult{Path: path, Created: []string{}, Updated: []string{}}

	for _, name := range files {
		entry, ok := manifest.Images[name]
		if !ok || entry == nil {
			manifest.Images[name] = map[string]any{"title": "", "url": ""}
			res.Created = append(res.Created, name)
			continue
		}
		changed := false
		for _, key := range []string{"title", "url"} {
			if _, ok := entry[key]; !ok {
				entry[key] = ""
				changed = true
			}
		}
		if changed {
			res.Updated = append(res.Updated, name)
		}
	}
	res.Total = len(manifest.Images)

	if err := writeJSON(path, manifest); err != nil {
		return ManifestResult{}, err
	}
	log.Info().
		Str("path", path).
		Int("total", res.Total).
		Int("created", len(res.Created)).
		Int("updated", len(res.Updated)).
		Msg("manifest updated")
	return res, nil
}

// ImageFiles lists supported image files in dir, sorted by name.
func ImageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if _, ok := SupportedExtensions[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// loadManifest reads path, starting fresh when it is missing or not valid JSON.
func loadManifest(path string) Manifest {
	fresh := Manifest{Images: map[string]map[string]any{}, Metadata: json.RawMessage("{}")}
	raw, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Str("path", path).Err(err).Msg("manifest unreadable, starting fresh")
		}
		return fresh
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		log.Warn().Str("path", path).Err(err).Msg("manifest is not valid json, starting fresh")
		return fresh
	}
	if m.Images == nil {
		m.Images = map[string]map[string]any{}
	}
	if len(m.Metadata) == 0 {
		m.Metadata = json.RawMessage("{}")
	}
	return m
}
