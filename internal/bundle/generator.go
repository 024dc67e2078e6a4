// Package bundle turns atlas generator output into the static bundle layout
// served by the viewer and fetched by scenes:
//
//	<out>/atlas.json
//	<out>/atlas/<index><ext>
//
// Image names are replaced by contiguous indices following the order of the
// generator's images_metadata object.
package bundle

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/danmuck/atlasctl/internal/atlas"
)

var (
	ErrUnknownImage   = errors.New("bundle: atlas references an image missing from images_metadata")
	ErrMissingImages  = errors.New("bundle: images_metadata required")
	ErrDuplicateImage = errors.New("bundle: duplicate image name")
)

// NamedEntry is one images_metadata member, in document order.
type NamedEntry struct {
	Name  string
	Entry atlas.ImageEntry
}

// OrderedEntries decodes a JSON object while keeping member order.
type OrderedEntries []NamedEntry

func (o *OrderedEntries) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("bundle: images_metadata must be an object")
	}
	seen := make(map[string]struct{})
	out := make(OrderedEntries, 0)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("bundle: unexpected token %v", tok)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateImage, name)
		}
		seen[name] = struct{}{}
		var entry atlas.ImageEntry
		if err := dec.Decode(&entry); err != nil {
			return fmt.Errorf("bundle: image %q: %w", name, err)
		}
		out = append(out, NamedEntry{Name: name, Entry: entry})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*o = out
	return nil
}

// GeneratorAtlas is one atlas sheet as written by the generator, uv keyed by image name.
type GeneratorAtlas struct {
	File   string                   `json:"file"`
	Scale  int                      `json:"scale"`
	Width  int                      `json:"width"`
	Height int                      `json:"height"`
	SHA    string                   `json:"sha,omitempty"`
	UV     map[string]atlas.UVEntry `json:"uv"`
}

// GeneratorData is the generator's manifest.json.
type GeneratorData struct {
	Version  int              `json:"version"`
	Metadata json.RawMessage  `json:"metadata,omitempty"`
	Images   *OrderedEntries  `json:"images_metadata"`
	Atlases  []GeneratorAtlas `json:"atlases"`
}

func LoadGeneratorData(path string) (GeneratorData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return GeneratorData{}, err
	}
	var data GeneratorData
	if err := json.Unmarshal(raw, &data); err != nil {
		return GeneratorData{}, fmt.Errorf("bundle: decode %s: %w", path, err)
	}
	if data.Images == nil {
		return GeneratorData{}, fmt.Errorf("%w: %s", ErrMissingImages, path)
	}
	return data, nil
}

// Compress rekeys the generator data by image index.
func Compress(data GeneratorData) (*atlas.Document, error) {
	if data.Images == nil {
		return nil, ErrMissingImages
	}
	version := data.Version
	if version == 0 {
		version = 1
	}
	doc := &atlas.Document{
		Version: version,
		Mapping: make([]atlas.ImageEntry, 0, len(*data.Images)),
		Atlases: make([]atlas.Descriptor, 0, len(data.Atlases)),
	}
	if len(data.Metadata) > 0 && !bytes.Equal(bytes.TrimSpace(data.Metadata), []byte("null")) && !isEmptyObject(data.Metadata) {
		doc.Metadata = data.Metadata
	}

	index := make(map[string]int, len(*data.Images))
	for i, named := range *data.Images {
		index[named.Name] = i
		doc.Mapping = append(doc.Mapping, named.Entry)
	}

	for i, src := range data.Atlases {
		desc := atlas.Descriptor{
			ResolutionLevel: src.Scale,
			Width:           src.Width,
			Height:          src.Height,
			SHA:             src.SHA,
			UV:              make(map[int]atlas.UVEntry, len(src.UV)),
		}
		for name, uv := range src.UV {
			idx, ok := index[name]
			if !ok {
				return nil, fmt.Errorf("%w: atlas %d image %q", ErrUnknownImage, i, name)
			}
			desc.UV[idx] = uv
		}
		doc.Atlases = append(doc.Atlases, desc)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

func isEmptyObject(raw json.RawMessage) bool {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return false
	}
	return len(m) == 0
}
