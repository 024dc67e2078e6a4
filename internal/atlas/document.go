// Package atlas owns the shared metadata document and the per-image record model.
//
// A document maps contiguous image indices to {title, url} entries and lists
// atlas descriptors. An atlas index is the descriptor's position in that list.
// Resolution levels are the producer's downscale factors: a smaller level is a
// sharper image.
package atlas

import (
	"encoding/json"
	"fmt"
	"math"
)

// ImageEntry is one mapping slot. Absent fields stay nil.
type ImageEntry struct {
	Title *string `json:"title,omitempty"`
	URL   *string `json:"url,omitempty"`
}

// Rect is a sub-rectangle in atlas-normalized units with a bottom-left origin.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// UVEntry locates one image inside one atlas.
type UVEntry struct {
	IntrinsicWidth  int     `json:"width"`
	IntrinsicHeight int     `json:"height"`
	RectX           float64 `json:"rect_x"`
	RectY           float64 `json:"rect_y"`
	RectWidth       float64 `json:"rect_width"`
	RectHeight      float64 `json:"rect_height"`
}

func (u UVEntry) Rect() Rect {
	return Rect{X: u.RectX, Y: u.RectY, Width: u.RectWidth, Height: u.RectHeight}
}

// Descriptor describes one atlas sheet.
type Descriptor struct {
	ResolutionLevel int             `json:"scale"`
	Width           int             `json:"width"`
	Height          int             `json:"height"`
	SHA             string          `json:"sha,omitempty"`
	UV              map[int]UVEntry `json:"uv"`
}

// Document is the parsed metadata payload.
type Document struct {
	Version  int             `json:"version"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
	Mapping  []ImageEntry    `json:"mapping"`
	Atlases  []Descriptor    `json:"atlases"`
}

type wireDocument struct {
	Version  *int            `json:"version"`
	Metadata json.RawMessage `json:"metadata"`
	Mapping  *[]ImageEntry   `json:"mapping"`
	Atlases  *[]Descriptor   `json:"atlases"`
}

// Parse decodes a metadata payload. Every failure wraps ErrMetadataParse.
func Parse(payload []byte) (*Document, error) {
	var wire wireDocument
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetadataParse, err)
	}
	if wire.Mapping == nil {
		return nil, fmt.Errorf("%w: missing mapping", ErrMetadataParse)
	}
	if wire.Atlases == nil {
		return nil, fmt.Errorf("%w: missing atlases", ErrMetadataParse)
	}

	doc := &Document{
		Version:  1,
		Metadata: wire.Metadata,
		Mapping:  *wire.Mapping,
		Atlases:  *wire.Atlases,
	}
	if wire.Version != nil {
		doc.Version = *wire.Version
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetadataParse, err)
	}
	return doc, nil
}

// Validate checks the structural invariants Parse relies on.
func (d *Document) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: nil document", ErrMalformedDocument)
	}
	for i, desc := range d.Atlases {
		if desc.ResolutionLevel <= 0 {
			return fmt.Errorf("atlas[%d]: non-positive scale %d", i, desc.ResolutionLevel)
		}
		if desc.Width <= 0 || desc.Height <= 0 {
			return fmt.Errorf("atlas[%d]: non-positive dimensions %dx%d", i, desc.Width, desc.Height)
		}
		for idx, uv := range desc.UV {
			if idx < 0 {
				return fmt.Errorf("atlas[%d]: negative image index %d", i, idx)
			}
			if uv.IntrinsicWidth < 0 || uv.IntrinsicHeight < 0 {
				return fmt.Errorf("atlas[%d] image %d: negative intrinsic size", i, idx)
			}
			if !finite(uv.RectX, uv.RectY, uv.RectWidth, uv.RectHeight) {
				return fmt.Errorf("atlas[%d] image %d: non-finite rect", i, idx)
			}
		}
	}
	return nil
}

// Entry returns the mapping slot for index.
func (d *Document) Entry(index int) (ImageEntry, bool) {
	if d == nil || index < 0 || index >= len(d.Mapping) {
		return ImageEntry{}, false
	}
	return d.Mapping[index], true
}

// MaxResolutionLevel is the coarsest level across all atlases, 0 when empty.
func (d *Document) MaxResolutionLevel() int {
	if d == nil {
		return 0
	}
	maxLevel := 0
	for _, desc := range d.Atlases {
		if desc.ResolutionLevel > maxLevel {
			maxLevel = desc.ResolutionLevel
		}
	}
	return maxLevel
}

// Levels returns the distinct resolution levels, sharpest first.
func (d *Document) Levels() []int {
	if d == nil {
		return nil
	}
	seen := make(map[int]struct{}, len(d.Atlases))
	levels := make([]int, 0, len(d.Atlases))
	for _, desc := range d.Atlases {
		if _, ok := seen[desc.ResolutionLevel]; ok {
			continue
		}
		seen[desc.ResolutionLevel] = struct{}{}
		levels = append(levels, desc.ResolutionLevel)
	}
	sortInts(levels)
	return levels
}

// ValidAtlasIndex reports whether index addresses a URL table of urlCount entries.
func ValidAtlasIndex(index, urlCount int) bool {
	return index >= 0 && index < urlCount
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
