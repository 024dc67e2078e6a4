package atlas

import (
	"fmt"
	"sort"
)

// Record points one image at the sub-rectangle serving it in one atlas.
type Record struct {
	ResolutionLevel int
	AtlasIndex      int
	AtlasWidth      int
	AtlasHeight     int
	Rect            Rect
	IntrinsicWidth  int
	IntrinsicHeight int
}

// AspectRatio is width/height of the intrinsic size, 1 when either side is not positive.
func (r Record) AspectRatio() float64 {
	if r.IntrinsicWidth <= 0 || r.IntrinsicHeight <= 0 {
		return 1
	}
	return float64(r.IntrinsicWidth) / float64(r.IntrinsicHeight)
}

// ExtractRecords scans every atlas in positional order and returns one record
// per atlas whose uv table contains imageIndex.
func ExtractRecords(doc *Document, imageIndex int) ([]Record, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", ErrMalformedDocument)
	}
	records := make([]Record, 0, len(doc.Atlases))
	for i, desc := range doc.Atlases {
		uv, ok := desc.UV[imageIndex]
		if !ok {
			continue
		}
		if desc.Width <= 0 || desc.Height <= 0 {
			return nil, fmt.Errorf("%w: atlas[%d] has dimensions %dx%d", ErrMalformedDocument, i, desc.Width, desc.Height)
		}
		if !finite(uv.RectX, uv.RectY, uv.RectWidth, uv.RectHeight) {
			return nil, fmt.Errorf("%w: atlas[%d] image %d has a non-finite rect", ErrMalformedDocument, i, imageIndex)
		}
		records = append(records, Record{
			ResolutionLevel: desc.ResolutionLevel,
			AtlasIndex:      i,
			AtlasWidth:      desc.Width,
			AtlasHeight:     desc.Height,
			Rect:            uv.Rect(),
			IntrinsicWidth:  uv.IntrinsicWidth,
			IntrinsicHeight: uv.IntrinsicHeight,
		})
	}
	return records, nil
}

// SortByLevel orders records sharpest first; ties keep discovery order.
func SortByLevel(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ResolutionLevel < records[j].ResolutionLevel
	})
}

func sortInts(values []int) {
	sort.Ints(values)
}
