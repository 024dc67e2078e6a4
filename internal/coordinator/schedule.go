package coordinator

import "sort"

// WantedLevelUnion returns every level any subscriber still wants, coarsest first.
func WantedLevelUnion(subs []Subscriber) []int {
	seen := make(map[int]struct{})
	levels := make([]int, 0)
	for _, sub := range subs {
		for _, level := range sub.WantedLevels() {
			if _, ok := seen[level]; ok {
				continue
			}
			seen[level] = struct{}{}
			levels = append(levels, level)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(levels)))
	return levels
}

// AtlasesForLevel returns the atlas indices serving level, deduplicated in subscriber order.
func AtlasesForLevel(subs []Subscriber, level int) []int {
	seen := make(map[int]struct{})
	indices := make([]int, 0, len(subs))
	for _, sub := range subs {
		idx, ok := sub.AtlasIndexForLevel(level)
		if !ok {
			continue
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		indices = append(indices, idx)
	}
	return indices
}

// NextAtlas picks the first atlas serving the coarsest still-wanted level.
// Indices in skip are passed over; a level whose atlases are all skipped yields
// to the next coarsest level.
func NextAtlas(subs []Subscriber, skip map[int]struct{}) (int, bool) {
	for _, level := range WantedLevelUnion(subs) {
		for _, idx := range AtlasesForLevel(subs, level) {
			if _, skipped := skip[idx]; skipped {
				continue
			}
			return idx, true
		}
	}
	return 0, false
}
