package panel

import (
	"fmt"
	"image"

	"github.com/danmuck/atlasctl/internal/atlas"
)

// State is the display animation state pushed to a Surface.
type State int

const (
	StateNeutral State = iota
	StateError
	StateLoaded
)

func (s State) String() string {
	switch s {
	case StateNeutral:
		return "neutral"
	case StateError:
		return "error"
	case StateLoaded:
		return "loaded"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "neutral":
		*s = StateNeutral
	case "error":
		*s = StateError
	case "loaded":
		*s = StateLoaded
	default:
		return fmt.Errorf("panel: unknown state %q", text)
	}
	return nil
}

// Surface receives what a Unit decides to display.
type Surface interface {
	SetTexture(img image.Image, uv atlas.Rect, aspect float64)
	SetTitleText(text string)
	SetStatusText(text string)
	SetAnimationState(state State)
}

// Navigator performs the actions a panel link can trigger.
type Navigator interface {
	OpenGroupStorePage(id string) error
	OpenListing(id string) error
	OpenAvatarListing(id string) error
	SwitchAvatar(id string) error
}
