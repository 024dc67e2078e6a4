package surface

import (
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/atlasctl/internal/panel"
	"github.com/rs/zerolog/log"
)

const DefaultLinkBase = "https://vrchat.com/home"

// Action is one navigation dispatched by a panel.
type Action struct {
	Kind panel.LinkKind `json:"kind"`
	ID   string         `json:"id"`
	Href string         `json:"href"`
	At   time.Time      `json:"at"`
}

// LinkNavigator implements panel.Navigator by resolving each action to a web href.
// It does not open anything; callers read Last or History.
type LinkNavigator struct {
	mu      sync.Mutex
	base    string
	history []Action
	limit   int
}

var _ panel.Navigator = (*LinkNavigator)(nil)

func NewLinkNavigator(base string) *LinkNavigator {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = DefaultLinkBase
	}
	return &LinkNavigator{base: base, limit: 32}
}

func (n *LinkNavigator) OpenGroupStorePage(id string) error {
	return n.push(panel.Link{Kind: panel.LinkGroupStore, ID: id})
}

func (n *LinkNavigator) OpenListing(id string) error {
	return n.push(panel.Link{Kind: panel.LinkListing, ID: id})
}

func (n *LinkNavigator) OpenAvatarListing(id string) error {
	return n.push(panel.Link{Kind: panel.LinkAvatarListing, ID: id})
}

func (n *LinkNavigator) SwitchAvatar(id string) error {
	return n.push(panel.Link{Kind: panel.LinkSwitchAvatar, ID: id})
}

// Href resolves link without recording it.
func (n *LinkNavigator) Href(link panel.Link) string {
	id := url.PathEscape(link.ID)
	switch link.Kind {
	case panel.LinkGroupStore:
		return n.base + "/group/" + id + "/store"
	case panel.LinkListing:
		return n.base + "/marketplace/product/" + id
	case panel.LinkAvatarListing:
		return n.base + "/avatar/" + id
	case panel.LinkSwitchAvatar:
		return n.base + "/avatar/" + id + "?action=switch"
	default:
		return ""
	}
}

// Last returns the most recent action.
func (n *LinkNavigator) Last() (Action, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.history) == 0 {
		return Action{}, false
	}
	return n.history[len(n.history)-1], true
}

func (n *LinkNavigator) History() []Action {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Action, len(n.history))
	copy(out, n.history)
	return out
}

func (n *LinkNavigator) push(link panel.Link) error {
	action := Action{Kind: link.Kind, ID: link.ID, Href: n.Href(link), At: time.Now()}
	n.mu.Lock()
	n.history = append(n.history, action)
	if len(n.history) > n.limit {
		n.history = n.history[len(n.history)-n.limit:]
	}
	n.mu.Unlock()
	log.Info().
		Str("kind", string(action.Kind)).
		Str("id", action.ID).
		Str("href", action.Href).
		Msg("panel navigation")
	return nil
}
