package panel

import "strings"

type LinkKind string

const (
	LinkGroupStore    LinkKind = "group_store"
	LinkListing       LinkKind = "listing"
	LinkAvatarListing LinkKind = "avatar_listing"
	LinkSwitchAvatar  LinkKind = "switch_avatar"
)

// Link is a parsed panel url.
type Link struct {
	Kind LinkKind `json:"kind"`
	ID   string   `json:"id"`
}

const (
	prefixGroup   = "grp_"
	prefixProduct = "prod_"
	prefixAvatar  = "avtr_"

	fragmentStore   = "#store"
	fragmentListing = "#listing"
)

// ParseLink matches raw against the panel link grammar:
//
//	grp_<id>#store | grp_<id>  -> group store page
//	prod_<id>                  -> listing
//	avtr_<id>#listing          -> avatar listing
//	avtr_<id>                  -> switch avatar
//
// The returned id keeps its prefix and drops the fragment.
func ParseLink(raw string) (Link, bool) {
	raw = strings.TrimSpace(raw)
	id, rest, found := strings.Cut(raw, "#")
	fragment := ""
	if found {
		fragment = "#" + rest
	}

	switch {
	case hasID(id, prefixGroup):
		if fragment == "" || fragment == fragmentStore {
			return Link{Kind: LinkGroupStore, ID: id}, true
		}
	case hasID(id, prefixProduct):
		if fragment == "" {
			return Link{Kind: LinkListing, ID: id}, true
		}
	case hasID(id, prefixAvatar):
		switch fragment {
		case fragmentListing:
			return Link{Kind: LinkAvatarListing, ID: id}, true
		case "":
			return Link{Kind: LinkSwitchAvatar, ID: id}, true
		}
	}
	return Link{}, false
}

func hasID(id, prefix string) bool {
	return strings.HasPrefix(id, prefix) && len(id) > len(prefix)
}

func dispatch(nav Navigator, link Link) error {
	switch link.Kind {
	case LinkGroupStore:
		return nav.OpenGroupStorePage(link.ID)
	case LinkListing:
		return nav.OpenListing(link.ID)
	case LinkAvatarListing:
		return nav.OpenAvatarListing(link.ID)
	case LinkSwitchAvatar:
		return nav.SwitchAvatar(link.ID)
	default:
		return ErrUnknownLink
	}
}
