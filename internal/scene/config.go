package scene

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingMetadataURL  = errors.New("scene: metadata url or base url required")
	ErrNoPanels            = errors.New("scene: at least one panel required")
	ErrInvalidFetchTimeout = errors.New("scene: invalid fetch timeout")
	ErrInvalidReload       = errors.New("scene: invalid reload interval")
	ErrInvalidAtlasExt     = errors.New("scene: atlas extension must start with '.'")
	ErrPanelIndex          = errors.New("scene: panel index out of range")
)

// PanelConfig names one panel. A panel's position is the image index it displays.
type PanelConfig struct {
	Name string
}

// Config configures one scene: where the bundle lives and which panels show it.
type Config struct {
	ID             string
	MetadataURL    string
	BaseURL        string
	AtlasCount     int
	AtlasExt       string
	AtlasURLs      []string
	Panels         []PanelConfig
	LinkBase       string
	FetchTimeout   time.Duration
	ReloadInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		ID:             "scene.local",
		AtlasExt:       ".png",
		Panels:         []PanelConfig{{Name: "panel-0"}},
		FetchTimeout:   30 * time.Second,
		ReloadInterval: 0,
	}
}

// PanelsNamed returns n panels named panel-<i>.
func PanelsNamed(n int) []PanelConfig {
	if n <= 0 {
		return []PanelConfig{}
	}
	out := make([]PanelConfig, n)
	for i := range out {
		out[i] = PanelConfig{Name: "panel-" + strconv.Itoa(i)}
	}
	return out
}

func (c Config) Validate() error {
	if c.ResolveMetadataURL() == "" {
		return ErrMissingMetadataURL
	}
	if len(c.Panels) == 0 {
		return ErrNoPanels
	}
	if c.FetchTimeout <= 0 {
		return ErrInvalidFetchTimeout
	}
	if c.ReloadInterval < 0 {
		return ErrInvalidReload
	}
	if len(c.AtlasURLs) == 0 && c.AtlasCount > 0 && !strings.HasPrefix(c.AtlasExt, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidAtlasExt, c.AtlasExt)
	}
	return nil
}

// ResolveMetadataURL returns the explicit metadata url, else <base>/atlas.json.
func (c Config) ResolveMetadataURL() string {
	if u := strings.TrimSpace(c.MetadataURL); u != "" {
		return u
	}
	base := trimBase(c.BaseURL)
	if base == "" {
		return ""
	}
	return base + "/atlas.json"
}

// ResolveAtlasURLs returns the explicit atlas url table, else the static bundle
// layout <base>/atlas/<i><ext> for AtlasCount atlases.
func (c Config) ResolveAtlasURLs() []string {
	if len(c.AtlasURLs) > 0 {
		out := make([]string, len(c.AtlasURLs))
		for i, u := range c.AtlasURLs {
			out[i] = strings.TrimSpace(u)
		}
		return out
	}
	base := trimBase(c.BaseURL)
	if base == "" || c.AtlasCount <= 0 {
		return []string{}
	}
	ext := c.AtlasExt
	if ext == "" {
		ext = ".png"
	}
	out := make([]string, c.AtlasCount)
	for i := range out {
		out[i] = base + "/atlas/" + strconv.Itoa(i) + ext
	}
	return out
}

func trimBase(base string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/")
}
