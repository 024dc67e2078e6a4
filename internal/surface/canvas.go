// Package surface holds the in-process display collaborators of a panel.
//
// Canvas keeps the last texture, uv rect and text pushed by a panel.Unit and
// renders the visible sub-rectangle on demand. LinkNavigator turns panel link
// actions into web hrefs.
package surface

import (
	"errors"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/danmuck/atlasctl/internal/atlas"
	"github.com/danmuck/atlasctl/internal/panel"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	ErrNoTexture   = errors.New("surface: no texture loaded")
	ErrInvalidSize = errors.New("surface: invalid render size")
	ErrEmptyRect   = errors.New("surface: uv rect selects no pixels")
)

const MaxRenderWidth = 4096

var (
	neutralFill = color.RGBA{R: 0x2b, G: 0x2d, B: 0x31, A: 0xff}
	errorFill   = color.RGBA{R: 0x5c, G: 0x1f, B: 0x24, A: 0xff}
	textColor   = color.RGBA{R: 0xe8, G: 0xe8, B: 0xe8, A: 0xff}
)

// Canvas implements panel.Surface.
type Canvas struct {
	mu sync.RWMutex

	texture image.Image
	uv      atlas.Rect
	aspect  float64
	title   string
	status  string
	state   panel.State
	updates int
}

// View is a copy of the canvas state without the texture.
type View struct {
	Title      string      `json:"title,omitempty"`
	Status     string      `json:"status,omitempty"`
	State      panel.State `json:"state"`
	Aspect     float64     `json:"aspect"`
	UV         atlas.Rect  `json:"uv"`
	HasTexture bool        `json:"has_texture"`
	Updates    int         `json:"updates"`
}

var _ panel.Surface = (*Canvas)(nil)

func NewCanvas() *Canvas {
	return &Canvas{aspect: 1, state: panel.StateNeutral}
}

func (c *Canvas) SetTexture(img image.Image, uv atlas.Rect, aspect float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texture = img
	c.uv = uv
	c.aspect = aspect
	c.updates++
}

func (c *Canvas) SetTitleText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.title = text
}

func (c *Canvas) SetStatusText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = text
}

func (c *Canvas) SetAnimationState(state panel.State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
}

func (c *Canvas) View() View {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return View{
		Title:      c.title,
		Status:     c.status,
		State:      c.state,
		Aspect:     c.aspect,
		UV:         c.uv,
		HasTexture: c.texture != nil,
		Updates:    c.updates,
	}
}

// Render crops the uv sub-rectangle out of the texture and scales it to width x width/aspect.
func (c *Canvas) Render(width int) (image.Image, error) {
	if width <= 0 || width > MaxRenderWidth {
		return nil, ErrInvalidSize
	}
	c.mu.RLock()
	tex, uv, aspect := c.texture, c.uv, c.aspect
	c.mu.RUnlock()
	if tex == nil {
		return nil, ErrNoTexture
	}

	src := PixelRect(tex.Bounds(), uv)
	if src.Empty() {
		return nil, ErrEmptyRect
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, heightFor(width, aspect)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), tex, src, draw.Src, nil)
	return dst, nil
}

// Placeholder draws the title and status onto a flat tile for panels without a texture.
func (c *Canvas) Placeholder(width int) (image.Image, error) {
	if width <= 0 || width > MaxRenderWidth {
		return nil, ErrInvalidSize
	}
	c.mu.RLock()
	title, status, state, aspect := c.title, c.status, c.state, c.aspect
	c.mu.RUnlock()

	fill := neutralFill
	if state == panel.StateError {
		fill = errorFill
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, heightFor(width, aspect)))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(fill), image.Point{}, draw.Src)

	face := basicfont.Face7x13
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(textColor), Face: face}
	line := face.Metrics().Height.Ceil() + 2
	y := line
	for _, text := range []string{title, status} {
		if text == "" || y > dst.Bounds().Dy() {
			continue
		}
		d.Dot = fixed.P(4, y)
		d.DrawString(text)
		y += line
	}
	return dst, nil
}

// PixelRect maps a bottom-left-origin normalized rect onto image pixel space.
func PixelRect(bounds image.Rectangle, uv atlas.Rect) image.Rectangle {
	w := float64(bounds.Dx())
	h := float64(bounds.Dy())
	x0 := int(math.Round(uv.X * w))
	x1 := int(math.Round((uv.X + uv.Width) * w))
	y0 := int(math.Round((1 - uv.Y - uv.Height) * h))
	y1 := int(math.Round((1 - uv.Y) * h))
	r := image.Rect(x0, y0, x1, y1).Add(bounds.Min)
	return r.Intersect(bounds)
}

func heightFor(width int, aspect float64) int {
	if aspect <= 0 || math.IsNaN(aspect) || math.IsInf(aspect, 0) {
		aspect = 1
	}
	h := int(math.Round(float64(width) / aspect))
	if h < 1 {
		h = 1
	}
	if h > MaxRenderWidth {
		h = MaxRenderWidth
	}
	return h
}
