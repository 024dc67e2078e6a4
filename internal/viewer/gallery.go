package viewer

import (
	"fmt"
	"html/template"
	"math"
)

type galleryItem struct {
	ImageView
	Style template.CSS
}

type galleryPage struct {
	Title  string
	Node   string
	Images []galleryItem
}

var galleryTemplate = template.Must(template.New("gallery").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { background: #1e1f22; color: #e8e8e8; font-family: sans-serif; margin: 24px; }
.grid { display: flex; flex-wrap: wrap; gap: 16px; }
.card { width: 200px; }
.tile { width: 200px; background-repeat: no-repeat; background-color: #2b2d31; }
.meta { font-size: 12px; opacity: .75; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p class="meta">node {{.Node}}, {{len .Images}} images</p>
<div class="grid">
{{range .Images}}<div class="card">
<div class="tile" style="{{.Style}}"></div>
<div>{{if .Title}}{{.Title}}{{else}}image {{.Index}}{{end}}</div>
<div class="meta">level {{.Level}} of {{.Levels}}{{if .URL}}, {{.URL}}{{end}}</div>
</div>
{{end}}</div>
</body>
</html>
`))

// tileStyle crops the uv rect out of the atlas with css background sizing.
func tileStyle(v ImageView) template.CSS {
	if v.AtlasURL == "" || v.Rect.Width <= 0 || v.Rect.Height <= 0 {
		return template.CSS("height: 200px;")
	}
	aspect := v.Aspect
	if aspect <= 0 {
		aspect = 1
	}
	top := 1 - v.Rect.Y - v.Rect.Height
	return template.CSS(fmt.Sprintf(
		"height: %dpx; background-image: url('%s'); background-size: %.4f%% %.4f%%; background-position: %.4f%% %.4f%%;",
		int(math.Round(200/aspect)),
		v.AtlasURL,
		100/v.Rect.Width,
		100/v.Rect.Height,
		backgroundOffset(v.Rect.X, v.Rect.Width),
		backgroundOffset(top, v.Rect.Height),
	))
}

func backgroundOffset(start, size float64) float64 {
	if size >= 1 {
		return 0
	}
	return start / (1 - size) * 100
}

func newGalleryPage(node string, images []ImageView) galleryPage {
	items := make([]galleryItem, len(images))
	for i, img := range images {
		items[i] = galleryItem{ImageView: img, Style: tileStyle(img)}
	}
	return galleryPage{Title: "atlas bundle", Node: node, Images: items}
}
