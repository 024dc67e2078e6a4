package viewer

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/danmuck/atlasctl/internal/atlas"
	"github.com/danmuck/atlasctl/internal/auth"
	"github.com/danmuck/atlasctl/internal/observability"
	"github.com/danmuck/atlasctl/internal/panel"
	"github.com/danmuck/atlasctl/internal/scene"
	"github.com/danmuck/atlasctl/internal/surface"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const defaultRenderWidth = 256

func (v *Viewer) RegisterRoutes() {
	routes := v.routes()
	routes.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(v.Appeared).String(),
			"viewer":  v.ID,
			"version": version,
		})
	})

	routes.GET("/metrics", gin.WrapH(promhttp.Handler()))

	routes.GET("/ready", func(c *gin.Context) {
		_, _, err := v.bundle.Document()
		ready := err == nil || (errors.Is(err, ErrNoBundle) && v.scene != nil)
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		body := gin.H{
			"ready":   ready,
			"uptime":  time.Since(v.Appeared).String(),
			"viewer":  v.ID,
			"version": version,
		}
		if err != nil && !ready {
			body["error"] = err.Error()
		}
		c.JSON(status, body)
	})

	v.registerBundleRoutes(routes)
	if v.scene != nil {
		v.registerSceneRoutes(routes)
	}
}

func (v *Viewer) registerBundleRoutes(routes gin.IRoutes) {
	routes.GET("/", func(c *gin.Context) {
		images, err := v.bundle.Images(v.basePath)
		if err != nil {
			c.JSON(bundleStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.HTML(http.StatusOK, "gallery", newGalleryPage(v.ID, images))
	})

	routes.GET("/atlas.json", func(c *gin.Context) {
		_, raw, err := v.bundle.Document()
		if err != nil {
			c.JSON(bundleStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/json", raw)
	})

	routes.GET("/atlas/:file", func(c *gin.Context) {
		path, sha, err := v.bundle.AtlasFile(c.Param("file"))
		if err != nil {
			c.JSON(bundleStatus(err), gin.H{"error": err.Error()})
			return
		}
		if sha != "" {
			etag := strconv.Quote(sha)
			c.Header("ETag", etag)
			if c.GetHeader("If-None-Match") == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
		c.File(path)
	})

	routes.GET("/images", func(c *gin.Context) {
		images, err := v.bundle.Images(v.basePath)
		if err != nil {
			c.JSON(bundleStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"images": images})
	})
}

func (v *Viewer) registerSceneRoutes(routes gin.IRoutes) {
	guard := auth.Require(v.control)

	routes.GET("/scene", func(c *gin.Context) {
		c.JSON(http.StatusOK, v.scene.Status())
	})

	routes.POST("/scene/activate", guard, func(c *gin.Context) {
		gen := v.scene.Activate(context.WithoutCancel(c.Request.Context()))
		log.Info().Str("viewer", v.ID).Uint64("generation", uint64(gen)).Msg("scene re-activated")
		c.JSON(http.StatusAccepted, gin.H{"status": "activated", "generation": gen})
	})

	routes.GET("/panels", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"panels": v.scene.Panels()})
	})

	routes.GET("/panels/:index", func(c *gin.Context) {
		idx, ok := panelIndex(c)
		if !ok {
			return
		}
		snap, err := v.scene.Panel(idx)
		if err != nil {
			c.JSON(sceneStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, snap)
	})

	routes.GET("/panels/:index/image.png", func(c *gin.Context) {
		idx, ok := panelIndex(c)
		if !ok {
			return
		}
		width := defaultRenderWidth
		if raw := c.Query("width"); raw != "" {
			w, err := strconv.Atoi(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid width"})
				return
			}
			width = w
		}

		img, err := v.scene.Render(idx, width)
		rendered := "texture"
		if errors.Is(err, surface.ErrNoTexture) {
			img, err = v.scene.Placeholder(idx, width)
			rendered = "placeholder"
		}
		if err != nil {
			c.JSON(sceneStatus(err), gin.H{"error": err.Error()})
			return
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Header(observability.RenderHeader, rendered)
		c.Data(http.StatusOK, "image/png", buf.Bytes())
	})

	routes.POST("/panels/:index/activate", guard, func(c *gin.Context) {
		idx, ok := panelIndex(c)
		if !ok {
			return
		}
		action, err := v.scene.ActivatePanel(idx)
		if err != nil {
			c.JSON(sceneStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "action": action})
	})
}

func panelIndex(c *gin.Context) (int, bool) {
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid panel index"})
		return 0, false
	}
	return idx, true
}

func bundleStatus(err error) int {
	switch {
	case errors.Is(err, ErrNoBundle), errors.Is(err, ErrAtlasNotFound), errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidAtlasID):
		return http.StatusBadRequest
	case errors.Is(err, atlas.ErrMetadataParse):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func sceneStatus(err error) int {
	switch {
	case errors.Is(err, scene.ErrPanelIndex):
		return http.StatusNotFound
	case errors.Is(err, panel.ErrUnknownLink):
		return http.StatusUnprocessableEntity
	case errors.Is(err, surface.ErrInvalidSize), errors.Is(err, surface.ErrEmptyRect):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
