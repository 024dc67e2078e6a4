package viewer

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/atlasctl/internal/auth"
	"github.com/danmuck/atlasctl/internal/node"
	"github.com/danmuck/atlasctl/internal/observability"
	"github.com/danmuck/atlasctl/internal/scene"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const version = "0.1.0"

// Viewer serves an offline atlas bundle and, when attached, a live scene.
type Viewer struct {
	ID       string    `json:"id"`
	Addr     string    `json:"addr"`
	Appeared time.Time `json:"appeared"`

	bundle   *Bundle
	scene    *scene.Scene
	control  auth.Validator
	router   *gin.Engine
	basePath string
}

var _ node.Node = (*Viewer)(nil)

// Appear builds a standalone viewer with its own router and middleware stack.
func Appear(id, addr, bundleDir string, corsOrigins []string) *Viewer {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger, id))
	r.Use(observability.RequestMetricsMiddleware(id))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "If-None-Match", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})
	r.SetHTMLTemplate(galleryTemplate)

	return &Viewer{
		ID:       id,
		Addr:     addr,
		Appeared: time.Now(),
		bundle:   NewBundle(bundleDir),
		router:   r,
	}
}

// Attach mounts a viewer on an existing router under basePath.
func Attach(id string, router *gin.Engine, basePath, bundleDir string) *Viewer {
	router.SetHTMLTemplate(galleryTemplate)
	return &Viewer{
		ID:       id,
		Appeared: time.Now(),
		bundle:   NewBundle(bundleDir),
		router:   router,
		basePath: strings.TrimRight(basePath, "/"),
	}
}

// AttachScene exposes a live scene under /scene and /panels.
func (v *Viewer) AttachScene(s *scene.Scene) {
	v.scene = s
}

// SetControlToken requires a bearer token on the activation endpoints.
// A blank token leaves them open.
func (v *Viewer) SetControlToken(token string) {
	v.control = auth.ForToken(token)
}

func (v *Viewer) NodeID() string {
	return v.ID
}

func (v *Viewer) Kind() string {
	return "viewer"
}

func (v *Viewer) HTTPRouter() *gin.Engine {
	return v.router
}

func (v *Viewer) Serve() error {
	v.RegisterRoutes()
	return v.router.Run(v.Addr)
}

// Run serves until ctx ends, then shuts the listener down.
func (v *Viewer) Run(ctx context.Context) error {
	v.RegisterRoutes()
	srv := &http.Server{
		Addr:              v.Addr,
		Handler:           v.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("viewer", v.ID).Str("addr", v.Addr).Msg("viewer listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Str("viewer", v.ID).Msg("viewer stopped")
	return nil
}

func (v *Viewer) routes() gin.IRoutes {
	if v.basePath == "" {
		return v.router
	}
	return v.router.Group(v.basePath)
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		if o := strings.TrimSpace(origin); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"http://localhost:3000"}
	}
	return out
}
