package observability

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestRequestLoggerUsesRouteAndRenderHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	r := gin.New()
	r.Use(RequestLogger(logger, "viewer-a"))
	r.GET("/panels/:index/image.png", func(c *gin.Context) {
		c.Header(RenderHeader, "placeholder")
		c.Status(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/panels/3/image.png", nil))

	var event map[string]any
	if err := json.Unmarshal(buf.Bytes(), &event); err != nil {
		t.Fatalf("decode log event: %v (%q)", err, buf.String())
	}
	if event["path"] != "/panels/:index/image.png" || event["render"] != "placeholder" || event["node"] != "viewer-a" {
		t.Fatalf("unexpected log event: %v", event)
	}
	if event["level"] != "info" {
		t.Fatalf("expected info level, got %v", event["level"])
	}
}

func TestRequestLoggerLevels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		path  string
		level string
	}{
		{path: "/health", level: "debug"},
		{path: "/missing", level: "warn"},
		{path: "/boom", level: "error"},
	}

	for _, tc := range cases {
		var buf bytes.Buffer
		r := gin.New()
		r.Use(RequestLogger(zerolog.New(&buf).Level(zerolog.DebugLevel), "viewer-a"))
		r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
		r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tc.path, nil))
		if !strings.Contains(buf.String(), `"level":"`+tc.level+`"`) {
			t.Fatalf("%s: expected level %s, got %q", tc.path, tc.level, buf.String())
		}
	}
}

func TestRequestMetricsMiddlewareCollapsesUnmatchedPaths(t *testing.T) {
	gin.SetMode(gin.TestMode)
	RegisterMetrics()

	r := gin.New()
	r.Use(RequestMetricsMiddleware("viewer-m"))
	before := testutil.ToFloat64(httpRequests.WithLabelValues("viewer-m", "GET", "unmatched", "404"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/atlas", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))
	after := testutil.ToFloat64(httpRequests.WithLabelValues("viewer-m", "GET", "unmatched", "404"))
	if after-before != 2 {
		t.Fatalf("expected two unmatched requests recorded, got %v", after-before)
	}
}
