// Package transport fetches metadata text and atlas textures for the coordinator.
//
// Supported locations:
// - http:// and https:// urls through one shared net/http client
//
// - file:// urls and bare filesystem paths
//
// Non-2xx responses surface as atlas.FetchError carrying the status code.
// Undecodable bodies surface as atlas.CodeDecode.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/danmuck/atlasctl/internal/atlas"
	"github.com/danmuck/atlasctl/internal/observability"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	DefaultTimeout  = 30 * time.Second
	DefaultMaxBytes = 64 << 20
)

var ErrUnsupportedScheme = errors.New("transport: unsupported url scheme")

type Options struct {
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
}

// Client implements coordinator.Transport.
type Client struct {
	http      *http.Client
	maxBytes  int64
	userAgent string
}

func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = "atlasctl"
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		maxBytes:  maxBytes,
		userAgent: ua,
	}
}

// FetchText returns the raw body at rawURL.
func (c *Client) FetchText(ctx context.Context, rawURL string) ([]byte, error) {
	start := time.Now()
	body, err := c.fetch(ctx, rawURL)
	c.record(observability.FetchKindMetadata, rawURL, start, err)
	return body, err
}

// FetchImage returns the decoded texture at rawURL.
func (c *Client) FetchImage(ctx context.Context, rawURL string) (image.Image, error) {
	start := time.Now()
	body, err := c.fetch(ctx, rawURL)
	if err != nil {
		c.record(observability.FetchKindAtlas, rawURL, start, err)
		return nil, err
	}
	img, format, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		err = atlas.FetchError{
			Code:    atlas.CodeDecode,
			Message: fmt.Sprintf("%v: %v", atlas.ErrDecode, err),
		}
		c.record(observability.FetchKindAtlas, rawURL, start, err)
		return nil, err
	}
	c.record(observability.FetchKindAtlas, rawURL, start, nil)
	log.Debug().Msgf(
		"transport.Client.FetchImage url=%q format=%s size=%dx%d",
		rawURL,
		format,
		img.Bounds().Dx(),
		img.Bounds().Dy(),
	)
	return img, nil
}

func (c *Client) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, atlas.FetchError{Code: atlas.CodeUnknown, Message: "empty url"}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if !strings.Contains(rawURL, "://") {
		return c.readFile(ctx, rawURL)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, atlas.FetchError{Code: atlas.CodeUnknown, Message: err.Error()}
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return c.fetchHTTP(ctx, rawURL)
	case "file":
		return c.readFile(ctx, u.Path)
	default:
		return nil, atlas.FetchError{
			Code:    atlas.CodeUnknown,
			Message: fmt.Sprintf("%v: %q", ErrUnsupportedScheme, u.Scheme),
		}
	}
}

func (c *Client) fetchHTTP(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, atlas.FetchError{Code: atlas.CodeUnknown, Message: err.Error()}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, atlas.FetchError{Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	body, err := c.readAll(resp.Body)
	if err != nil {
		return nil, classify(ctx, err)
	}
	return body, nil
}

func (c *Client) readFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, classify(ctx, err)
	}
	f, err := os.Open(path)
	if err != nil {
		code := atlas.CodeUnknown
		if errors.Is(err, os.ErrNotExist) {
			code = http.StatusNotFound
		}
		return nil, atlas.FetchError{Code: code, Message: err.Error()}
	}
	defer f.Close()
	body, err := c.readAll(f)
	if err != nil {
		return nil, atlas.FetchError{Code: atlas.CodeUnknown, Message: err.Error()}
	}
	return body, nil
}

func (c *Client) readAll(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, c.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > c.maxBytes {
		return nil, fmt.Errorf("transport: body exceeds %d bytes", c.maxBytes)
	}
	return body, nil
}

func (c *Client) record(kind, rawURL string, start time.Time, err error) {
	code := atlas.CodeNone
	if err != nil {
		code = atlas.AsFetchError(err).Code
		log.Debug().Msgf("transport.Client.record kind=%s url=%q code=%d err=%v", kind, rawURL, code, err)
	}
	observability.RecordFetch(kind, code, time.Since(start), err == nil)
}

// classify prefers the context error so cancellation is not reported as a network failure.
func classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	return atlas.AsFetchError(err)
}
