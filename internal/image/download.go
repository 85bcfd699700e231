package imagepkg

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"net/http"
	"net/url"
	"strings"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	"github.com/vincent-petithory/dataurl"
	_ "golang.org/x/image/webp"

	"github.com/youruser/creativeworkshop/internal/util"
)

var (
	ErrDecode            = errors.New("image decode failed")
	ErrUnsupportedSource = errors.New("unsupported image source")
)

// Cache stores fetched remote bitmaps by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte) error
}

// IsInline reports whether src is a data URI.
func IsInline(src string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(src)), "data:")
}

// IsRemote reports whether src is an http(s) URL.
func IsRemote(src string) bool {
	s := strings.ToLower(strings.TrimSpace(src))
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// DecodeDataURI returns the payload and media type of a data URI. Base64
// payloads may carry line breaks and omit their padding.
func DecodeDataURI(uri string) ([]byte, string, error) {
	uri = strings.TrimSpace(uri)
	if !IsInline(uri) {
		return nil, "", fmt.Errorf("%w: not a data uri", ErrUnsupportedSource)
	}
	du, err := dataurl.DecodeString(normalizeDataURI(uri))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return du.Data, du.MediaType.ContentType(), nil
}

// normalizeDataURI lower-cases the scheme and, for base64 payloads, drops
// whitespace and restores missing padding.
func normalizeDataURI(uri string) string {
	uri = "data:" + uri[len("data:"):]
	comma := strings.IndexByte(uri, ',')
	if comma < 0 {
		return uri
	}
	header, payload := uri[:comma], uri[comma+1:]
	if !strings.Contains(strings.ToLower(header), ";base64") {
		return uri
	}
	payload = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, payload)
	if n := len(payload) % 4; n > 1 {
		payload += strings.Repeat("=", 4-n)
	}
	return header + "," + payload
}

// ProxyURL routes a remote URL through the image proxy endpoint.
func ProxyURL(proxy, remote string) string {
	sep := "?"
	if strings.Contains(proxy, "?") {
		sep = "&"
	}
	return proxy + sep + "url=" + url.QueryEscape(remote)
}

// CacheKey is the cache key for a remote bitmap URL.
func CacheKey(remote string) string {
	sum := sha1.Sum([]byte(remote))
	return "src:" + hex.EncodeToString(sum[:])
}

// Resolver turns image references into bytes and decoded bitmaps. Inline
// sources are decoded directly; remote sources always go through the proxy
// when one is configured.
type Resolver struct {
	proxyURL string
	client   *http.Client
	cache    Cache
	log      logrus.FieldLogger
}

type ResolverOption func(*Resolver)

// WithCache stores proxied bytes in c.
func WithCache(c Cache) ResolverOption {
	return func(r *Resolver) { r.cache = c }
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) ResolverOption {
	return func(r *Resolver) { r.client = c }
}

// WithLogger sets the resolver logger.
func WithLogger(l logrus.FieldLogger) ResolverOption {
	return func(r *Resolver) { r.log = l }
}

func NewResolver(proxyURL string, timeout time.Duration, opts ...ResolverOption) *Resolver {
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	r := &Resolver{
		proxyURL: strings.TrimSpace(proxyURL),
		client:   &http.Client{Timeout: timeout},
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Bytes returns the raw encoded bitmap for src.
func (r *Resolver) Bytes(ctx context.Context, src string) ([]byte, error) {
	src = strings.TrimSpace(src)
	switch {
	case src == "":
		return nil, fmt.Errorf("%w: empty source", ErrUnsupportedSource)
	case IsInline(src):
		data, _, err := DecodeDataURI(src)
		return data, err
	case IsRemote(src):
		return r.fetchRemote(ctx, src)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSource, truncate(src, 48))
	}
}

func (r *Resolver) fetchRemote(ctx context.Context, remote string) ([]byte, error) {
	key := CacheKey(remote)
	if r.cache != nil {
		if data, err := r.cache.Get(ctx, key); err == nil && len(data) > 0 {
			return data, nil
		} else if err != nil {
			r.log.WithError(err).Warn("source cache read failed")
		}
	}

	target := remote
	if r.proxyURL != "" {
		target = ProxyURL(r.proxyURL, remote)
	}
	data, _, err := util.GetBytes(ctx, r.client, target)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", truncate(remote, 96), err)
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, data); err != nil {
			r.log.WithError(err).Warn("source cache write failed")
		}
	}
	return data, nil
}

// Decode resolves src and decodes it, applying EXIF orientation.
func (r *Resolver) Decode(ctx context.Context, src string) (image.Image, error) {
	data, err := r.Bytes(ctx, src)
	if err != nil {
		return nil, err
	}
	return DecodeBytes(data)
}

// Size reads only the header of src and returns its pixel dimensions.
func (r *Resolver) Size(ctx context.Context, src string) (int, int, error) {
	data, err := r.Bytes(ctx, src)
	if err != nil {
		return 0, 0, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return cfg.Width, cfg.Height, nil
}

// DecodeBytes decodes any registered bitmap format.
func DecodeBytes(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return img, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
