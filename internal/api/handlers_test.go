package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youruser/creativeworkshop/internal/export"
	imagepkg "github.com/youruser/creativeworkshop/internal/image"
	"github.com/youruser/creativeworkshop/internal/util"
	"github.com/youruser/creativeworkshop/internal/workshop"
)

type stubLoader map[string]*workshop.Composition

func (s stubLoader) FetchComposition(_ context.Context, id string) (*workshop.Composition, error) {
	if c, ok := s[id]; ok {
		return c, nil
	}
	return nil, errors.Join(workshop.ErrLoad, workshop.ErrNotFound)
}

type stubFetcher struct {
	data []byte
	err  error
}

func (f stubFetcher) Bytes(context.Context, string) ([]byte, error) {
	return f.data, f.err
}

func inlinePNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(0, 0, color.NRGBA{R: 10, A: 255})
	buf := new(bytes.Buffer)
	require.NoError(t, png.Encode(buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func newTestRouter(t *testing.T, fetcher Fetcher) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetOutput(io.Discard)

	comp := &workshop.Composition{
		ID:       "ws-1",
		Category: "Diwali",
		Images: []workshop.Image{
			{
				ImageBase64:    inlinePNG(t, 40, 20),
				OriginalWidth:  80,
				OriginalHeight: 40,
				Texts:          []workshop.Overlay{{X: 0.5, Y: 0.5, Text: "Hi {{username}}", FontSize: 10, BgColor: "#000"}},
			},
			{ImageURL: "ftp://nowhere/x.png", OriginalWidth: 10, OriginalHeight: 10},
		},
	}
	registry := workshop.NewRegistry(stubLoader{"ws-1": comp})

	fonts, err := imagepkg.NewFontBook()
	require.NoError(t, err)
	resolver := imagepkg.NewResolver("", time.Second, imagepkg.WithLogger(log))
	compositor := imagepkg.NewCompositor(resolver, fonts, log)

	sink, err := export.NewDirSink(t.TempDir())
	require.NoError(t, err)
	exporter := export.NewExporter(compositor)
	batch := export.NewBatch(exporter, sink, export.Options{WaitCeiling: 20 * time.Millisecond, PollInterval: 5 * time.Millisecond}, log)

	return NewRouter(NewHandler(registry, exporter, batch, fetcher, log), log)
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthAndRequestID(t *testing.T) {
	r := newTestRouter(t, stubFetcher{})
	w := do(r, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(requestIDHeader, "abc")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get(requestIDHeader))
}

func TestQR(t *testing.T) {
	r := newTestRouter(t, stubFetcher{})
	w := do(r, http.MethodGet, "/api/qr?text=https://example.com/r/X1&size=128", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	w = do(r, http.MethodGet, "/api/qr", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImageProxy(t *testing.T) {
	pngData := []byte("\x89PNG\r\n\x1a\n0000")
	r := newTestRouter(t, stubFetcher{data: pngData})

	w := do(r, http.MethodGet, "/api/image-proxy?url=https%3A%2F%2Fcdn%2Fa.png", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, pngData, w.Body.Bytes())

	w = do(r, http.MethodGet, "/api/image-proxy?url=file:///etc/passwd", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	r = newTestRouter(t, stubFetcher{err: errors.New("upstream down")})
	w = do(r, http.MethodGet, "/api/image-proxy?url=https%3A%2F%2Fcdn%2Fa.png", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestImageProxyRefusesInternalHosts(t *testing.T) {
	r := newTestRouter(t, stubFetcher{data: []byte("secret")})

	for _, target := range []string{
		"http://127.0.0.1/admin",
		"http://localhost:6379/",
		"http://LOCALHOST./x.png",
		"http://10.0.0.5/a.png",
		"http://169.254.169.254/latest/meta-data/",
		"http://[::1]:8080/a.png",
		"http://0.0.0.0/a.png",
	} {
		w := do(r, http.MethodGet, "/api/image-proxy?url="+url.QueryEscape(target), "")
		assert.Equal(t, http.StatusForbidden, w.Code, target)
		assert.NotContains(t, w.Body.String(), "secret", target)
	}

	blocked := fmt.Errorf("fetch: %w: 10.1.1.1", util.ErrBlockedAddress)
	r = newTestRouter(t, stubFetcher{err: blocked})
	w := do(r, http.MethodGet, "/api/image-proxy?url="+url.QueryEscape("https://inward.example.com/a.png"), "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSummaryAndNotFound(t *testing.T) {
	r := newTestRouter(t, stubFetcher{})

	w := do(r, http.MethodGet, "/api/workshops/ws-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		ID         string `json:"id"`
		ImageCount int    `json:"imageCount"`
		Loaded     int    `json:"loaded"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "ws-1", got.ID)
	assert.Equal(t, 2, got.ImageCount)
	assert.Zero(t, got.Loaded)

	w = do(r, http.MethodGet, "/api/workshops/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLoadedThenLayout(t *testing.T) {
	r := newTestRouter(t, stubFetcher{})

	w := do(r, http.MethodPost, "/api/workshops/ws-1/images/0/layout", `{"name":"Asha"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"loaded":false`)
	assert.Contains(t, w.Body.String(), `"elements":[]`)

	w = do(r, http.MethodPost, "/api/workshops/ws-1/images/0/loaded", `{"width":160,"height":80}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodPost, "/api/workshops/ws-1/images/0/layout", `{"name":"Asha"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Loaded   bool               `json:"loaded"`
		Elements []workshop.Element `json:"elements"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.True(t, got.Loaded)
	require.Len(t, got.Elements, 1)
	assert.Equal(t, "Hi Asha", got.Elements[0].Text)
	assert.Equal(t, 80.0, got.Elements[0].X)
	assert.Equal(t, 40.0, got.Elements[0].Y)
	assert.Equal(t, 20.0, got.Elements[0].FontSize)

	w = do(r, http.MethodPost, "/api/workshops/ws-1/images/0/failed", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"loaded":false`)
}

func TestBadIndexAndBody(t *testing.T) {
	r := newTestRouter(t, stubFetcher{})

	w := do(r, http.MethodPost, "/api/workshops/ws-1/images/7/loaded", `{"width":1,"height":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/workshops/ws-1/images/x/layout", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/workshops/ws-1/images/0/loaded", `{`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/workshops/ws-1/images/0/layout", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportSingle(t *testing.T) {
	r := newTestRouter(t, stubFetcher{})

	w := do(r, http.MethodPost, "/api/workshops/ws-1/images/0/export", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "workshop-ws-1-image-1-")

	img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 80, img.Bounds().Dx())
	assert.Equal(t, 40, img.Bounds().Dy())

	w = do(r, http.MethodPost, "/api/workshops/ws-1/images/1/export", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestExportAllReportsPartialFailure(t *testing.T) {
	r := newTestRouter(t, stubFetcher{})

	w := do(r, http.MethodPost, "/api/workshops/ws-1/export", `{"name":"Asha"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var report struct {
		Completed bool `json:"completed"`
		Succeeded int  `json:"succeeded"`
		Failed    int  `json:"failed"`
		Results   []struct {
			Index    int    `json:"index"`
			Location string `json:"location"`
			Error    string `json:"error"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.True(t, report.Completed)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Results, 2)
	assert.NotEmpty(t, report.Results[0].Location)
	assert.NotEmpty(t, report.Results[1].Error)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(errors.Join(workshop.ErrLoad, workshop.ErrNotFound)))
	assert.Equal(t, http.StatusBadGateway, statusFor(workshop.ErrLoad))
	assert.Equal(t, http.StatusBadRequest, statusFor(workshop.ErrBadIndex))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(export.ErrExport))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("x")))
}
