package workshop

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const compositionJSON = `{
  "success": true,
  "data": {
    "_id": "ws-42",
    "category": "Diwali",
    "createdAt": "2024-10-01T10:00:00Z",
    "images": [
      {"imageBase64": "iVBORw0KGgo=", "originalWidth": 1080, "originalHeight": 1080,
       "texts": [{"x": 0.1, "y": 0.9, "text": "{{username}}", "fontSize": 48, "bold": true, "color": "#ffffff", "bgColor": "rgba(0,0,0,0.5)", "borderRadius": 12}]},
      {"imageBase64": "data:image/jpeg;base64,/9j/4AAQ", "originalWidth": 800, "originalHeight": 600, "texts": []},
      {"imageUrl": "https://cdn.example.com/a.png", "originalWidth": 0, "originalHeight": 0, "texts": [{"x": 0.5, "y": 0.5, "text": "{{userLogo}}", "fontSize": 40}]}
    ]
  }
}`

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestFetchComposition(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/image-texts/ws-42" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, compositionJSON)
	}))
	defer server.Close()

	c := NewClient(server.URL+"/", time.Second, quietLogger())
	comp, err := c.FetchComposition(context.Background(), "ws-42")
	require.NoError(t, err)

	assert.Equal(t, "ws-42", comp.ID)
	assert.Equal(t, "Diwali", comp.Category)
	assert.Equal(t, 3, comp.ImageCount())

	assert.Equal(t, "data:image/png;base64,iVBORw0KGgo=", comp.Images[0].ImageBase64)
	assert.Equal(t, "data:image/jpeg;base64,/9j/4AAQ", comp.Images[1].ImageBase64)
	assert.Equal(t, "https://cdn.example.com/a.png", comp.Images[2].Source())

	o := comp.Images[0].Texts[0]
	assert.Equal(t, 48.0, o.FontSize)
	assert.True(t, o.Bold)
	assert.Equal(t, 12.0, o.BorderRadius)
}

func TestFetchCompositionFailures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		notFound bool
	}{
		{name: "unsuccessful", status: http.StatusOK, body: `{"success": false, "message": "nope"}`},
		{name: "missing data", status: http.StatusOK, body: `{"success": true}`},
		{name: "bad json", status: http.StatusOK, body: `{"success": `},
		{name: "server error", status: http.StatusInternalServerError, body: `boom`},
		{name: "not found", status: http.StatusNotFound, body: `{}`, notFound: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			_, err := NewClient(server.URL, time.Second, quietLogger()).FetchComposition(context.Background(), "x")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrLoad)
			if tt.notFound {
				assert.ErrorIs(t, err, ErrNotFound)
			}
			assert.Equal(t, int32(1), calls.Load(), "no retry")
		})
	}
}

func TestNormalizeInline(t *testing.T) {
	assert.Equal(t, "", NormalizeInline(""))
	assert.Equal(t, "data:image/png;base64,AAAA", NormalizeInline("AAAA"))
	assert.Equal(t, "DATA:image/gif;base64,R0lG", NormalizeInline("DATA:image/gif;base64,R0lG"))
}

type stubLoader struct {
	calls atomic.Int32
	err   error
}

func (s *stubLoader) FetchComposition(_ context.Context, id string) (*Composition, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return &Composition{ID: id, Images: []Image{{}, {}}}, nil
}

func TestRegistryCachesSessions(t *testing.T) {
	loader := &stubLoader{}
	r := NewRegistry(loader)

	a, err := r.Session(context.Background(), "c1")
	require.NoError(t, err)
	b, err := r.Session(context.Background(), "c1")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, int32(1), loader.calls.Load())
	assert.Len(t, a.States(), 2)

	r.Drop("c1")
	_, err = r.Session(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), loader.calls.Load())
}

func TestRegistryDoesNotCacheFailures(t *testing.T) {
	loader := &stubLoader{err: ErrLoad}
	r := NewRegistry(loader)

	_, err := r.Session(context.Background(), "c1")
	assert.ErrorIs(t, err, ErrLoad)
	_, err = r.Session(context.Background(), "c1")
	assert.ErrorIs(t, err, ErrLoad)
	assert.Equal(t, int32(2), loader.calls.Load())
}
