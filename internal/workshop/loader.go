package workshop

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultInlineMIME is prepended to inline bitmaps stored without a data URI
// header.
const DefaultInlineMIME = "image/png"

// Loader fetches compositions by id.
type Loader interface {
	FetchComposition(ctx context.Context, id string) (*Composition, error)
}

// Client loads compositions from the backend REST API.
type Client struct {
	baseURL string
	http    *http.Client
	log     logrus.FieldLogger
}

func NewClient(baseURL string, timeout time.Duration, logger logrus.FieldLogger) *Client {
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     logger,
	}
}

type compositionEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    *struct {
		ID        string  `json:"id"`
		MongoID   string  `json:"_id"`
		Category  string  `json:"category"`
		CreatedAt string  `json:"createdAt"`
		Images    []Image `json:"images"`
	} `json:"data"`
}

// FetchComposition performs GET /image-texts/{id}. It makes a single attempt;
// every failure wraps ErrLoad.
func (c *Client) FetchComposition(ctx context.Context, id string) (*Composition, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: empty composition id", ErrLoad)
	}
	endpoint := c.baseURL + "/image-texts/" + url.PathEscape(id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrLoad, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %w: %s", ErrLoad, ErrNotFound, id)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("%w: status %s: %s", ErrLoad, resp.Status, strings.TrimSpace(string(body)))
	}

	comp, err := decodeComposition(id, resp.Body)
	if err != nil {
		return nil, err
	}

	c.log.WithFields(logrus.Fields{
		"composition": comp.ID,
		"images":      comp.ImageCount(),
	}).Debug("composition loaded")
	return comp, nil
}

// decodeComposition parses the {success, message, data} envelope. The id in
// the payload wins over the requested one.
func decodeComposition(id string, r io.Reader) (*Composition, error) {
	var env compositionEnvelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrLoad, err)
	}
	if !env.Success || env.Data == nil {
		msg := env.Message
		if msg == "" {
			msg = "unsuccessful response"
		}
		return nil, fmt.Errorf("%w: %s", ErrLoad, msg)
	}

	comp := &Composition{
		ID:        id,
		Category:  env.Data.Category,
		CreatedAt: env.Data.CreatedAt,
		Images:    env.Data.Images,
	}
	if env.Data.ID != "" {
		comp.ID = env.Data.ID
	} else if env.Data.MongoID != "" {
		comp.ID = env.Data.MongoID
	}
	NormalizeImages(comp.Images)
	return comp, nil
}

// NormalizeImages gives every inline bitmap a data URI header.
func NormalizeImages(images []Image) {
	for i := range images {
		images[i].ImageBase64 = NormalizeInline(images[i].ImageBase64)
	}
}

// NormalizeInline prefixes a raw base64 payload with a default data URI
// header. Values that already carry one are returned unchanged.
func NormalizeInline(payload string) string {
	payload = strings.TrimSpace(payload)
	if payload == "" || strings.HasPrefix(strings.ToLower(payload), "data:") {
		return payload
	}
	return "data:" + DefaultInlineMIME + ";base64," + payload
}
