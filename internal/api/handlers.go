package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/youruser/creativeworkshop/internal/export"
	imagepkg "github.com/youruser/creativeworkshop/internal/image"
	"github.com/youruser/creativeworkshop/internal/util"
	"github.com/youruser/creativeworkshop/internal/workshop"
)

// Fetcher returns the raw bytes behind an image reference.
type Fetcher interface {
	Bytes(ctx context.Context, src string) ([]byte, error)
}

type Handler struct {
	sessions *workshop.Registry
	exporter *export.Exporter
	batch    *export.Batch
	fetcher  Fetcher
	log      logrus.FieldLogger
}

func NewHandler(sessions *workshop.Registry, exporter *export.Exporter, batch *export.Batch, fetcher Fetcher, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{sessions: sessions, exporter: exporter, batch: batch, fetcher: fetcher, log: logger}
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, workshop.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, workshop.ErrBadIndex):
		return http.StatusBadRequest
	case errors.Is(err, workshop.ErrNotLoaded):
		return http.StatusConflict
	case errors.Is(err, workshop.ErrLoad):
		return http.StatusBadGateway
	case errors.Is(err, export.ErrExport), errors.Is(err, imagepkg.ErrDecode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, imagepkg.ErrUnsupportedSource):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusFor(err), gin.H{"error": err.Error()})
}

func health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// qrHandler returns a PNG QR code for the "text" query param.
func qrHandler(c *gin.Context) {
	text := c.Query("text")
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}
	size := imagepkg.DefaultQRSize
	if s := c.Query("size"); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			size = v
		}
	}
	b, err := imagepkg.GenerateQRPNG(text, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", b)
}

// imageProxy fetches a remote bitmap on behalf of the browser preview.
func (h *Handler) imageProxy(c *gin.Context) {
	target := c.Query("url")
	if !imagepkg.IsRemote(target) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url must be http(s)"})
		return
	}
	if err := checkProxyTarget(target); err != nil {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return
	}
	data, err := h.fetcher.Bytes(c.Request.Context(), target)
	if err != nil {
		_ = c.Error(err)
		status := http.StatusBadGateway
		if errors.Is(err, util.ErrBlockedAddress) {
			status = http.StatusForbidden
		}
		c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
		return
	}
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, http.DetectContentType(data), data)
}

// checkProxyTarget refuses localhost and non-public IP literals up front.
// Names that resolve inward are caught by the fetcher's dialer.
func checkProxyTarget(target string) error {
	u, err := url.Parse(strings.TrimSpace(target))
	if err != nil {
		return fmt.Errorf("%w: %w", util.ErrBlockedAddress, err)
	}
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "" || host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return fmt.Errorf("%w: %q", util.ErrBlockedAddress, host)
	}
	if ip := net.ParseIP(host); ip != nil && !util.PublicIP(ip) {
		return fmt.Errorf("%w: %s", util.ErrBlockedAddress, host)
	}
	return nil
}

func (h *Handler) session(c *gin.Context) (*workshop.Session, bool) {
	s, err := h.sessions.Session(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return nil, false
	}
	return s, true
}

// sessionImage resolves the :id and :index params.
func (h *Handler) sessionImage(c *gin.Context) (*workshop.Session, int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		abortWithError(c, fmt.Errorf("%w: %q", workshop.ErrBadIndex, c.Param("index")))
		return nil, 0, false
	}
	s, ok := h.session(c)
	if !ok {
		return nil, 0, false
	}
	if _, err := s.Composition.Image(index); err != nil {
		abortWithError(c, err)
		return nil, 0, false
	}
	return s, index, true
}

// viewer reads the optional viewer object from the request body.
func viewer(c *gin.Context) (workshop.Viewer, bool) {
	body, err := c.GetRawData()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return workshop.Viewer{}, false
	}
	v, err := workshop.ParseViewer(body)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return workshop.Viewer{}, false
	}
	return v, true
}

func (h *Handler) summary(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	comp := s.Composition
	c.JSON(http.StatusOK, gin.H{
		"id":         comp.ID,
		"category":   comp.Category,
		"createdAt":  comp.CreatedAt,
		"imageCount": comp.ImageCount(),
		"loaded":     s.Tracker.LoadedCount(),
		"images":     s.States(),
	})
}

func (h *Handler) dropSession(c *gin.Context) {
	h.sessions.Drop(c.Param("id"))
	c.Status(http.StatusNoContent)
}

func (h *Handler) imageLoaded(c *gin.Context) {
	var req struct {
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s, index, ok := h.sessionImage(c)
	if !ok {
		return
	}
	s.Tracker.MarkLoaded(index, req.Width, req.Height)
	d, _ := s.Tracker.State(index)
	c.JSON(http.StatusOK, workshop.ImageState{Index: index, Dimensions: d})
}

func (h *Handler) imageFailed(c *gin.Context) {
	s, index, ok := h.sessionImage(c)
	if !ok {
		return
	}
	s.Tracker.MarkFailed(index)
	h.log.WithFields(logrus.Fields{"composition": s.Composition.ID, "image": index + 1}).Warn("image failed to load in preview")
	d, _ := s.Tracker.State(index)
	c.JSON(http.StatusOK, workshop.ImageState{Index: index, Dimensions: d})
}

func (h *Handler) layout(c *gin.Context) {
	v, ok := viewer(c)
	if !ok {
		return
	}
	s, index, ok := h.sessionImage(c)
	if !ok {
		return
	}
	elements, err := s.Layout(index, v)
	if err != nil && !errors.Is(err, workshop.ErrNotLoaded) {
		abortWithError(c, err)
		return
	}
	if elements == nil {
		elements = []workshop.Element{}
	}
	c.JSON(http.StatusOK, gin.H{
		"index":    index,
		"loaded":   err == nil,
		"elements": elements,
	})
}

func (h *Handler) exportImage(c *gin.Context) {
	v, ok := viewer(c)
	if !ok {
		return
	}
	s, index, ok := h.sessionImage(c)
	if !ok {
		return
	}
	art, err := h.exporter.Export(c.Request.Context(), s.Composition, index, v)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Name))
	c.Data(http.StatusOK, art.ContentType, art.Data)
}

func (h *Handler) exportAll(c *gin.Context) {
	v, ok := viewer(c)
	if !ok {
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	report := h.batch.ExportAll(c.Request.Context(), s, v)
	c.JSON(http.StatusOK, report)
}
