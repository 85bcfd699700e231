package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// NewRouter builds the engine with request id, logging and recovery.
func NewRouter(h *Handler, log logrus.FieldLogger) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Logger(log), gin.Recovery())
	RegisterRoutes(r, h)
	return r
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	api := r.Group("/api")
	{
		api.GET("/health", health)
		api.GET("/qr", qrHandler)
		api.GET("/image-proxy", h.imageProxy)

		ws := api.Group("/workshops/:id")
		ws.GET("", h.summary)
		ws.DELETE("", h.dropSession)
		ws.POST("/export", h.exportAll)

		img := ws.Group("/images/:index")
		img.POST("/loaded", h.imageLoaded)
		img.POST("/failed", h.imageFailed)
		img.POST("/layout", h.layout)
		img.POST("/export", h.exportImage)
	}
}
