package server

import (
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/MarcoPoloResearchLab/pastemate/internal/blobstore"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handleStylesheet(c *gin.Context) {
	css, err := h.stylesheet.CSS()
	if err != nil {
		h.logger.Error("stylesheet generation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, "text/css; charset=utf-8", css)
}

// handleMedia serves embed images straight from the blob store.
func (h *httpHandler) handleMedia(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	data, err := h.blobs.Get(c.Request.Context(), key)
	if errors.Is(err, blobstore.ErrNotFound) || errors.Is(err, blobstore.ErrInvalidKey) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		h.logger.Error("media read failed", zap.String("key", key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	contentType := "application/octet-stream"
	if path.Ext(key) == ".png" {
		contentType = "image/png"
	}
	c.Data(http.StatusOK, contentType, data)
}
