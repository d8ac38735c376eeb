package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nailerHeum/AjouNICE/internal/storage"
)

// FileOpener reads stored uploads.
type FileOpener interface {
	Open(ctx context.Context, key string) (*storage.Object, error)
}

// FileHandler serves uploaded objects under the locator path /files/<key>.
type FileHandler struct {
	files  FileOpener
	logger *slog.Logger
}

func NewFileHandler(files FileOpener, logger *slog.Logger) *FileHandler {
	return &FileHandler{files: files, logger: logger}
}

func (h *FileHandler) Serve(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" || strings.Contains(key, "..") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file key"})
		return
	}

	obj, err := h.files.Open(c.Request.Context(), key)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to open stored file", "key", key, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read file"})
		return
	}
	defer obj.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, obj.Size, contentType, obj, map[string]string{
		"Cache-Control": "public, max-age=31536000, immutable",
	})
}
