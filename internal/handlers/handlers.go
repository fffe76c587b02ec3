package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"catdog-api/internal/config"
	"catdog-api/internal/model"
	"catdog-api/internal/service"
)

type Handler struct {
	classifier *service.Classifier
	cfg        *config.Config
	log        *logrus.Logger
}

func New(classifier *service.Classifier, cfg *config.Config, log *logrus.Logger) *Handler {
	return &Handler{
		classifier: classifier,
		cfg:        cfg,
		log:        log,
	}
}

// Register wires the HTTP surface onto the router.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	api := r.Group("/api/v1")
	{
		api.POST("/predict", h.Predict)
	}
}

func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Cat vs Dog Classifier API",
		"health":  "/health",
		"predict": "/api/v1/predict",
	})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, model.HealthResponse{
		Status:      "ok",
		ModelLoaded: h.classifier.Ready(),
	})
}

// Predict accepts a multipart upload in field "file" and returns the
// classification result.
func (h *Handler) Predict(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no image file provided; use multipart field 'file'"})
		return
	}

	if file.Size > h.cfg.MaxUploadBytes() {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("file exceeds the %d MB limit", h.cfg.MaxUploadMB),
		})
		return
	}

	if ct := file.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file type not supported"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read upload"})
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read upload"})
		return
	}

	result, err := h.classifier.Predict(data)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, result)
	case errors.Is(err, service.ErrBadImage):
		c.JSON(http.StatusBadRequest, result)
	case errors.Is(err, service.ErrNotReady):
		c.JSON(http.StatusServiceUnavailable, result)
	default:
		c.JSON(http.StatusInternalServerError, result)
	}
}
