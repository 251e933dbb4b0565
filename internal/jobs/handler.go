package jobs

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"promptscan-backend/internal/sessions"
	"promptscan-backend/internal/shared/server/middleware"
	"promptscan-backend/internal/shared/server/respond"
)

const maxUploadSize = 1 << 20 // 1MB

// Handler exposes batch job routes.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches job routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/batches/jobs", h.submit)
	rg.GET("/batches/jobs/:id", h.get)
}

func (h *Handler) submit(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}

	ctx := sessions.WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	job, err := h.Svc.Submit(ctx, fileHeader.Filename, data)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyUpload), errors.Is(err, ErrInvalidUpload):
			respond.Error(c, http.StatusBadRequest, "batch_parse_error", err.Error(), nil)
		case errors.Is(err, ErrQueueNotConfigured), errors.Is(err, ErrStoreMissing):
			respond.Error(c, http.StatusServiceUnavailable, "queue_unavailable", "batch jobs are not enabled", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to submit batch job", nil)
		}
		return
	}
	respond.JSON(c, http.StatusAccepted, job)
}

func (h *Handler) get(c *gin.Context) {
	job, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "batch job not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load batch job", nil)
		return
	}
	respond.OK(c, job)
}
