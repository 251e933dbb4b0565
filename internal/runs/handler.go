// Package runs exposes the manual and batch lanes over HTTP.
package runs

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"promptscan-backend/internal/analytics"
	"promptscan-backend/internal/batch"
	"promptscan-backend/internal/export"
	"promptscan-backend/internal/sessions"
	"promptscan-backend/internal/shared/server/middleware"
	"promptscan-backend/internal/shared/server/respond"
)

const maxUploadSize = 1 << 20 // 1MB

// Handler wires the lane managers to HTTP.
type Handler struct {
	Manual  *sessions.Manager
	Batch   *sessions.Manager
	Exports *export.Service
}

// NewHandler constructs a Handler.
func NewHandler(manual, batchLane *sessions.Manager, exports *export.Service) *Handler {
	return &Handler{Manual: manual, Batch: batchLane, Exports: exports}
}

// RegisterRoutes attaches session and batch routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/sessions", h.startManual)
	rg.GET("/sessions/current", h.current(h.Manual))
	rg.DELETE("/sessions/current", h.reset(h.Manual))
	rg.GET("/sessions/current/analytics", h.analytics(h.Manual))
	rg.GET("/sessions/current/export", h.export(h.Manual))

	rg.POST("/batches", h.startBatch)
	rg.GET("/batches/template", h.template)
	rg.GET("/batches/current", h.current(h.Batch))
	rg.DELETE("/batches/current", h.reset(h.Batch))
	rg.GET("/batches/current/analytics", h.analytics(h.Batch))
	rg.GET("/batches/current/export", h.export(h.Batch))
}

type startRequest struct {
	Prompts  []string `json:"prompts" binding:"required,min=1,max=10"`
	Keywords []string `json:"keywords" binding:"required,min=1"`
}

func (h *Handler) startManual(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BindError(c, err)
		return
	}

	ctx := sessions.WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	session, err := h.Manual.Start(ctx, req.Prompts, req.Keywords)
	if err != nil {
		writeStartError(c, err)
		return
	}
	c.Set(middleware.SessionIDKey, session.ID)
	c.Set(middleware.LaneKey, session.Lane)
	respond.JSON(c, http.StatusAccepted, session)
}

func (h *Handler) startBatch(c *gin.Context) {
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

	rows, err := batch.Parse(file)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "batch_parse_error", err.Error(), nil)
		return
	}

	ctx := sessions.WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	session, err := h.Batch.StartBatch(ctx, rows)
	if err != nil {
		writeStartError(c, err)
		return
	}
	c.Set(middleware.SessionIDKey, session.ID)
	c.Set(middleware.LaneKey, session.Lane)
	respond.JSON(c, http.StatusAccepted, session)
}

func (h *Handler) template(c *gin.Context) {
	c.Header("Content-Disposition", `attachment; filename="`+batch.TemplateFileName+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", batch.Template())
}

func (h *Handler) current(m *sessions.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := m.Current()
		if !ok {
			respond.Error(c, http.StatusNotFound, "not_found", "no session", nil)
			return
		}
		respond.OK(c, session)
	}
}

func (h *Handler) reset(m *sessions.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		m.Reset()
		c.Status(http.StatusNoContent)
	}
}

func (h *Handler) analytics(m *sessions.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := m.Current()
		if !ok {
			respond.OK(c, analytics.Summarize(nil, sessions.Session{}))
			return
		}
		respond.OK(c, analytics.ForSession(session))
	}
}

func (h *Handler) export(m *sessions.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := m.Current()
		if !ok {
			respond.Error(c, http.StatusNotFound, "not_found", "no session", nil)
			return
		}

		var data []byte
		if h.Exports != nil {
			ctx := sessions.WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
			rec, encoded, err := h.Exports.Export(ctx, session)
			if err != nil {
				respond.Error(c, http.StatusInternalServerError, "export_failed", "failed to export session", nil)
				return
			}
			c.Header("X-Export-Id", rec.ID)
			data = encoded
		} else {
			encoded, err := export.Build(session, timeNow()).Encode()
			if err != nil {
				respond.Error(c, http.StatusInternalServerError, "export_failed", "failed to export session", nil)
				return
			}
			data = encoded
		}

		c.Header("Content-Disposition", `attachment; filename="`+export.FileName(session.ID)+`"`)
		c.Data(http.StatusOK, "application/json", data)
	}
}

func writeStartError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, sessions.ErrNoPrompts),
		errors.Is(err, sessions.ErrNoKeywords),
		errors.Is(err, sessions.ErrTooManyPrompts),
		errors.Is(err, sessions.ErrTooManyRows),
		errors.Is(err, batch.ErrNoRows):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start session", nil)
	}
}
