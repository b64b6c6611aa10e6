package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiredraw-server/internal/core"
	"github.com/vovakirdan/wiredraw-server/internal/guide"
)

// ReferenceHandlers serves guide reference images to clients.
type ReferenceHandlers struct {
	refs References
	log  *zerolog.Logger
}

// NewReferenceHandlers creates a new reference handlers instance.
func NewReferenceHandlers(refs References, logger *zerolog.Logger) *ReferenceHandlers {
	return &ReferenceHandlers{refs: refs, log: logger}
}

// ListReferences returns the available reference ids.
// GET /api/references
func (h *ReferenceHandlers) ListReferences(c *gin.Context) {
	ids, err := h.refs.List()
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list references")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if ids == nil {
		ids = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"references": ids})
}

// GetReference returns the raw SVG of a reference.
// GET /api/references/:id
func (h *ReferenceHandlers) GetReference(c *gin.Context) {
	id := c.Param("id")
	ref, err := h.refs.Load(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, guide.ErrInvalidID):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid reference id"})
		case errors.Is(err, guide.ErrNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "reference not found"})
		case errors.Is(err, core.ErrNoDrawableContent):
			c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "reference has no drawable content"})
		default:
			h.log.Error().Err(err).Str("reference", id).Msg("failed to load reference")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, "image/svg+xml", ref.Raw())
}
