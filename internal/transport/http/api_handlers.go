package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiredraw-server/internal/auth"
)

// LinkHandlers issues room invitation links.
type LinkHandlers struct {
	admission *auth.Service
	log       *zerolog.Logger
}

// NewLinkHandlers creates a new link handlers instance.
func NewLinkHandlers(admission *auth.Service, logger *zerolog.Logger) *LinkHandlers {
	return &LinkHandlers{admission: admission, log: logger}
}

// CreateLinkRequest represents the link request body. All fields are optional;
// the bot passes the chat id as Room.
type CreateLinkRequest struct {
	Room      string `json:"room" binding:"omitempty,max=64"`
	Title     string `json:"title" binding:"omitempty,max=128"`
	CreatedBy string `json:"created_by" binding:"omitempty,max=64"`
}

// CreateLink registers a room and returns its link.
// POST /api/rooms
func (h *LinkHandlers) CreateLink(c *gin.Context) {
	var req CreateLinkRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.log.Debug().Err(err).Msg("invalid link request")
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
			return
		}
	}

	link, err := h.admission.IssueLink(c.Request.Context(), req.Room, req.Title, req.CreatedBy)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidRoom) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid room id"})
			return
		}
		h.log.Error().Err(err).Str("room", req.Room).Msg("failed to issue link")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("room", link.Room).Str("created_by", req.CreatedBy).Msg("room link issued")
	c.JSON(http.StatusCreated, link)
}
