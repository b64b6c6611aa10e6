package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiredraw-server/internal/core"
	"github.com/vovakirdan/wiredraw-server/internal/store"
)

// RoomHandlers exposes the room directory together with live room state.
type RoomHandlers struct {
	store store.RoomStore
	hub   Hub
	log   *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(st store.RoomStore, hub Hub, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{store: st, hub: hub, log: logger}
}

// GuideResponse describes an active guide session.
type GuideResponse struct {
	ReferenceID string `json:"reference_id"`
	Step        int    `json:"step"`
	StepCount   int    `json:"step_count"`
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	ID          string         `json:"id"`
	Title       string         `json:"title,omitempty"`
	CreatedBy   string         `json:"created_by,omitempty"`
	CreatedAt   string         `json:"created_at,omitempty"`
	LastSeenAt  string         `json:"last_seen_at,omitempty"`
	Joins       int64          `json:"joins"`
	Live        bool           `json:"live"`
	Members     int            `json:"members"`
	HistoryLen  int            `json:"history_len"`
	HistoryStep int            `json:"history_step"`
	Guide       *GuideResponse `json:"guide,omitempty"`
}

// ListRooms lists directory rooms, most recently active first.
// GET /api/rooms?limit=N
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = n
	}

	ctx := c.Request.Context()
	rooms, err := h.store.ListRooms(ctx, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list rooms")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	live := make(map[string]core.RoomInfo)
	for _, info := range h.hub.Rooms(ctx) {
		live[info.ID] = info
	}

	resp := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		r := roomResponse(room)
		if info, ok := live[room.ID]; ok {
			applyLive(&r, info)
		}
		resp = append(resp, r)
	}
	c.JSON(http.StatusOK, resp)
}

// GetRoom returns one room. Rooms that are live but not in the directory are
// reported too.
// GET /api/rooms/:id
func (h *RoomHandlers) GetRoom(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	var resp RoomResponse
	room, err := h.store.GetRoom(ctx, id)
	switch {
	case err == nil:
		resp = roomResponse(room)
	case errors.Is(err, store.ErrNotFound):
		resp = RoomResponse{ID: id}
	default:
		h.log.Error().Err(err).Str("room", id).Msg("failed to get room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	info, live := h.hub.RoomInfo(ctx, id)
	if room == nil && !live {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
		return
	}
	if live {
		applyLive(&resp, info)
	}
	c.JSON(http.StatusOK, resp)
}

func roomResponse(room *store.Room) RoomResponse {
	return RoomResponse{
		ID:          room.ID,
		Title:       room.Title,
		CreatedBy:   room.CreatedBy,
		CreatedAt:   room.CreatedAt.Format(time.RFC3339),
		LastSeenAt:  room.LastSeenAt.Format(time.RFC3339),
		Joins:       room.Joins,
		HistoryStep: -1,
	}
}

func applyLive(r *RoomResponse, info core.RoomInfo) {
	r.Live = true
	r.Members = info.Members
	r.HistoryLen = info.HistoryLen
	r.HistoryStep = info.HistoryStep
	if info.Guide != nil {
		r.Guide = &GuideResponse{
			ReferenceID: info.Guide.ReferenceID,
			Step:        info.Guide.Step,
			StepCount:   info.Guide.StepCount,
		}
	}
}
