package handlers

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sgahotel/cs-service/db"
	"github.com/sgahotel/cs-service/internal/apperr"
	"github.com/sgahotel/cs-service/internal/pagination"
)

type RoomLister interface {
	ListRooms(ctx context.Context, orgID string, params pagination.Params, booked *bool) ([]db.Room, pagination.Meta, error)
}

type RoomHandler struct {
	rooms RoomLister
}

func NewRoomHandler(rooms RoomLister) *RoomHandler {
	return &RoomHandler{rooms: rooms}
}

// List handles GET /rooms?is_booked=
func (h *RoomHandler) List(c *gin.Context) {
	params, err := pageParams(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var booked *bool
	if raw := c.Query("is_booked"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(c, apperr.ErrValidation.WithDetails(map[string]string{"is_booked": "must be a boolean"}))
			return
		}
		booked = &b
	}

	rooms, meta, err := h.rooms.ListRooms(c.Request.Context(), c.GetString(ctxOrgID), params, booked)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, "Rooms retrieved successfully", rooms, meta)
}
