package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sgahotel/cs-service/services"
)

type GuestRegistrar interface {
	RegisterGuest(ctx context.Context, orgID string, req services.RegisterGuestRequest) (*services.RegisterGuestResponse, error)
}

type GuestHandler struct {
	guests GuestRegistrar
}

func NewGuestHandler(guests GuestRegistrar) *GuestHandler {
	return &GuestHandler{guests: guests}
}

// Register handles POST /guests/register
func (h *GuestHandler) Register(c *gin.Context) {
	var req services.RegisterGuestRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.guests.RegisterGuest(c.Request.Context(), c.GetString(ctxOrgID), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, "Guest registered successfully", res)
}
