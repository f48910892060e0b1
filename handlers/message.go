package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/sgahotel/cs-service/internal/pagination"
	"github.com/sgahotel/cs-service/services"
)

type MessageLister interface {
	ListMessages(ctx context.Context, sessionID string, params pagination.Params) ([]services.MessageItem, pagination.Meta, error)
}

type MessageHandler struct {
	messages MessageLister
}

func NewMessageHandler(messages MessageLister) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// List handles GET /messages?session_id=
func (h *MessageHandler) List(c *gin.Context) {
	params, err := pageParams(c)
	if err != nil {
		respondError(c, err)
		return
	}
	items, meta, err := h.messages.ListMessages(c.Request.Context(), c.Query("session_id"), params)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, "Messages retrieved successfully", items, meta)
}
