package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/sgahotel/cs-service/internal/apperr"
	"github.com/sgahotel/cs-service/services"
)

const signatureHeader = "X-Webhook-Hmac"

// maxWebhookBody bounds inbound webhook payloads.
const maxWebhookBody = 1 << 20

type EventHandler interface {
	HandleEvent(ctx context.Context, ev *services.WAHAEvent) (*services.WebhookResult, error)
}

type SignatureVerifier interface {
	VerifySignature(body []byte, signature string) bool
}

type OrderCreator interface {
	CreateOrdersFromWebhook(ctx context.Context, req services.OrderWebhookRequest) (*services.OrderWebhookResult, error)
}

type MessageSender interface {
	SendMessage(ctx context.Context, req services.SendMessageRequest) (*services.SendMessageResult, error)
}

// WebhookHandler receives WAHA events and agent router callbacks.
type WebhookHandler struct {
	events   EventHandler
	verifier SignatureVerifier
	orders   OrderCreator
	messages MessageSender
}

func NewWebhookHandler(events EventHandler, verifier SignatureVerifier, orders OrderCreator, messages MessageSender) *WebhookHandler {
	return &WebhookHandler{events: events, verifier: verifier, orders: orders, messages: messages}
}

// ReceiveWAHA handles POST /webhook/waha
func (h *WebhookHandler) ReceiveWAHA(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		respondError(c, apperr.ErrBadRequest.WithMessage("Failed to read request body").Wrap(err))
		return
	}

	if h.verifier != nil && !h.verifier.VerifySignature(body, c.GetHeader(signatureHeader)) {
		log.Warn().Str("client_ip", c.ClientIP()).Msg("rejected WAHA webhook with bad signature")
		respondError(c, apperr.ErrUnauthorized.WithMessage("Invalid webhook signature"))
		return
	}

	var ev services.WAHAEvent
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&ev); err != nil {
		respondError(c, apperr.ErrBadRequest.WithMessage("Invalid webhook payload").Wrap(err))
		return
	}
	if ev.Event == "" {
		respondError(c, apperr.ErrValidation.WithDetails(map[string]string{"event": "cannot be blank"}))
		return
	}

	result, err := h.events.HandleEvent(c.Request.Context(), &ev)
	if err != nil {
		respondError(c, err)
		return
	}

	message := "Webhook processed successfully"
	if result.Status == services.WebhookIgnored {
		message = "Webhook ignored: " + result.Reason
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": message,
		"data":    result,
	})
}

// CreateOrders handles POST /webhook/orders
func (h *WebhookHandler) CreateOrders(c *gin.Context) {
	var req services.OrderWebhookRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.orders.CreateOrdersFromWebhook(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// SendMessage handles POST /webhook/messages/send
func (h *WebhookHandler) SendMessage(c *gin.Context) {
	var req services.SendMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.messages.SendMessage(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Message handled", res)
}
