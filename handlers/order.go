package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sgahotel/cs-service/db"
	"github.com/sgahotel/cs-service/internal/pagination"
	"github.com/sgahotel/cs-service/services"
)

type OrderLister interface {
	ListOrders(ctx context.Context, orgID string, params pagination.Params) ([]db.Order, pagination.Meta, error)
}

type OrderAssigner interface {
	AssignOrder(ctx context.Context, orderNumber string, req services.AssignOrderRequest) (*db.OrderAssigner, error)
}

type OrderHandler struct {
	orders   OrderLister
	assigner OrderAssigner
}

func NewOrderHandler(orders OrderLister, assigner OrderAssigner) *OrderHandler {
	return &OrderHandler{orders: orders, assigner: assigner}
}

// List handles GET /orders
func (h *OrderHandler) List(c *gin.Context) {
	params, err := pageParams(c)
	if err != nil {
		respondError(c, err)
		return
	}
	orders, meta, err := h.orders.ListOrders(c.Request.Context(), c.GetString(ctxOrgID), params)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, "Orders retrieved successfully", orders, meta)
}

// Assign handles POST /orders/:order_number/assign
func (h *OrderHandler) Assign(c *gin.Context) {
	var req services.AssignOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	a, err := h.assigner.AssignOrder(c.Request.Context(), c.Param("order_number"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, "Order assigned successfully", a)
}
