package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sgahotel/cs-service/services"
)

type WorkerLister interface {
	ListWorkers(ctx context.Context, orgID string) ([]services.WorkerItem, error)
}

type WorkerHandler struct {
	workers WorkerLister
}

func NewWorkerHandler(workers WorkerLister) *WorkerHandler {
	return &WorkerHandler{workers: workers}
}

// List handles GET /workers
func (h *WorkerHandler) List(c *gin.Context) {
	workers, err := h.workers.ListWorkers(c.Request.Context(), c.GetString(ctxOrgID))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "Workers retrieved successfully", workers)
}
