package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sgahotel/cs-service/db"
	"github.com/sgahotel/cs-service/internal/apperr"
)

type AuthHandler struct{}

func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

// Me handles GET /me: the caller's token claims plus the synced user row.
func (h *AuthHandler) Me(c *gin.Context) {
	td, ok := TokenDataFrom(c)
	if !ok {
		respondError(c, apperr.ErrUnauthorized)
		return
	}
	data := gin.H{"token": td, "display_name": td.DisplayName()}
	if v, ok := c.Get(ctxUser); ok {
		if u, ok := v.(*db.User); ok {
			data["user"] = u
		}
	}
	respondOK(c, http.StatusOK, "Profile retrieved successfully", data)
}
