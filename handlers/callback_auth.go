package handlers

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/sgahotel/cs-service/internal/apperr"
)

const callbackKeyHeader = "X-Api-Key"

// CallbackAuth guards agent router callbacks with a shared key. Only the
// bcrypt hash of the key is configured. An empty hash rejects every call.
func CallbackAuth(keyHash string) gin.HandlerFunc {
	hash := []byte(keyHash)
	return func(c *gin.Context) {
		key := c.GetHeader(callbackKeyHeader)
		if key == "" || len(hash) == 0 {
			respondError(c, apperr.ErrUnauthorized.WithMessage("Missing or unknown API key"))
			return
		}
		if err := bcrypt.CompareHashAndPassword(hash, []byte(key)); err != nil {
			respondError(c, apperr.ErrUnauthorized.WithMessage("Missing or unknown API key"))
			return
		}
		c.Next()
	}
}
