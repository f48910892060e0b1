package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/sgahotel/cs-service/db"
	"github.com/sgahotel/cs-service/internal/apperr"
	"github.com/sgahotel/cs-service/services"
)

// Context keys set by the auth middleware.
const (
	ctxTokenData = "token_data"
	ctxUserID    = "user_id"
	ctxOrgID     = "org_id"
	ctxUser      = "user"
)

type TokenValidator interface {
	ValidateToken(tokenString string) (*services.TokenData, error)
}

type UserSyncer interface {
	SyncUser(ctx context.Context, td *services.TokenData) (*db.User, error)
}

type KeycloakAuthMiddleware struct {
	Auth TokenValidator
	Sync UserSyncer // nil disables sync
}

func NewKeycloakAuthMiddleware(auth TokenValidator, sync UserSyncer) *KeycloakAuthMiddleware {
	return &KeycloakAuthMiddleware{Auth: auth, Sync: sync}
}

// RequireAuth validates the bearer token and, when a syncer is configured,
// mirrors the caller's organization and user into the database.
func (m *KeycloakAuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := services.ExtractTokenFromHeader(c.GetHeader("Authorization"))
		if err != nil {
			respondError(c, apperr.ErrUnauthorized.WithMessage("%s", capitalize(err.Error())))
			return
		}

		td, err := m.Auth.ValidateToken(token)
		if err != nil {
			respondError(c, err)
			return
		}

		c.Set(ctxTokenData, td)
		c.Set(ctxUserID, td.UserID)
		c.Set(ctxOrgID, td.OrganizationID)

		if m.Sync != nil {
			user, err := m.Sync.SyncUser(c.Request.Context(), td)
			if err != nil {
				respondError(c, err)
				return
			}
			c.Set(ctxUser, user)
		}

		log.Debug().Str("user_id", td.UserID).Str("org_id", td.OrganizationID).Msg("authenticated")
		c.Next()
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// TokenDataFrom returns the token of the authenticated caller, if any.
func TokenDataFrom(c *gin.Context) (*services.TokenData, bool) {
	v, ok := c.Get(ctxTokenData)
	if !ok {
		return nil, false
	}
	td, ok := v.(*services.TokenData)
	return td, ok
}

func (m *KeycloakAuthMiddleware) guard(check func(td *services.TokenData) bool, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		td, ok := TokenDataFrom(c)
		if !ok {
			respondError(c, apperr.ErrUnauthorized)
			return
		}
		if !check(td) {
			respondError(c, apperr.ErrForbidden.WithMessage("%s", message))
			return
		}
		c.Next()
	}
}

func (m *KeycloakAuthMiddleware) RequireRole(role string) gin.HandlerFunc {
	return m.guard(func(td *services.TokenData) bool { return td.HasRole(role) },
		"Role '"+role+"' required")
}

func (m *KeycloakAuthMiddleware) RequireAnyRole(roles ...string) gin.HandlerFunc {
	return m.guard(func(td *services.TokenData) bool { return td.HasAnyRole(roles...) },
		"One of roles ["+strings.Join(roles, ", ")+"] required")
}

func (m *KeycloakAuthMiddleware) RequireAllRoles(roles ...string) gin.HandlerFunc {
	return m.guard(func(td *services.TokenData) bool { return td.HasAllRoles(roles...) },
		"All roles ["+strings.Join(roles, ", ")+"] required")
}

func (m *KeycloakAuthMiddleware) RequirePermission(resource string) gin.HandlerFunc {
	return m.guard(func(td *services.TokenData) bool { return td.HasPermission(resource) },
		"Permission for '"+resource+"' required")
}
