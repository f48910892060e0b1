package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/sgahotel/cs-service/internal/apperr"
	"github.com/sgahotel/cs-service/internal/pagination"
)

// hideErrorData strips the underlying cause from error responses.
var hideErrorData bool

// SetProduction toggles production error responses.
func SetProduction(production bool) { hideErrorData = production }

type Response struct {
	Message string           `json:"message"`
	Data    any              `json:"data"`
	Meta    *pagination.Meta `json:"meta,omitempty"`
}

type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Data      any    `json:"data"`
	Details   any    `json:"details,omitempty"`
	Timestamp string `json:"timestamp"`
}

func respondOK(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Response{Message: message, Data: data})
}

func respondPage(c *gin.Context, message string, data any, meta pagination.Meta) {
	c.JSON(http.StatusOK, Response{Message: message, Data: data, Meta: &meta})
}

// respondError writes the error envelope. Unclassified errors are reported
// as unexpected 500s.
func respondError(c *gin.Context, err error) {
	appErr, ok := apperr.As(err)
	if !ok {
		appErr = apperr.ErrUnexpected.Wrap(err)
	}
	if appErr.Status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("code", appErr.Code).Str("path", c.Request.URL.Path).Msg("request failed")
	}

	body := ErrorResponse{
		Code:      appErr.Code,
		Message:   appErr.Message,
		Details:   appErr.Details,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if !hideErrorData && appErr.Err != nil {
		body.Data = appErr.Err.Error()
	}
	c.AbortWithStatusJSON(appErr.Status, body)
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, apperr.ErrBadRequest.WithMessage("Invalid request body").Wrap(err))
		return false
	}
	return true
}

// pageParams reads page, per_page, keyword and order from the query string.
func pageParams(c *gin.Context) (pagination.Params, error) {
	p := pagination.Params{
		Keyword: c.Query("keyword"),
		Order:   c.Query("order"),
	}
	for name, dst := range map[string]*int{"page": &p.Page, "per_page": &p.PerPage} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return p, apperr.ErrValidation.WithDetails(map[string]string{name: "must be a positive integer"})
		}
		*dst = n
	}
	if p.PerPage > pagination.MaxPerPage {
		return p, apperr.ErrValidation.WithDetails(map[string]string{"per_page": "must be no greater than 100"})
	}
	return p.Normalize(), nil
}

// Recovery turns panics into the standard 500 envelope.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		err, ok := recovered.(error)
		if !ok {
			err = errors.New("panic")
		}
		log.Error().Interface("panic", recovered).Str("path", c.Request.URL.Path).Msg("recovered from panic")
		respondError(c, apperr.ErrInternal.Wrap(err))
	})
}
