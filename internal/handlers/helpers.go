package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "folio/internal/errors"
	"folio/internal/logger"
	"folio/internal/middleware"
	"folio/internal/models"
	"folio/internal/scope"
	"folio/internal/state"
)

// getOwner loads the authenticated owner from the Gin context.
// Returns ErrUnauthorized if the token subject no longer exists.
func getOwner(c *gin.Context, container *state.Container) (*models.Owner, error) {
	id, exists := c.Get(middleware.OwnerIDKey)
	if !exists {
		return nil, apperrors.ErrUnauthorized
	}
	owner, err := container.OwnerByID(id.(string))
	if err != nil {
		return nil, apperrors.ErrUnauthorized
	}
	return owner, nil
}

// parseScope reads scope_kind and scope_id query parameters.
func parseScope(c *gin.Context) (scope.Scope, error) {
	return scope.Parse(c.Query("scope_kind"), c.Query("scope_id"))
}

// scopeFromBody validates a scope carried in a JSON payload.
func scopeFromBody(kind, id string) (scope.Scope, error) {
	return scope.Parse(kind, id)
}

// respondWithError writes a consistent JSON error response. If the error is an
// *AppError it uses the error's status code, code, and message. Otherwise it
// logs the unexpected error and returns a generic internal server error.
func respondWithError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Internal != nil {
			logger.Get().Errorw("app error",
				"code", appErr.Code,
				"internal", appErr.Internal.Error(),
				"path", c.Request.URL.Path,
			)
		}
		c.JSON(appErr.StatusCode, gin.H{
			"error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			},
		})
		return
	}

	logger.Get().Errorw("unexpected error",
		"error", err.Error(),
		"path", c.Request.URL.Path,
		"method", c.Request.Method,
	)
	c.JSON(apperrors.ErrInternalServer.StatusCode, gin.H{
		"error": gin.H{
			"code":    apperrors.ErrInternalServer.Code,
			"message": apperrors.ErrInternalServer.Message,
		},
	})
}

// ErrorDetail represents the inner error object in an error response.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}
