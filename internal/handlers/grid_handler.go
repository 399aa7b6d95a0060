package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "folio/internal/errors"
	"folio/internal/grid"
	"folio/internal/models"
	"folio/internal/state"
)

// GridHandler handles the quick-overview grid and its direct cell edits.
type GridHandler struct {
	container *state.Container
	builder   *grid.Builder
}

// NewGridHandler creates a new GridHandler
func NewGridHandler(container *state.Container, builder *grid.Builder) *GridHandler {
	return &GridHandler{container: container, builder: builder}
}

// Get returns the grid for a scope.
func (h *GridHandler) Get(c *gin.Context) {
	viewer, err := getOwner(c, h.container)
	if err != nil {
		respondWithError(c, err)
		return
	}
	s, err := parseScope(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	g, err := h.builder.Build(s, viewer)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// SetQuantityRequest represents a direct cell edit.
type SetQuantityRequest struct {
	ScopeKind string  `json:"scope_kind" binding:"required,scope_kind"`
	ScopeID   string  `json:"scope_id"`
	AccountID string  `json:"account_id" binding:"required"`
	Symbol    string  `json:"symbol" binding:"required,max=20"`
	AssetType string  `json:"asset_type" binding:"required,asset_type"`
	Quantity  float64 `json:"quantity"`
	Price     float64 `json:"price" binding:"gte=0"`
}

// SetQuantity reconciles a cell to the requested quantity. The response
// carries the adjustment transaction, or null when nothing changed.
func (h *GridHandler) SetQuantity(c *gin.Context) {
	viewer, err := getOwner(c, h.container)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if viewer.IsGuest() {
		respondWithError(c, apperrors.ErrForbidden)
		return
	}

	var req SetQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	s, err := scopeFromBody(req.ScopeKind, req.ScopeID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	tx, err := h.builder.SetQuantity(s, viewer, req.AccountID, req.Symbol,
		models.AssetType(req.AssetType), req.Quantity, req.Price)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

// TrackRequest represents a watch-symbol change.
type TrackRequest struct {
	ScopeKind string `json:"scope_kind" binding:"required,scope_kind"`
	ScopeID   string `json:"scope_id"`
	Symbol    string `json:"symbol" binding:"required,max=20"`
	AssetType string `json:"asset_type" binding:"omitempty,asset_type"`
}

// Track adds a watched symbol to a scope's grid.
func (h *GridHandler) Track(c *gin.Context) {
	viewer, err := getOwner(c, h.container)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req TrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	if req.AssetType == "" {
		req.AssetType = string(models.AssetTypeStock)
	}
	s, err := scopeFromBody(req.ScopeKind, req.ScopeID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.builder.Track(s, viewer, req.Symbol, models.AssetType(req.AssetType)); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tracked": true})
}

// Untrack removes a watched symbol from a scope's grid.
func (h *GridHandler) Untrack(c *gin.Context) {
	viewer, err := getOwner(c, h.container)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req TrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	s, err := scopeFromBody(req.ScopeKind, req.ScopeID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.builder.Untrack(s, viewer, req.Symbol); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tracked": false})
}
