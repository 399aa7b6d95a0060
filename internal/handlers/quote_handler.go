package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "folio/internal/errors"
	"folio/internal/models"
	"folio/internal/quotes"
)

// QuoteHandler proxies current market prices to the UI.
type QuoteHandler struct {
	quotes *quotes.Service
}

// NewQuoteHandler creates a new QuoteHandler
func NewQuoteHandler(quoteSvc *quotes.Service) *QuoteHandler {
	return &QuoteHandler{quotes: quoteSvc}
}

// Get returns the live quote for one symbol.
func (h *QuoteHandler) Get(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Query("symbol")))
	if symbol == "" {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "symbol is required"))
		return
	}
	assetType := models.AssetType(c.DefaultQuery("asset_type", string(models.AssetTypeStock)))
	if assetType != models.AssetTypeStock && assetType != models.AssetTypeCrypto {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Unknown asset type"))
		return
	}

	quote, err := h.quotes.GetQuote(c.Request.Context(), symbol, assetType)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quote": quote})
}
