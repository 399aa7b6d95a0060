package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "folio/internal/errors"
	"folio/internal/models"
	"folio/internal/pagination"
	"folio/internal/scope"
	"folio/internal/state"
)

// TransactionHandler handles ledger reads and writes.
type TransactionHandler struct {
	container *state.Container
}

// NewTransactionHandler creates a new TransactionHandler
func NewTransactionHandler(container *state.Container) *TransactionHandler {
	return &TransactionHandler{container: container}
}

func (h *TransactionHandler) resolver() *scope.Resolver {
	return scope.NewResolver(
		h.container.Portfolios(),
		h.container.Accounts(),
		h.container.Groups(),
		h.container.Transactions(),
	)
}

// CreateTransactionRequest represents the transaction creation payload.
type CreateTransactionRequest struct {
	PortfolioID string     `json:"portfolio_id" binding:"required"`
	AccountID   string     `json:"account_id" binding:"required"`
	Symbol      string     `json:"symbol" binding:"required,max=20"`
	AssetType   string     `json:"asset_type" binding:"required,asset_type"`
	Side        string     `json:"side" binding:"required,transaction_side"`
	Quantity    float64    `json:"quantity" binding:"required,gt=0"`
	Price       float64    `json:"price" binding:"gte=0"`
	Date        *time.Time `json:"date"`
	Notes       string     `json:"notes" binding:"max=500"`
}

// List returns the transactions of a scope, paginated.
func (h *TransactionHandler) List(c *gin.Context) {
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
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	txs, err := h.resolver().Transactions(s, viewer)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, pagination.Page(txs, page))
}

// Holdings returns the derived net positions of a scope.
func (h *TransactionHandler) Holdings(c *gin.Context) {
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

	holdings, err := h.resolver().Holdings(s, viewer)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if holdings == nil {
		holdings = []models.Holding{}
	}
	c.JSON(http.StatusOK, gin.H{"holdings": holdings})
}

// Create appends a transaction to the ledger.
func (h *TransactionHandler) Create(c *gin.Context) {
	viewer, err := getOwner(c, h.container)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if viewer.IsGuest() {
		respondWithError(c, apperrors.ErrForbidden)
		return
	}

	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	// The account must be reachable within the portfolio for this viewer.
	accounts, err := h.resolver().Accounts(scope.Portfolio(req.PortfolioID), viewer)
	if err != nil {
		respondWithError(c, err)
		return
	}
	found := false
	for _, a := range accounts {
		if a.ID == req.AccountID {
			found = true
			break
		}
	}
	if !found {
		respondWithError(c, apperrors.ErrAccountNotFound)
		return
	}

	tx := models.Transaction{
		PortfolioID: req.PortfolioID,
		AccountID:   req.AccountID,
		Symbol:      strings.ToUpper(strings.TrimSpace(req.Symbol)),
		AssetType:   models.AssetType(req.AssetType),
		Side:        models.TransactionSide(req.Side),
		Quantity:    req.Quantity,
		Price:       req.Price,
		Notes:       req.Notes,
		Source:      models.SourceUser,
	}
	if req.Date != nil {
		tx.Date = *req.Date
	}

	created, err := h.container.AppendTransaction(tx)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transaction": created})
}

// Delete removes a transaction by id. The transaction's portfolio must be
// visible to the viewer, same as every other ledger path.
func (h *TransactionHandler) Delete(c *gin.Context) {
	viewer, err := getOwner(c, h.container)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if viewer.IsGuest() {
		respondWithError(c, apperrors.ErrForbidden)
		return
	}

	id := c.Param("id")
	var target *models.Transaction
	for _, tx := range h.container.Transactions() {
		if tx.ID == id {
			found := tx
			target = &found
			break
		}
	}
	if target == nil {
		respondWithError(c, apperrors.ErrTransactionNotFound)
		return
	}
	if _, err := h.resolver().Transactions(scope.Portfolio(target.PortfolioID), viewer); err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.container.DeleteTransaction(id); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
