package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "folio/internal/errors"
	"folio/internal/models"
	"folio/internal/scope"
	"folio/internal/state"
)

// PortfolioHandler handles portfolio and account management requests.
type PortfolioHandler struct {
	container *state.Container
}

// NewPortfolioHandler creates a new PortfolioHandler
func NewPortfolioHandler(container *state.Container) *PortfolioHandler {
	return &PortfolioHandler{container: container}
}

func (h *PortfolioHandler) resolver() *scope.Resolver {
	return scope.NewResolver(
		h.container.Portfolios(),
		h.container.Accounts(),
		h.container.Groups(),
		h.container.Transactions(),
	)
}

// CreatePortfolioRequest represents the portfolio creation payload.
type CreatePortfolioRequest struct {
	Name              string   `json:"name" binding:"required,max=100"`
	OwnerIDs          []string `json:"owner_ids"`
	IncludeInCombined bool     `json:"include_in_combined"`
}

// List returns the portfolios visible to the viewer.
func (h *PortfolioHandler) List(c *gin.Context) {
	viewer, err := getOwner(c, h.container)
	if err != nil {
		respondWithError(c, err)
		return
	}
	portfolios := h.resolver().VisiblePortfolios(viewer)
	if portfolios == nil {
		portfolios = []models.Portfolio{}
	}
	c.JSON(http.StatusOK, gin.H{"portfolios": portfolios})
}

// Create adds a portfolio. Guests cannot create portfolios.
func (h *PortfolioHandler) Create(c *gin.Context) {
	viewer, err := getOwner(c, h.container)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if viewer.IsGuest() {
		respondWithError(c, apperrors.ErrForbidden)
		return
	}

	var req CreatePortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	portfolio, err := h.container.AddPortfolio(models.Portfolio{
		Name:              req.Name,
		OwnerIDs:          req.OwnerIDs,
		IncludeInCombined: req.IncludeInCombined,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"portfolio": portfolio})
}

// Update replaces a visible portfolio's name, owners and combined flag.
func (h *PortfolioHandler) Update(c *gin.Context) {
	viewer, err := getOwner(c, h.container)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if viewer.IsGuest() {
		respondWithError(c, apperrors.ErrForbidden)
		return
	}

	var req CreatePortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	id := c.Param("id")
	if !h.visible(id, viewer) {
		respondWithError(c, apperrors.ErrForbidden)
		return
	}

	portfolio, err := h.container.UpdatePortfolio(id, req.Name, req.OwnerIDs, req.IncludeInCombined)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"portfolio": portfolio})
}

// CreateAccountRequest represents the account creation payload.
type CreateAccountRequest struct {
	Name string `json:"name" binding:"required,max=100"`
}

// CreateAccount adds an account under a visible portfolio.
func (h *PortfolioHandler) CreateAccount(c *gin.Context) {
	viewer, err := getOwner(c, h.container)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if viewer.IsGuest() {
		respondWithError(c, apperrors.ErrForbidden)
		return
	}

	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	portfolioID := c.Param("id")
	if !h.visible(portfolioID, viewer) {
		respondWithError(c, apperrors.ErrForbidden)
		return
	}

	account, err := h.container.AddAccount(models.Account{
		PortfolioID: portfolioID,
		Name:        req.Name,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"account": account})
}

// ListAccounts returns the accounts of a visible portfolio.
func (h *PortfolioHandler) ListAccounts(c *gin.Context) {
	viewer, err := getOwner(c, h.container)
	if err != nil {
		respondWithError(c, err)
		return
	}
	accounts, err := h.resolver().Accounts(scope.Portfolio(c.Param("id")), viewer)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if accounts == nil {
		accounts = []models.Account{}
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

func (h *PortfolioHandler) visible(portfolioID string, viewer *models.Owner) bool {
	for _, p := range h.resolver().VisiblePortfolios(viewer) {
		if p.ID == portfolioID {
			return true
		}
	}
	return false
}
