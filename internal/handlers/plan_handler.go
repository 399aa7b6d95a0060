package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "folio/internal/errors"
	"folio/internal/models"
	"folio/internal/planner"
	"folio/internal/scope"
	"folio/internal/state"
	"folio/internal/tracker"
)

// PlanHandler handles the sell-plan wizard and the execution tracker.
type PlanHandler struct {
	container *state.Container
	planner   *planner.Service
	tracker   *tracker.Tracker
}

// NewPlanHandler creates a new PlanHandler
func NewPlanHandler(container *state.Container, plannerSvc *planner.Service, trackerSvc *tracker.Tracker) *PlanHandler {
	return &PlanHandler{container: container, planner: plannerSvc, tracker: trackerSvc}
}

// requireEditor rejects guests; the wizard and the tracker both mutate state.
func (h *PlanHandler) requireEditor(c *gin.Context) (*models.Owner, bool) {
	viewer, err := getOwner(c, h.container)
	if err != nil {
		respondWithError(c, err)
		return nil, false
	}
	if viewer.IsGuest() {
		respondWithError(c, apperrors.ErrForbidden)
		return nil, false
	}
	return viewer, true
}

// List returns the active plans on portfolios visible to the viewer.
func (h *PlanHandler) List(c *gin.Context) {
	viewer, err := getOwner(c, h.container)
	if err != nil {
		respondWithError(c, err)
		return
	}

	r := scope.NewResolver(
		h.container.Portfolios(),
		h.container.Accounts(),
		h.container.Groups(),
		h.container.Transactions(),
	)
	visible := make(map[string]bool)
	for _, p := range r.VisiblePortfolios(viewer) {
		visible[p.ID] = true
	}

	plans := []models.SellPlan{}
	for _, plan := range h.container.Plans() {
		if visible[plan.PortfolioID] {
			plans = append(plans, plan)
		}
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

// --- wizard ---

// StartDraftRequest opens a draft on a portfolio.
type StartDraftRequest struct {
	PortfolioID string `json:"portfolio_id" binding:"required"`
}

// StartDraft opens a new wizard draft.
func (h *PlanHandler) StartDraft(c *gin.Context) {
	viewer, ok := h.requireEditor(c)
	if !ok {
		return
	}
	var req StartDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	draft, err := h.planner.Start(req.PortfolioID, viewer)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"draft": draft})
}

// GetDraft returns a draft's current state.
func (h *PlanHandler) GetDraft(c *gin.Context) {
	if _, ok := h.requireEditor(c); !ok {
		return
	}
	draft, err := h.planner.Draft(c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"draft": draft})
}

// DiscardDraft drops a draft without persisting anything.
func (h *PlanHandler) DiscardDraft(c *gin.Context) {
	if _, ok := h.requireEditor(c); !ok {
		return
	}
	if err := h.planner.Discard(c.Param("id")); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// ChooseSymbolRequest picks the symbol to liquidate.
type ChooseSymbolRequest struct {
	Symbol string `json:"symbol" binding:"required,max=20"`
}

// ChooseSymbol sets the draft's symbol and resolves its price.
func (h *PlanHandler) ChooseSymbol(c *gin.Context) {
	viewer, ok := h.requireEditor(c)
	if !ok {
		return
	}
	var req ChooseSymbolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	draft, err := h.planner.ChooseSymbol(c.Request.Context(), c.Param("id"), req.Symbol, viewer)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"draft": draft})
}

// SetManualPriceRequest supplies a price when no provider could.
type SetManualPriceRequest struct {
	Price float64 `json:"price" binding:"required,gt=0"`
}

// SetManualPrice unblocks the percentage stage with a user-supplied price.
func (h *PlanHandler) SetManualPrice(c *gin.Context) {
	if _, ok := h.requireEditor(c); !ok {
		return
	}
	var req SetManualPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	draft, err := h.planner.SetManualPrice(c.Param("id"), req.Price)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"draft": draft})
}

// SetPercentageRequest sets the share of portfolio value to liquidate.
type SetPercentageRequest struct {
	Percentage float64 `json:"percentage" binding:"required,gt=0,lte=100"`
}

// SetPercentage applies a manually entered percentage.
func (h *PlanHandler) SetPercentage(c *gin.Context) {
	viewer, ok := h.requireEditor(c)
	if !ok {
		return
	}
	var req SetPercentageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	draft, err := h.planner.SetPercentage(c.Request.Context(), c.Param("id"), req.Percentage, viewer)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"draft": draft})
}

// UseShortcutRequest applies a preset fraction of the position.
type UseShortcutRequest struct {
	Shortcut string `json:"shortcut" binding:"required,plan_shortcut"`
}

// UseShortcut applies a shortcut percentage.
func (h *PlanHandler) UseShortcut(c *gin.Context) {
	viewer, ok := h.requireEditor(c)
	if !ok {
		return
	}
	var req UseShortcutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	draft, err := h.planner.UseShortcut(c.Request.Context(), c.Param("id"), planner.Shortcut(req.Shortcut), viewer)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"draft": draft})
}

// SelectAccountsRequest picks the participating accounts.
type SelectAccountsRequest struct {
	AccountIDs []string `json:"account_ids" binding:"required,min=1"`
}

// SelectAccounts splits the target shares across the chosen accounts.
func (h *PlanHandler) SelectAccounts(c *gin.Context) {
	viewer, ok := h.requireEditor(c)
	if !ok {
		return
	}
	var req SelectAccountsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	draft, err := h.planner.SelectAccounts(c.Param("id"), req.AccountIDs, viewer)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"draft": draft})
}

// BuyTargetBody is one reinvestment symbol in a request.
type BuyTargetBody struct {
	Symbol    string `json:"symbol" binding:"required,max=20"`
	AssetType string `json:"asset_type" binding:"required,asset_type"`
}

// SetBuySymbolsRequest lists one account's reinvestment symbols.
type SetBuySymbolsRequest struct {
	AccountID string          `json:"account_id" binding:"required"`
	Targets   []BuyTargetBody `json:"targets"`
}

// SetBuySymbols sets one account's reinvestment symbols; zero is allowed.
func (h *PlanHandler) SetBuySymbols(c *gin.Context) {
	if _, ok := h.requireEditor(c); !ok {
		return
	}
	var req SetBuySymbolsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	targets := make([]planner.BuyTarget, len(req.Targets))
	for i, t := range req.Targets {
		targets[i] = planner.BuyTarget{Symbol: t.Symbol, AssetType: models.AssetType(t.AssetType)}
	}
	draft, err := h.planner.SetBuySymbols(c.Param("id"), req.AccountID, targets)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"draft": draft})
}

// SetBuyPercentagesRequest assigns proceeds percentages per buy symbol.
type SetBuyPercentagesRequest struct {
	AccountID   string             `json:"account_id" binding:"required"`
	Percentages map[string]float64 `json:"percentages" binding:"required"`
}

// SetBuyPercentages assigns one account's proceeds split.
func (h *PlanHandler) SetBuyPercentages(c *gin.Context) {
	if _, ok := h.requireEditor(c); !ok {
		return
	}
	var req SetBuyPercentagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	draft, err := h.planner.SetBuyPercentages(c.Param("id"), req.AccountID, req.Percentages)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"draft": draft})
}

// ConfirmDraft validates the draft and persists it as a sell plan.
func (h *PlanHandler) ConfirmDraft(c *gin.Context) {
	viewer, ok := h.requireEditor(c)
	if !ok {
		return
	}
	plan, err := h.planner.Confirm(c.Param("id"), viewer)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"plan": plan})
}

// --- tracker ---

// Progress reports which legs of a plan are complete.
func (h *PlanHandler) Progress(c *gin.Context) {
	viewer, err := getOwner(c, h.container)
	if err != nil {
		respondWithError(c, err)
		return
	}
	progress, err := h.tracker.Progress(c.Param("id"), viewer)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"progress": progress})
}

// MarkSellCompleted records one account's sell leg as executed.
func (h *PlanHandler) MarkSellCompleted(c *gin.Context) {
	viewer, ok := h.requireEditor(c)
	if !ok {
		return
	}
	err := h.tracker.MarkSellCompleted(c.Request.Context(), c.Param("id"), c.Param("accountId"), viewer)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"completed": true})
}

// MarkBuyCompletedRequest carries the shares actually bought.
type MarkBuyCompletedRequest struct {
	Shares float64 `json:"shares" binding:"required,gt=0"`
}

// MarkBuyCompleted records one account's buy leg as executed.
func (h *PlanHandler) MarkBuyCompleted(c *gin.Context) {
	viewer, ok := h.requireEditor(c)
	if !ok {
		return
	}
	var req MarkBuyCompletedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	err := h.tracker.MarkBuyCompleted(c.Request.Context(),
		c.Param("id"), c.Param("accountId"), c.Param("symbol"), req.Shares, viewer)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"completed": true})
}

// Delete discards a plan before completion.
func (h *PlanHandler) Delete(c *gin.Context) {
	viewer, ok := h.requireEditor(c)
	if !ok {
		return
	}
	if err := h.tracker.DeletePlan(c.Param("id"), viewer); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
