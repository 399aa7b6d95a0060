package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "folio/internal/errors"
	"folio/internal/models"
	"folio/internal/scope"
	"folio/internal/state"
)

// GroupHandler handles combined-group requests. A group is a saved view
// over portfolios; it owns no transactions.
type GroupHandler struct {
	container *state.Container
}

// NewGroupHandler creates a new GroupHandler
func NewGroupHandler(container *state.Container) *GroupHandler {
	return &GroupHandler{container: container}
}

// CreateGroupRequest represents the group creation payload.
type CreateGroupRequest struct {
	Name            string   `json:"name" binding:"required,max=100"`
	PortfolioIDs    []string `json:"portfolio_ids" binding:"required,min=1"`
	AllowedOwnerIDs []string `json:"allowed_owner_ids"`
}

// List returns the groups the viewer can access.
func (h *GroupHandler) List(c *gin.Context) {
	viewer, err := getOwner(c, h.container)
	if err != nil {
		respondWithError(c, err)
		return
	}

	accessible := []models.CombinedGroup{}
	for _, g := range h.container.Groups() {
		if g.AccessibleBy(viewer) {
			accessible = append(accessible, g)
		}
	}
	c.JSON(http.StatusOK, gin.H{"groups": accessible})
}

// Create saves a new combined group over visible portfolios.
func (h *GroupHandler) Create(c *gin.Context) {
	viewer, err := getOwner(c, h.container)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if viewer.IsGuest() {
		respondWithError(c, apperrors.ErrForbidden)
		return
	}

	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
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
	for _, id := range req.PortfolioIDs {
		if !visible[id] {
			respondWithError(c, apperrors.ErrPortfolioNotFound)
			return
		}
	}

	group, err := h.container.AddGroup(models.CombinedGroup{
		Name:            req.Name,
		PortfolioIDs:    req.PortfolioIDs,
		CreatorOwnerID:  viewer.ID,
		AllowedOwnerIDs: req.AllowedOwnerIDs,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"group": group})
}

// Delete removes a group. Only its creator or the master may delete it.
func (h *GroupHandler) Delete(c *gin.Context) {
	viewer, err := getOwner(c, h.container)
	if err != nil {
		respondWithError(c, err)
		return
	}

	id := c.Param("id")
	var group *models.CombinedGroup
	for _, g := range h.container.Groups() {
		if g.ID == id {
			group = &g
			break
		}
	}
	if group == nil {
		respondWithError(c, apperrors.ErrGroupNotFound)
		return
	}
	if group.CreatorOwnerID != viewer.ID && !viewer.IsMaster() {
		respondWithError(c, apperrors.ErrForbidden)
		return
	}

	if err := h.container.DeleteGroup(id); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
