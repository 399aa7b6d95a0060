package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "folio/internal/errors"
	"folio/internal/pagination"
	"folio/internal/scope"
	"folio/internal/state"
)

// SnapshotHandler serves the allocation time series recorded at plan
// completions.
type SnapshotHandler struct {
	container *state.Container
}

// NewSnapshotHandler creates a new SnapshotHandler
func NewSnapshotHandler(container *state.Container) *SnapshotHandler {
	return &SnapshotHandler{container: container}
}

// List returns the allocation snapshots of a scope, oldest first, paginated.
func (h *SnapshotHandler) List(c *gin.Context) {
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

	// Resolving the scope enforces the visibility rules before any
	// snapshot data leaves the store.
	r := scope.NewResolver(
		h.container.Portfolios(),
		h.container.Accounts(),
		h.container.Groups(),
		h.container.Transactions(),
	)
	if _, err := r.Accounts(s, viewer); err != nil {
		respondWithError(c, err)
		return
	}

	snapshots := h.container.SnapshotsFor(s.Key())
	c.JSON(http.StatusOK, pagination.Page(snapshots, page))
}
