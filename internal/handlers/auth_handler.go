package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	apperrors "folio/internal/errors"
	"folio/internal/middleware"
	"folio/internal/models"
	"folio/internal/state"
)

// AuthHandler handles registration, login and profile requests.
type AuthHandler struct {
	container *state.Container
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(container *state.Container) *AuthHandler {
	return &AuthHandler{container: container}
}

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=8,max=128"`
	Name     string `json:"name" binding:"max=100"`
	Role     string `json:"role" binding:"omitempty,owner_role"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Register creates a new owner. The first registered owner becomes the
// master; later registrations default to the plain owner role.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}

	role := models.OwnerRole(req.Role)
	if role == "" {
		role = models.RoleOwner
	}
	if len(h.container.Owners()) == 0 {
		role = models.RoleMaster
	}

	owner, err := h.container.AddOwner(models.Owner{
		Email:    req.Email,
		Password: string(hash),
		Name:     req.Name,
		Role:     role,
		IsActive: true,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	token, err := middleware.GenerateAccessToken(owner)
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"token": token,
		"owner": ownerBody(owner),
	})
}

// Login authenticates an owner and returns an access token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	owner, err := h.container.OwnerByEmail(req.Email)
	if err != nil {
		respondWithError(c, apperrors.ErrInvalidCredentials)
		return
	}
	if !owner.IsActive {
		respondWithError(c, apperrors.ErrInvalidCredentials)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(owner.Password), []byte(req.Password)) != nil {
		respondWithError(c, apperrors.ErrInvalidCredentials)
		return
	}

	token, err := middleware.GenerateAccessToken(owner)
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrInternalServer, err))
		return
	}

	h.container.TouchLogin(owner.ID)
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"owner": ownerBody(owner),
	})
}

// GetProfile returns the authenticated owner's profile.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	owner, err := getOwner(c, h.container)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"owner": ownerBody(owner)})
}

func ownerBody(owner *models.Owner) gin.H {
	return gin.H{
		"id":    owner.ID,
		"email": owner.Email,
		"name":  owner.Name,
		"role":  owner.Role,
	}
}
