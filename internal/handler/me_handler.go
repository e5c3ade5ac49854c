package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/classbook-backend/internal/middleware"
	"github.com/stemsi/classbook-backend/internal/model"
	"github.com/stemsi/classbook-backend/internal/response"
	"github.com/stemsi/classbook-backend/internal/service"
	"github.com/stemsi/classbook-backend/internal/validator"
)

// MeHandler serves the caller's own profile.
type MeHandler struct {
	userService *service.UserService
	log         zerolog.Logger
}

// NewMeHandler creates a new MeHandler.
func NewMeHandler(userService *service.UserService, log zerolog.Logger) *MeHandler {
	return &MeHandler{
		userService: userService,
		log:         log.With().Str("component", "me_handler").Logger(),
	}
}

// GetProfile godoc
// GET /api/v1/me
// Returns the caller's profile, creating it from the token claims on first
// sight.
func (h *MeHandler) GetProfile(c *gin.Context) {
	ctx := c.Request.Context()
	claims := middleware.GetClaims(c)

	user, err := h.userService.GetProfile(ctx, claims.UserID())
	if errors.Is(err, service.ErrNotFound) {
		user, err = h.userService.EnsureProfile(ctx, claims.UserID(), claims.Name, claims.Email)
	}
	if err != nil {
		failService(c, h.log, err, response.ErrProfileNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": user})
}

// UpdateProfile godoc
// PUT /api/v1/me
// Saves the caller's display name and email.
func (h *MeHandler) UpdateProfile(c *gin.Context) {
	var req model.UpdateProfileRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	user, err := h.userService.EnsureProfile(c.Request.Context(), middleware.UserID(c), req.DisplayName, req.Email)
	if err != nil {
		failService(c, h.log, err, response.ErrProfileNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": user})
}
