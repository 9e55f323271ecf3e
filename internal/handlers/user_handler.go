package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"society-service/internal/middleware"
	"society-service/internal/models"
	"society-service/internal/services"
)

// UserHandler handles profile and society directory requests
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// GetProfile returns the caller's profile
func (h *UserHandler) GetProfile(c *gin.Context) {
	user, err := h.userService.GetProfile(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Profile retrieved", user)
}

// UpdateProfile completes or edits the caller's profile
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	user, err := h.userService.UpdateProfile(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Profile updated", user)
}

// UpdateFCMToken refreshes the caller's push token
func (h *UserHandler) UpdateFCMToken(c *gin.Context) {
	var req models.UpdateFCMTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	if err := h.userService.UpdateFCMToken(c.Request.Context(), middleware.UserID(c), req.FCMToken); err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "FCM token updated", nil)
}

// UpdatePreferences replaces the caller's notification settings
func (h *UserHandler) UpdatePreferences(c *gin.Context) {
	var prefs models.Preferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	user, err := h.userService.UpdatePreferences(c.Request.Context(), middleware.UserID(c), prefs)
	if err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Preferences updated", user)
}

// BlockUser blocks a user in the admin's society
func (h *UserHandler) BlockUser(c *gin.Context) {
	targetID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.userService.SetBlocked(c.Request.Context(), middleware.UserID(c), targetID, true); err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "User blocked", nil)
}

// UnblockUser reinstates a blocked user
func (h *UserHandler) UnblockUser(c *gin.Context) {
	targetID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.userService.SetBlocked(c.Request.Context(), middleware.UserID(c), targetID, false); err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "User unblocked", nil)
}

// ListMembers lists the users of the caller's society
func (h *UserHandler) ListMembers(c *gin.Context) {
	societyID := middleware.SocietyID(c)
	if societyID == 0 {
		ErrorResponse(c, http.StatusBadRequest, "User has no society", nil)
		return
	}

	page, limit := pagination(c)
	resp, err := h.userService.ListMembers(c.Request.Context(), societyID, page, limit)
	if err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Members retrieved", resp)
}

// ListSocieties lists every registered society (public, used during
// onboarding)
func (h *UserHandler) ListSocieties(c *gin.Context) {
	societies, err := h.userService.ListSocieties(c.Request.Context())
	if err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Societies retrieved", societies)
}

// ListFlats lists the flats of a society (public, used during
// onboarding)
func (h *UserHandler) ListFlats(c *gin.Context) {
	societyID, ok := pathID(c, "id")
	if !ok {
		return
	}

	flats, err := h.userService.ListFlats(c.Request.Context(), societyID)
	if err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Flats retrieved", flats)
}
