package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"society-service/internal/middleware"
	"society-service/internal/models"
	"society-service/internal/services"
)

// AuthHandler handles authentication HTTP requests
type AuthHandler struct {
	authService *services.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// SendOTP sends a login code to a phone number
func (h *AuthHandler) SendOTP(c *gin.Context) {
	var req models.SendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	if err := h.authService.SendOTP(c.Request.Context(), req.PhoneNumber); err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "OTP sent successfully", nil)
}

// VerifyOTP verifies a login code and opens a session
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req models.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	resp, err := h.authService.VerifyOTP(c.Request.Context(), &req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Login successful", resp)
}

// RefreshToken rotates a session
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req models.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	resp, err := h.authService.RefreshTokens(c.Request.Context(), req.RefreshToken)
	if err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Token refreshed", resp)
}

// Logout ends the current session, or all sessions with allDevices
func (h *AuthHandler) Logout(c *gin.Context) {
	var req models.LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	if err := h.authService.Logout(c.Request.Context(), middleware.UserID(c), req.RefreshToken, req.AllDevices); err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Logged out", nil)
}

// ListSessions lists the caller's active sessions
func (h *AuthHandler) ListSessions(c *gin.Context) {
	current := c.Query("refreshToken")
	sessions, err := h.authService.ListSessions(c.Request.Context(), middleware.UserID(c), current)
	if err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Sessions retrieved", sessions)
}

// RevokeSession ends one session by id
func (h *AuthHandler) RevokeSession(c *gin.Context) {
	sessionID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.authService.RevokeSession(c.Request.Context(), middleware.UserID(c), sessionID); err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Session revoked", nil)
}
