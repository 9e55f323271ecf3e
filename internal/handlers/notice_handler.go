package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"society-service/internal/middleware"
	"society-service/internal/models"
	"society-service/internal/services"
)

// NoticeHandler handles notice HTTP requests
type NoticeHandler struct {
	noticeService *services.NoticeService
	userService   *services.UserService
}

// NewNoticeHandler creates a new notice handler
func NewNoticeHandler(noticeService *services.NoticeService, userService *services.UserService) *NoticeHandler {
	return &NoticeHandler{noticeService: noticeService, userService: userService}
}

// Create publishes a notice (admin)
func (h *NoticeHandler) Create(c *gin.Context) {
	societyID := middleware.SocietyID(c)
	if societyID == 0 {
		ErrorResponse(c, http.StatusBadRequest, "User has no society", nil)
		return
	}

	var req models.CreateNoticeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	notice, err := h.noticeService.Create(c.Request.Context(), middleware.UserID(c), societyID, &req)
	if err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, "Notice created", notice)
}

// List lists the notices visible to the caller
func (h *NoticeHandler) List(c *gin.Context) {
	user, err := h.userService.GetProfile(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}

	page, limit := pagination(c)
	unreadOnly := c.Query("unreadOnly") == "true"
	resp, err := h.noticeService.List(c.Request.Context(), user, c.Query("type"), unreadOnly, page, limit)
	if err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Notices retrieved", resp)
}

// Get returns one notice
func (h *NoticeHandler) Get(c *gin.Context) {
	noticeID, ok := pathID(c, "id")
	if !ok {
		return
	}

	notice, err := h.noticeService.Get(c.Request.Context(), noticeID)
	if err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Notice retrieved", notice)
}

// Delete retires a notice (author or admin)
func (h *NoticeHandler) Delete(c *gin.Context) {
	noticeID, ok := pathID(c, "id")
	if !ok {
		return
	}

	user, err := h.userService.GetProfile(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}

	if err := h.noticeService.Delete(c.Request.Context(), user, noticeID); err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Notice deleted", nil)
}

// MarkRead records that the caller read a notice
func (h *NoticeHandler) MarkRead(c *gin.Context) {
	noticeID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.noticeService.MarkRead(c.Request.Context(), middleware.UserID(c), noticeID); err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Notice marked read", nil)
}

// SetMuted mutes or unmutes a notice for the caller
func (h *NoticeHandler) SetMuted(c *gin.Context) {
	noticeID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req models.UpdateReadStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	if err := h.noticeService.SetMuted(c.Request.Context(), middleware.UserID(c), noticeID, req.IsMuted); err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Notice preferences updated", nil)
}

// UnreadCount counts the caller's unread notices
func (h *NoticeHandler) UnreadCount(c *gin.Context) {
	user, err := h.userService.GetProfile(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}

	count, err := h.noticeService.UnreadCount(c.Request.Context(), user)
	if err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Unread count retrieved", gin.H{"count": count})
}
