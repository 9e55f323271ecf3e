package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"society-service/internal/middleware"
	"society-service/internal/models"
	"society-service/internal/services"
)

// VisitorHandler handles visitor pass HTTP requests
type VisitorHandler struct {
	visitorService *services.VisitorService
}

// NewVisitorHandler creates a new visitor handler
func NewVisitorHandler(visitorService *services.VisitorService) *VisitorHandler {
	return &VisitorHandler{visitorService: visitorService}
}

// CreatePass issues a pass for an expected visitor (resident)
func (h *VisitorHandler) CreatePass(c *gin.Context) {
	var req models.CreatePassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	pass, err := h.visitorService.CreatePass(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, "Pass created", pass)
}

// ListPasses lists the caller's passes
func (h *VisitorHandler) ListPasses(c *gin.Context) {
	page, limit := pagination(c)
	resp, err := h.visitorService.ListPasses(c.Request.Context(), middleware.UserID(c), c.Query("status"), page, limit)
	if err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Passes retrieved", resp)
}

// GetPass returns one pass, scoped to its owner and same-society staff
func (h *VisitorHandler) GetPass(c *gin.Context) {
	passID, ok := pathID(c, "id")
	if !ok {
		return
	}

	pass, err := h.visitorService.GetPass(c.Request.Context(), middleware.UserID(c), passID)
	if err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Pass retrieved", pass)
}

// CancelPass withdraws one of the caller's passes
func (h *VisitorHandler) CancelPass(c *gin.Context) {
	passID, ok := pathID(c, "id")
	if !ok {
		return
	}

	pass, err := h.visitorService.Cancel(c.Request.Context(), middleware.UserID(c), passID)
	if err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Pass cancelled", pass)
}

// VerifyOTP resolves a gate code for the guard
func (h *VisitorHandler) VerifyOTP(c *gin.Context) {
	var req models.VerifyPassOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	result, err := h.visitorService.VerifyOTP(c.Request.Context(), middleware.UserID(c), req.OTP)
	if err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Pass verified", result)
}

// RecordMovement stamps an entry or exit on a pass (guard)
func (h *VisitorHandler) RecordMovement(c *gin.Context) {
	passID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req models.EntryExitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	pass, err := h.visitorService.RecordMovement(c.Request.Context(), middleware.UserID(c), passID, &req)
	if err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Movement recorded", pass)
}

// RequestApproval registers a walk-in visitor for resident approval
// (guard)
func (h *VisitorHandler) RequestApproval(c *gin.Context) {
	var req models.RequestApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	pass, err := h.visitorService.RequestApproval(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, "Approval requested", pass)
}

// AnswerApproval approves or rejects a pending request (resident)
func (h *VisitorHandler) AnswerApproval(c *gin.Context) {
	passID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req models.ApprovePassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	pass, err := h.visitorService.Answer(c.Request.Context(), middleware.UserID(c), passID, &req)
	if err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Pass updated", pass)
}

// ListActive lists visitors currently inside the society (guard/admin)
func (h *VisitorHandler) ListActive(c *gin.Context) {
	societyID := middleware.SocietyID(c)
	if societyID == 0 {
		ErrorResponse(c, http.StatusBadRequest, "User has no society", nil)
		return
	}

	passes, err := h.visitorService.ListActive(c.Request.Context(), societyID)
	if err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Active visitors retrieved", passes)
}

// ListExpected lists the visitors the gate should expect on a date.
// Defaults to now; accepts ?date=YYYY-MM-DD.
func (h *VisitorHandler) ListExpected(c *gin.Context) {
	societyID := middleware.SocietyID(c)
	if societyID == 0 {
		ErrorResponse(c, http.StatusBadRequest, "User has no society", nil)
		return
	}

	at := time.Now()
	if raw := c.Query("date"); raw != "" {
		day, err := time.ParseInLocation("2006-01-02", raw, time.Local)
		if err != nil {
			ErrorResponse(c, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD", err)
			return
		}
		// Midday keeps the whole day inside same-day validity windows
		at = day.Add(12 * time.Hour)
	}

	passes, err := h.visitorService.ListExpected(c.Request.Context(), societyID, at)
	if err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Expected visitors retrieved", passes)
}
