package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"society-service/internal/middleware"
	"society-service/internal/models"
	"society-service/internal/services"
)

// BillingHandler handles maintenance billing HTTP requests
type BillingHandler struct {
	billingService *services.BillingService
	userService    *services.UserService
}

// NewBillingHandler creates a new billing handler
func NewBillingHandler(billingService *services.BillingService, userService *services.UserService) *BillingHandler {
	return &BillingHandler{billingService: billingService, userService: userService}
}

// Create raises a bill for a flat (admin)
func (h *BillingHandler) Create(c *gin.Context) {
	var req models.CreateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	bill, err := h.billingService.CreateBill(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, "Bill created", bill)
}

// ListMine lists the caller's flat bills (resident)
func (h *BillingHandler) ListMine(c *gin.Context) {
	user, err := h.userService.GetProfile(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	if user.FlatID == nil {
		ErrorResponse(c, http.StatusBadRequest, "User has no flat", nil)
		return
	}

	page, limit := pagination(c)
	resp, err := h.billingService.ListByFlat(c.Request.Context(), *user.FlatID, c.Query("status"), page, limit)
	if err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Bills retrieved", resp)
}

// ListSociety lists all bills in the caller's society (admin)
func (h *BillingHandler) ListSociety(c *gin.Context) {
	societyID := middleware.SocietyID(c)
	if societyID == 0 {
		ErrorResponse(c, http.StatusBadRequest, "User has no society", nil)
		return
	}

	page, limit := pagination(c)
	resp, err := h.billingService.ListBySociety(c.Request.Context(), societyID, c.Query("status"), page, limit)
	if err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Bills retrieved", resp)
}

// Get returns one bill with its payments
func (h *BillingHandler) Get(c *gin.Context) {
	billID, ok := pathID(c, "id")
	if !ok {
		return
	}

	bill, err := h.billingService.Get(c.Request.Context(), billID)
	if err != nil {
		ServiceError(c, err)
		return
	}
	if !h.canSeeBill(c, bill) {
		ErrorResponse(c, http.StatusForbidden, "Bill belongs to another flat", nil)
		return
	}

	SuccessResponse(c, http.StatusOK, "Bill retrieved", bill)
}

// Summary aggregates the caller's flat bills (resident)
func (h *BillingHandler) Summary(c *gin.Context) {
	user, err := h.userService.GetProfile(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		ServiceError(c, err)
		return
	}
	if user.FlatID == nil {
		ErrorResponse(c, http.StatusBadRequest, "User has no flat", nil)
		return
	}

	summary, err := h.billingService.Summary(c.Request.Context(), *user.FlatID)
	if err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Summary retrieved", summary)
}

// RecordPayment applies a payment to a bill
func (h *BillingHandler) RecordPayment(c *gin.Context) {
	billID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req models.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	bill, err := h.billingService.Get(c.Request.Context(), billID)
	if err != nil {
		ServiceError(c, err)
		return
	}
	if !h.canSeeBill(c, bill) {
		ErrorResponse(c, http.StatusForbidden, "Bill belongs to another flat", nil)
		return
	}

	bill, err = h.billingService.RecordPayment(c.Request.Context(), middleware.UserID(c), billID, &req)
	if err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, "Payment recorded", bill)
}

// ListPayments lists the payments recorded against a bill
func (h *BillingHandler) ListPayments(c *gin.Context) {
	billID, ok := pathID(c, "id")
	if !ok {
		return
	}

	bill, err := h.billingService.Get(c.Request.Context(), billID)
	if err != nil {
		ServiceError(c, err)
		return
	}
	if !h.canSeeBill(c, bill) {
		ErrorResponse(c, http.StatusForbidden, "Bill belongs to another flat", nil)
		return
	}

	payments, err := h.billingService.ListPayments(c.Request.Context(), billID)
	if err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Payments retrieved", payments)
}

// canSeeBill scopes bill access: admins see their society, residents
// their own flat.
func (h *BillingHandler) canSeeBill(c *gin.Context, bill *models.MaintenanceBill) bool {
	role := c.GetString(middleware.ContextUserRole)
	if role == models.RoleAdmin {
		return middleware.SocietyID(c) == bill.SocietyID
	}

	user, err := h.userService.GetProfile(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		return false
	}
	return user.FlatID != nil && *user.FlatID == bill.FlatID
}
