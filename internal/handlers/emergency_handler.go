package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"society-service/internal/middleware"
	"society-service/internal/models"
	"society-service/internal/services"
)

// EmergencyHandler handles emergency alert HTTP requests
type EmergencyHandler struct {
	emergencyService *services.EmergencyService
}

// NewEmergencyHandler creates a new emergency handler
func NewEmergencyHandler(emergencyService *services.EmergencyService) *EmergencyHandler {
	return &EmergencyHandler{emergencyService: emergencyService}
}

// Raise creates an alert and fans it out
func (h *EmergencyHandler) Raise(c *gin.Context) {
	var req models.CreateEmergencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	emergency, err := h.emergencyService.Raise(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, "Emergency alert raised", emergency)
}

// Get returns one alert
func (h *EmergencyHandler) Get(c *gin.Context) {
	emergencyID, ok := pathID(c, "id")
	if !ok {
		return
	}

	emergency, err := h.emergencyService.Get(c.Request.Context(), emergencyID)
	if err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Alert retrieved", emergency)
}

// List lists the society's alert history. Supports ?status=, ?userId=
// and ?fromDate=/?toDate= (YYYY-MM-DD) filters.
func (h *EmergencyHandler) List(c *gin.Context) {
	societyID := middleware.SocietyID(c)
	if societyID == 0 {
		ErrorResponse(c, http.StatusBadRequest, "User has no society", nil)
		return
	}

	filter := models.EmergencyFilter{
		SocietyID: societyID,
		Status:    c.Query("status"),
	}
	if raw := c.Query("userId"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			ErrorResponse(c, http.StatusBadRequest, "Invalid userId", err)
			return
		}
		filter.UserID = uint(id)
	}
	if raw := c.Query("fromDate"); raw != "" {
		from, err := time.ParseInLocation("2006-01-02", raw, time.Local)
		if err != nil {
			ErrorResponse(c, http.StatusBadRequest, "Invalid fromDate, expected YYYY-MM-DD", err)
			return
		}
		filter.From = &from
	}
	if raw := c.Query("toDate"); raw != "" {
		to, err := time.ParseInLocation("2006-01-02", raw, time.Local)
		if err != nil {
			ErrorResponse(c, http.StatusBadRequest, "Invalid toDate, expected YYYY-MM-DD", err)
			return
		}
		// Inclusive of the whole end day
		end := to.AddDate(0, 0, 1).Add(-time.Second)
		filter.To = &end
	}

	page, limit := pagination(c)
	resp, err := h.emergencyService.List(c.Request.Context(), filter, page, limit)
	if err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Alerts retrieved", resp)
}

// Resolve closes an active alert
func (h *EmergencyHandler) Resolve(c *gin.Context) {
	emergencyID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req models.ResolveEmergencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	emergency, err := h.emergencyService.Resolve(c.Request.Context(), middleware.UserID(c), emergencyID, &req)
	if err != nil {
		ServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Alert resolved", emergency)
}
