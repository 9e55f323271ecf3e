package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"society-service/internal/apperrors"
	"society-service/internal/models"
)

// SuccessResponse sends a success response
func SuccessResponse(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, models.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse sends an error response
func ErrorResponse(c *gin.Context, status int, message string, err error) {
	resp := models.APIResponse{
		Success: false,
		Message: message,
	}
	if err != nil {
		resp.Error = err.Error()
	}
	c.JSON(status, resp)
}

// ServiceError maps a service-layer error onto the right status code,
// hiding internal causes from the client.
func ServiceError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	ErrorResponse(c, status, apperrors.PublicMessage(err), nil)
}

// pathID parses a numeric path parameter
func pathID(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		ErrorResponse(c, http.StatusBadRequest, "Invalid "+name+" parameter", nil)
		return 0, false
	}
	return uint(id), true
}

// pagination reads page and limit query parameters
func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	return page, limit
}
