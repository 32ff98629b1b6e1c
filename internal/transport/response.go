package transport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/himanshumudigonda/musclemeter/internal/entity"
	"github.com/sirupsen/logrus"
)

type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func respondOK(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, SuccessResponse{Success: true, Message: message, Data: data})
}

func respondList(c *gin.Context, data interface{}, count int) {
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: data, Meta: gin.H{"count": count}})
}

func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Success: false, Error: message})
}

// respondError maps domain errors to HTTP statuses. Unknown errors are logged
// and reported as 500 without details.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logrus.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		}).Errorf("Request failed: %v", err)
		message = "internal server error"
	}
	if status == http.StatusConflict {
		message = entity.ErrInvalidTransition.Error()
	}
	abortWithError(c, status, message)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrVenueNotFound),
		errors.Is(err, entity.ErrPlanNotFound),
		errors.Is(err, entity.ErrBookingNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, entity.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, entity.ErrVenueInactive):
		return http.StatusUnprocessableEntity
	case errors.Is(err, entity.ErrInvalidPlan),
		errors.Is(err, entity.ErrInvalidCapacity),
		errors.Is(err, entity.ErrMalformedReference),
		errors.Is(err, entity.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
