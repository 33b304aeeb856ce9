package api

import (
	"alcyxob/meal-planner/internal/service"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// respondServiceError maps service errors to HTTP codes. Anything unknown is
// logged and reported as fallback with a 500.
func respondServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, service.ErrInvalidUpdate):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrConflict), errors.Is(err, service.ErrPlanModified):
		abortWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrJobNotFound),
		errors.Is(err, service.ErrPlanNotFound),
		errors.Is(err, service.ErrSlotNotFound),
		errors.Is(err, service.ErrTranscriptUnavailable):
		abortWithError(c, http.StatusNotFound, err.Error())
	default:
		log.Printf("ERROR: %s %s: %v", c.Request.Method, c.FullPath(), err)
		abortWithError(c, http.StatusInternalServerError, fallback)
	}
}
