package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"carillon/internal/api/middleware"
	"carillon/internal/core"
)

// currentUser returns the authenticated username, or "".
func currentUser(c *gin.Context) string {
	return c.GetString(middleware.UserKey)
}

// fail maps domain sentinel errors to HTTP status codes and writes the
// standard error payload.
func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "INTERNAL_ERROR"

	switch {
	case errors.Is(err, core.ErrDayTypeNotFound),
		errors.Is(err, core.ErrUserNotFound),
		errors.Is(err, core.ErrRoleNotFound),
		errors.Is(err, core.ErrExceptionNotFound),
		errors.Is(err, core.ErrSoundNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, core.ErrNameExists),
		errors.Is(err, core.ErrDayTypeInUse):
		status, code = http.StatusConflict, "CONFLICT"
	case errors.Is(err, core.ErrInvalidPeriod),
		errors.Is(err, core.ErrDuplicatePeriod),
		errors.Is(err, core.ErrInvalidClock),
		errors.Is(err, core.ErrInvalidException),
		errors.Is(err, core.ErrInvalidDate):
		status, code = http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, core.ErrAlertNotActive):
		status, code = http.StatusBadRequest, "NO_ACTIVE_ALERT"
	}

	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "code": "VALIDATION_ERROR"})
}
