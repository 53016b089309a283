package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"scicat/internal/models"

	"github.com/gin-gonic/gin"
)

var nowUTC = func() time.Time { return time.Now().UTC() }

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// writeError maps domain errors onto HTTP status codes.
func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "internal_error"

	switch {
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrJobNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, models.ErrInvalidArgument):
		status, code = http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, models.ErrDuplicateResource):
		status, code = http.StatusConflict, "duplicate_resource"
	case errors.Is(err, models.ErrInvalidTransition):
		status, code = http.StatusConflict, "invalid_transition"
	case errors.Is(err, models.ErrAlreadySubscribed):
		status, code = http.StatusConflict, "already_subscribed"
	case errors.Is(err, models.ErrSlugTaken):
		status, code = http.StatusConflict, "slug_taken"
	case errors.Is(err, models.ErrJobFinished):
		status, code = http.StatusConflict, "job_finished"
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		message = "internal server error"
	}

	c.JSON(status, gin.H{
		"error":   code,
		"message": message,
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "invalid_argument",
		"message": message,
	})
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// pagination reads ?page= and ?limit=, falling back to defaults on bad input.
func pagination(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageLimit)))
	if err != nil || limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}
