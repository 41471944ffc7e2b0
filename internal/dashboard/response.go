package dashboard

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/liftcare/field-bot/internal/apperr"
)

// ErrorResponse is the error body of every failed call.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// handleError maps domain errors to HTTP responses and reports whether
// there was one.
func handleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	var domainErr *apperr.Error
	if errors.As(err, &domainErr) {
		c.JSON(domainErr.HTTPStatus(), ErrorResponse{Error: domainErr.Message})
		return true
	}
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	return true
}

func ok(c *gin.Context, payload gin.H) {
	if payload == nil {
		payload = gin.H{}
	}
	payload["success"] = true
	c.JSON(http.StatusOK, payload)
}
