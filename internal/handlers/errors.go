package handlers

import (
	"errors"
	"net/http"

	"github.com/chingu-voyage4/Bears-Team-0/internal/models"
	"github.com/chingu-voyage4/Bears-Team-0/internal/repository"
	"github.com/chingu-voyage4/Bears-Team-0/internal/service"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// statusFor maps a repository or service error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrInvalidIdentifier), errors.Is(err, repository.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, repository.ErrForbiddenField):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, repository.ErrConnection):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}

	var fe *models.FieldError
	if errors.As(err, &fe) {
		body.Field = fe.Field
	}

	switch {
	case status >= http.StatusInternalServerError:
		log.WithFields(log.Fields{"path": c.FullPath(), "status": status}).WithError(err).Error("Request failed")
		if status == http.StatusInternalServerError {
			body.Error = "internal server error"
		}
	default:
		log.WithFields(log.Fields{"path": c.FullPath(), "status": status}).Debug(err.Error())
	}

	c.AbortWithStatusJSON(status, body)
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"data": data})
}
