package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"coachdesk/internal/domain"
)

// Fail maps business errors onto HTTP statuses so the presentation layer
// can show a specific message without seeing internals.
func Fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidChoice):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrTopicNotActive),
		errors.Is(err, domain.ErrAlreadySettled),
		errors.Is(err, domain.ErrAlreadyParticipated):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientBalance):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		Error(c, status, "internal error")
		return
	}
	Error(c, status, err.Error())
}
