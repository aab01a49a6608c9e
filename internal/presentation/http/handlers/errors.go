// Package handlers provides HTTP request handlers for the presentation layer.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lingoreader/landing-go/internal/application/services"
	"github.com/lingoreader/landing-go/internal/domain/visitor"
	"github.com/lingoreader/landing-go/internal/domain/widget"
	"github.com/lingoreader/landing-go/internal/infrastructure/backend"
	"github.com/lingoreader/landing-go/internal/presentation/http/middleware"
)

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, visitor.ErrUnsupportedLanguage),
		errors.Is(err, visitor.ErrUnsupportedLevel),
		errors.Is(err, visitor.ErrEmptyToken),
		errors.Is(err, services.ErrInvalidEmail):
		return http.StatusBadRequest
	case errors.Is(err, visitor.ErrValidationGap):
		return http.StatusUnprocessableEntity
	case errors.Is(err, visitor.ErrTokenConflict),
		errors.Is(err, widget.ErrSelectionLocked),
		errors.Is(err, services.ErrCheckoutInProgress):
		return http.StatusConflict
	case errors.Is(err, visitor.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrDemoRejected):
		return http.StatusBadGateway
	}
	var reqErr *backend.RequestError
	if errors.As(err, &reqErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	c.JSON(status, gin.H{"error": msg})
}

// requireSession returns the session resolved by the session middleware,
// answering 401 when there is none.
func requireSession(c *gin.Context) (string, bool) {
	sid, ok := middleware.GetSessionID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "visitor session required"})
	}
	return sid, ok
}
