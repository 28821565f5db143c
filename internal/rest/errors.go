package rest

import (
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/walletwise/walletwise/internal/apperr"
	"github.com/walletwise/walletwise/pkg/user"
)

// StatusFor maps an operation error onto an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, user.ErrNoUser):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err with the status StatusFor picks. Internal errors are logged.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		log.Errorf("request failed: %v", err)
	}
	http.Error(w, err.Error(), status)
}
