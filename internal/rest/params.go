package rest

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/walletwise/walletwise/internal/apperr"
)

const DateLayout = "2006-01-02"

// PathInt reads a numeric path variable registered on the mux route.
func PathInt(r *http.Request, name string) (int, error) {
	value, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil {
		return 0, fmt.Errorf("path parameter %s: %w", name, apperr.ErrValidation)
	}
	return value, nil
}

// ParseDate parses a yyyy-mm-dd date. An empty string gives the zero time.
func ParseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: %w", value, apperr.ErrValidation)
	}
	return t, nil
}
