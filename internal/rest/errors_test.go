package rest

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/walletwise/walletwise/internal/apperr"
	"github.com/walletwise/walletwise/pkg/user"
)

func TestStatusFor(t *testing.T) {
	cases := map[string]struct {
		err    error
		status int
	}{
		"missing user":       {user.ErrNoUser, http.StatusForbidden},
		"permission":         {fmt.Errorf("wallet 3: %w", apperr.ErrPermission), http.StatusForbidden},
		"not found":          {fmt.Errorf("budget 9: %w", apperr.ErrNotFound), http.StatusNotFound},
		"insufficient funds": {fmt.Errorf("transfer: %w", apperr.ErrInsufficientFunds), http.StatusUnprocessableEntity},
		"validation":         {fmt.Errorf("amount: %w", apperr.ErrValidation), http.StatusBadRequest},
		"other":              {fmt.Errorf("connection reset"), http.StatusInternalServerError},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.status, StatusFor(tc.err))
		})
	}
}
