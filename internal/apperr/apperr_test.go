package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestFromStatus(t *testing.T) {
	cases := []struct {
		status int
		kind   error
		code   codes.Code
	}{
		{http.StatusBadRequest, ErrValidation, codes.InvalidArgument},
		{http.StatusUnprocessableEntity, ErrValidation, codes.InvalidArgument},
		{http.StatusUnauthorized, ErrUnauthenticated, codes.Unauthenticated},
		{http.StatusForbidden, ErrForbidden, codes.PermissionDenied},
		{http.StatusNotFound, ErrNotFound, codes.NotFound},
		{http.StatusConflict, ErrConflict, codes.FailedPrecondition},
		{http.StatusInternalServerError, ErrTransport, codes.Unavailable},
		{http.StatusBadGateway, ErrTransport, codes.Unavailable},
	}

	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			err := FromStatus("op", tc.status, "msg")
			assert.ErrorIs(t, err, tc.kind)
			assert.Equal(t, tc.code, status.Code(err))
		})
	}
}

func TestSessionExpiredMatchesBothKinds(t *testing.T) {
	err := SessionExpired("cart.add", errors.New("refresh rejected"))

	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.ErrorIs(t, err, ErrAuthExpired)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	wrapped := fmt.Errorf("placing order: %w", err)
	assert.ErrorIs(t, wrapped, ErrAuthExpired)
	assert.Equal(t, codes.Unauthenticated, status.Code(wrapped))
}

func TestErrorMessage(t *testing.T) {
	err := FromStatus("order.cancel", http.StatusBadRequest, "Cancellation not allowed")
	assert.Equal(t, "order.cancel: validation failed: Cancellation not allowed (http 400)", err.Error())

	assert.Equal(t, "cart.add: unauthenticated: no active session", Unauthenticated("cart.add").Error())
}
