package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		kind   Kind
		status int
	}{
		{KindValidation, fiber.StatusBadRequest},
		{KindConflict, fiber.StatusConflict},
		{KindNotFound, fiber.StatusNotFound},
		{KindUnauthorized, fiber.StatusForbidden},
		{KindUpstream, fiber.StatusBadGateway},
		{KindUnimplemented, fiber.StatusNotImplemented},
		{KindInternal, fiber.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, New(tc.kind, "boom").HTTPStatus(), string(tc.kind))
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(KindUpstream, "gateway call failed", cause)

	assert.Equal(t, "gateway call failed: connection reset", err.Error())
	assert.True(t, errors.Is(err, cause))
}

func TestIsKind(t *testing.T) {
	assert.True(t, IsKind(Conflict("order already paid"), KindConflict))
	assert.False(t, IsKind(Conflict("order already paid"), KindNotFound))
	assert.False(t, IsKind(errors.New("plain"), KindConflict))
	assert.False(t, IsKind(nil, KindConflict))

	// Kind detection works through wrapping layers.
	wrapped := fmt.Errorf("handler: %w", NotFound("order not found"))
	assert.True(t, IsKind(wrapped, KindNotFound))
}
