package appErrors_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/unclebandit/postplanner-backend/internal/errors"
)

func TestKindOfUnwrapsWrappedErrors(t *testing.T) {
	err := fmt.Errorf("assign: %w", appErrors.NewConflict("slot taken", map[string]any{"time_slot_id": 3}))

	assert.Equal(t, appErrors.KindConflict, appErrors.KindOf(err))
	assert.True(t, appErrors.Is(err, appErrors.KindConflict))
	assert.Equal(t, http.StatusConflict, appErrors.HTTPStatus(err))
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[error]int{
		appErrors.NewNotFound("schedule", 1):          http.StatusNotFound,
		appErrors.NewValidation("bad"):                http.StatusUnprocessableEntity,
		appErrors.NewImmutable("published"):           http.StatusConflict,
		appErrors.NewNoCapacity("full"):               http.StatusUnprocessableEntity,
		appErrors.NewUpstream("gemini", fmt.Errorf("x")): http.StatusBadGateway,
		fmt.Errorf("boom"):                            http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, appErrors.HTTPStatus(err), err.Error())
	}
}

func TestNotFoundMessage(t *testing.T) {
	err := appErrors.NewNotFound("schedule", 42)
	assert.Equal(t, "schedule with ID 42 not found", err.Error())
	assert.False(t, appErrors.Is(nil, appErrors.KindNotFound))
}
