package validate

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Username string `json:"username" validate:"required,min=3"`
	Quantity int    `json:"quantity" validate:"gt=0"`
	Page     int    `form:"page" validate:"gte=0"`
}

func TestValidator(t *testing.T) {
	v := New()

	require.NoError(t, v.Validate(&sample{Username: "alice", Quantity: 1}))

	err := v.Validate(&sample{Username: "", Quantity: 0, Page: -1})
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadRequest, he.Code)
	msg, _ := he.Message.(string)
	assert.Contains(t, msg, "username is required")
	assert.Contains(t, msg, "quantity must be greater than 0")
	assert.Contains(t, msg, "page must be at least 0")
}
