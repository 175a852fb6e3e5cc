package validator

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `validate:"required"`
	Count int    `validate:"min=1,max=10"`
	Mode  string `validate:"omitempty,oneof=free express"`
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, Validate(sample{Name: "x", Count: 3, Mode: "free"}))
}

func TestValidate_CollectsFieldErrors(t *testing.T) {
	err := Validate(sample{Count: 99, Mode: "overnight"})
	require.Error(t, err)

	var valErr *ValidationError
	require.True(t, errors.As(err, &valErr))

	fields := valErr.Fields()
	assert.Equal(t, "is required", fields["Name"])
	assert.Equal(t, "must be at most 10", fields["Count"])
	assert.Equal(t, "must be one of: free express", fields["Mode"])
	assert.Contains(t, err.Error(), "field 'Name' is required")
}

func TestDecodeAndValidate(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"Name":"x","Count":2}`))
	var dst sample
	require.NoError(t, DecodeAndValidate(r, &dst))
	assert.Equal(t, "x", dst.Name)

	r = httptest.NewRequest("POST", "/", strings.NewReader(`{not json`))
	err := DecodeAndValidate(r, &dst)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode request body")
}
