package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nearbyQuery struct {
	Latitude  float64 `form:"lat" validate:"latitude"`
	Longitude float64 `form:"lng" validate:"longitude"`
	Limit     int     `form:"limit" validate:"omitempty,min=1,max=50"`
}

type importForm struct {
	Name string `json:"name" validate:"required,max=100"`
}

func TestValidateStruct(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, ValidateStruct(nearbyQuery{Latitude: 37.56, Longitude: 126.97, Limit: 10}))
	})

	t.Run("coordinates out of range", func(t *testing.T) {
		err := ValidateStruct(nearbyQuery{Latitude: 91, Longitude: -181})
		require.Error(t, err)

		validationErr, ok := err.(*ValidationError)
		require.True(t, ok)
		assert.Equal(t, "must be between -90 and 90", validationErr.Errors["lat"])
		assert.Equal(t, "must be between -180 and 180", validationErr.Errors["lng"])
	})

	t.Run("limit above max", func(t *testing.T) {
		err := ValidateStruct(nearbyQuery{Limit: 500})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "limit: must be at most 50")
	})

	t.Run("required field uses json name", func(t *testing.T) {
		err := ValidateStruct(importForm{})
		require.Error(t, err)
		assert.Equal(t, "validation failed: name: is required", err.Error())
	})
}

func TestValidateCoordinates(t *testing.T) {
	assert.NoError(t, ValidateCoordinates(37.5665, 126.9780))
	assert.NoError(t, ValidateCoordinates(-90, 180))
	assert.Error(t, ValidateCoordinates(90.0001, 0))
	assert.Error(t, ValidateCoordinates(0, -180.5))
}
