package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasAnyIsAnyOf(t *testing.T) {
	granted := []string{"read:foods"}

	assert.True(t, HasAny(granted, nil))
	assert.True(t, HasAny(granted, []Scope{WriteFoods, ReadFoods}))
	assert.False(t, HasAny(granted, []Scope{WriteFoods}))
	assert.True(t, HasAny([]string{" READ:FOODS "}, []Scope{ReadFoods}))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate([]string{"read:foods", "admin"}))
	assert.ErrorIs(t, Validate([]string{"read:foods", "delete:everything"}), ErrInvalidScope)
}

func TestNormalizeDedupes(t *testing.T) {
	assert.Equal(t, []string{"read:foods", "read:nutrients"}, Normalize([]string{"read:foods", " Read:Foods", "", "read:nutrients"}))
	assert.Equal(t, []string{}, Normalize(nil))
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "write:foods or admin", Describe([]Scope{WriteFoods, Admin}))
}

func TestDefaultsAreValid(t *testing.T) {
	assert.Equal(t, []string{"read:foods", "read:categories", "read:nutrients"}, Defaults())
	assert.NoError(t, Validate(Defaults()))
	assert.Len(t, All(), 8)
}

func TestParse(t *testing.T) {
	assert.Equal(t, []string{"read:foods", "read:usage"}, Parse(" read:foods  read:usage "))
}
