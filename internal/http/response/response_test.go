package response

import (
	"errors"
	"testing"

	"github.com/go-playground/validator"
	"github.com/stretchr/testify/assert"
)

type sample struct {
	Email        string `validate:"required,email"`
	Password     string `validate:"required,min=8"`
	CoachingType string `validate:"omitempty,oneof=pregnancy_coaching private_coaching"`
}

func TestValidationError(t *testing.T) {
	err := validator.New().Struct(sample{Email: "nope", Password: "short", CoachingType: "group"})
	resp := Validation(err)

	assert.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.Error, "field Email must be a valid email")
	assert.Contains(t, resp.Error, "field Password must be at least 8 characters")
	assert.Contains(t, resp.Error, "field CoachingType must be one of: pregnancy_coaching private_coaching")
}

func TestValidation_RequiredField(t *testing.T) {
	resp := Validation(validator.New().Struct(sample{Password: "long-enough"}))
	assert.Equal(t, "field Email is a required field", resp.Error)
}

func TestValidation_OtherError(t *testing.T) {
	resp := Validation(errors.New("boom"))
	assert.Equal(t, Response{Status: StatusError, Error: "invalid request"}, resp)
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, Response{Status: StatusOK}, OK())
	assert.Equal(t, Response{Status: StatusOK, Data: 1}, StatusOKWithData(1))
	assert.Equal(t, Response{Status: StatusError, Error: "x", Data: 2}, ErrorWithData("x", 2))
}
