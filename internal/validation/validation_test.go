package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type form struct {
	Email string `json:"email" validate:"required,email"`
	At    string `json:"at" validate:"omitempty,clock"`
}

func TestCheck(t *testing.T) {
	v := New()
	assert.NoError(t, v.Check(form{Email: "a@b.com", At: "09:30:15"}, nil))

	err := v.Check(form{At: "9:30"}, Messages{"email.required": "Email please"})
	var verr Errors
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Email please", verr["email"])
	assert.Equal(t, "at must be a time of day (HH:MM or HH:MM:SS)", verr["at"])
}

func TestCheckDefaultTranslations(t *testing.T) {
	v := New()
	err := v.Check(form{}, nil)
	var verr Errors
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "email is required", verr["email"])

	err = v.Check(form{Email: "nope"}, Messages{"email": "Bad email"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Bad email", verr["email"])
}

func TestErrorsString(t *testing.T) {
	assert.Equal(t, "a: first; b: second", Errors{"b": "second", "a": "first"}.Error())
}
