package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/repair-desk/pkg/util/errorutil"
)

type sample struct {
	Name     string `json:"name" validate:"required,max=5"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
	Quantity int    `json:"quantity" validate:"gte=0"`
	Role     string `json:"role" validate:"omitempty,oneof=admin user"`
	Internal string `json:"-" validate:"omitempty,len=2"`
}

func TestStruct(t *testing.T) {
	require.NoError(t, Struct(sample{Name: "ok", Email: "a@b.it", Role: "admin"}))

	err := Struct(sample{Name: "toolong", Email: "nope", Quantity: -1, Role: "root"})
	require.Error(t, err)
	de := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeValidation, de.Code)

	fields := de.Details["fields"].(map[string]any)
	assert.Equal(t, "name must be at most 5 characters long", fields["name"])
	assert.Equal(t, "email must be a valid email address", fields["email"])
	assert.Equal(t, "quantity must be greater than or equal to 0", fields["quantity"])
	assert.Equal(t, "role must be one of [admin user]", fields["role"])
	assert.Contains(t, de.Message, "name must be at most 5 characters long; ")
}

func TestStruct_RequiredField(t *testing.T) {
	de := apperrors.ToDomainError(Struct(sample{}))
	assert.Equal(t, "name is required", de.Message)
}

func TestStruct_NonStruct(t *testing.T) {
	de := apperrors.ToDomainError(Struct(42))
	assert.Equal(t, apperrors.CodeValidation, de.Code)
	assert.Nil(t, de.Details)
}
