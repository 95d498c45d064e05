package email

import (
	"testing"

	"github.com/stretchr/testify/assert"

	dErrors "rolegate/pkg/domain-errors"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "jane@example.com", Normalize("  Jane@Example.COM "))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("jane@example.com"))

	for _, bad := range []string{"", "jane", "Jane <jane@example.com>", "@example.com"} {
		err := Validate(bad)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), bad)
	}
}

func TestDeriveFullName(t *testing.T) {
	tests := map[string]string{
		"jane.doe@example.com": "Jane Doe",
		"mary_ann-smith@x.io":  "Mary Ann Smith",
		"admin@example.com":    "Admin",
		"...@example.com":      "User",
		"no-at-sign":           "No At Sign",
	}
	for in, want := range tests {
		assert.Equal(t, want, DeriveFullName(in), in)
	}
}
